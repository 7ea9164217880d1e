package usecase

import (
	"context"
	"testing"
	"time"

	"marketplace/internal/domain/model"
	"marketplace/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogList_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := NewAuditLogUsecase(f.store.AuditLogs(), logger.Discard())

	order, a, _ := placeTwoLineOrder(t, f, model.PaymentMethodCOD)
	_, err := f.status.ChangeStatus(ctx, userA, order.ID, model.OrderStatusInProcess)
	require.NoError(t, err)
	require.NoError(t, f.product.AdminUpdateInventory(ctx, admin, a.ID, 50, "restock"))

	all, err := u.List(ctx, admin, AuditLogListInput{Limit: 50})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
	// 新しい順
	assert.Equal(t, model.AuditActionUpdateStock, all.Items[0].Action)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, all.Items[1].Action)

	byOrder, err := u.List(ctx, admin, AuditLogListInput{Action: "update_order_status", ResourceType: "order", ResourceID: &order.ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, byOrder.Items, 1)
	assert.Equal(t, userA.UserID, byOrder.Items[0].ActorUserID)
	assert.Contains(t, byOrder.Items[0].AfterJSON, string(model.OrderStatusInProcess))

	byActor, err := u.List(ctx, admin, AuditLogListInput{ActorUserID: &admin.UserID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, byActor.Items, 1)
	assert.Equal(t, model.AuditResourceProduct, byActor.Items[0].ResourceType)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	none, err := u.List(ctx, admin, AuditLogListInput{From: future, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, none.Items)

	paged, err := u.List(ctx, admin, AuditLogListInput{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged.Items, 1)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, paged.Items[0].Action)
}

func TestAuditLogList_Validation(t *testing.T) {
	f := newFixture(t)
	u := NewAuditLogUsecase(f.store.AuditLogs(), logger.Discard())

	_, err := u.List(context.Background(), userA, AuditLogListInput{Limit: 10})
	he := requireKind(t, err, KindUnauthorized)
	assert.Equal(t, 403, he.Status)

	cases := []struct {
		name string
		in   AuditLogListInput
		msg  string
	}{
		{"limit", AuditLogListInput{Limit: 0}, "invalid limit"},
		{"offset", AuditLogListInput{Limit: 10, Offset: -1}, "invalid offset"},
		{"action", AuditLogListInput{Limit: 10, Action: "DELETE_EVERYTHING"}, "invalid action"},
		{"resource", AuditLogListInput{Limit: 10, ResourceType: "user"}, "invalid resource_type"},
		{"from", AuditLogListInput{Limit: 10, From: "yesterday"}, "invalid from"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := u.List(context.Background(), admin, tc.in)
			he := requireKind(t, err, KindInvalidRequest)
			assert.Equal(t, tc.msg, he.Message)
		})
	}
}
