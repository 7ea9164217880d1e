package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *writerMock) Close() error {
	return m.Called().Error(0)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := new(writerMock)
	p := newKafkaPublisher(w)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]kafka.Message) }).
		Return(nil).Once()

	err := p.Publish(context.Background(), repo.OrderEvent{
		Type:    repo.EventOrderPlaced,
		OrderID: 12,
		UserID:  3,
		Status:  model.OrderStatusPending,
		Items:   []repo.OrderEventItem{{ProductID: 1, Quantity: 2, Price: 500}},
	})
	require.NoError(t, err)
	w.AssertExpectations(t)

	require.Len(t, sent, 1)
	assert.Equal(t, "12", string(sent[0].Key))
	assert.Equal(t, fixed, sent[0].Time)
	assert.Equal(t, "event-type", sent[0].Headers[0].Key)
	assert.Equal(t, repo.EventOrderPlaced, string(sent[0].Headers[0].Value))

	var body repo.OrderEvent
	require.NoError(t, json.Unmarshal(sent[0].Value, &body))
	assert.NotEmpty(t, body.ID)
	assert.Equal(t, int64(12), body.OrderID)
	assert.Equal(t, model.OrderStatusPending, body.Status)
	require.Len(t, body.Items, 1)
	assert.Equal(t, int64(500), body.Items[0].Price)
}

func TestKafkaPublisher_PropagatesWriteError(t *testing.T) {
	w := new(writerMock)
	p := newKafkaPublisher(w)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	err := p.Publish(context.Background(), repo.OrderEvent{Type: repo.EventOrderStatusChanged, OrderID: 1})
	require.EqualError(t, err, "broker down")
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := new(writerMock)
	w.On("Close").Return(nil).Once()
	require.NoError(t, newKafkaPublisher(w).Close())
	w.AssertExpectations(t)
}
