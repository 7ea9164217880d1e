package usecase

import (
	"context"
	"log/slog"
	"strings"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

type AuditLogUsecase struct {
	logs repo.AuditLogRepository
	log  *slog.Logger
}

func NewAuditLogUsecase(logs repo.AuditLogRepository, log *slog.Logger) *AuditLogUsecase {
	return &AuditLogUsecase{logs: logs, log: log}
}

type AuditLogListInput struct {
	Action       string
	ResourceType string
	ResourceID   *int64
	ActorUserID  *int64
	From         string // RFC3339
	To           string
	Limit        int
	Offset       int
}

type AuditLogListOutput struct {
	Items  []model.AuditLog `json:"items"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// 新しい順。管理者のみ。
func (u *AuditLogUsecase) List(ctx context.Context, actor model.Actor, in AuditLogListInput) (AuditLogListOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return AuditLogListOutput{}, err
	}
	if in.Limit < 1 || in.Limit > 200 {
		return AuditLogListOutput{}, errInvalidRequest("invalid limit")
	}
	if in.Offset < 0 {
		return AuditLogListOutput{}, errInvalidRequest("invalid offset")
	}

	f := repo.AuditLogFilter{
		ActorUserID: in.ActorUserID,
		ResourceID:  in.ResourceID,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	if s := strings.ToUpper(strings.TrimSpace(in.Action)); s != "" {
		a := model.AuditAction(s)
		if a != model.AuditActionUpdateStock && a != model.AuditActionUpdateOrderStatus {
			return AuditLogListOutput{}, errInvalidRequest("invalid action")
		}
		f.Action = &a
	}
	if s := strings.ToLower(strings.TrimSpace(in.ResourceType)); s != "" {
		rt := model.AuditResourceType(s)
		if rt != model.AuditResourceProduct && rt != model.AuditResourceOrder {
			return AuditLogListOutput{}, errInvalidRequest("invalid resource_type")
		}
		f.ResourceType = &rt
	}
	var ok bool
	if f.CreatedFrom, ok = parseDateTimeRFC3339(in.From); !ok {
		return AuditLogListOutput{}, errInvalidRequest("invalid from")
	}
	if f.CreatedTo, ok = parseDateTimeRFC3339(in.To); !ok {
		return AuditLogListOutput{}, errInvalidRequest("invalid to")
	}

	logs, err := u.logs.List(ctx, f)
	if err != nil {
		return AuditLogListOutput{}, classify(ctx, u.log, "audit_log.list", err)
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return AuditLogListOutput{Items: logs, Limit: in.Limit, Offset: in.Offset}, nil
}
