package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

type AddressDTO struct {
	ID         int64   `json:"id"`
	UserID     int64   `json:"user_id"`
	PostalCode string  `json:"postal_code"`
	Prefecture string  `json:"prefecture"`
	City       string  `json:"city"`
	Line1      string  `json:"line1"`
	Line2      string  `json:"line2"`
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	IsDefault  bool    `json:"is_default"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  *string `json:"updated_at,omitempty"`
}

// 作成・更新で同じ形
type AddressInput struct {
	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
}

func (in AddressInput) trimmed() AddressInput {
	return AddressInput{
		PostalCode: strings.TrimSpace(in.PostalCode),
		Prefecture: strings.TrimSpace(in.Prefecture),
		City:       strings.TrimSpace(in.City),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      strings.TrimSpace(in.Line2),
		Name:       strings.TrimSpace(in.Name),
		Phone:      strings.TrimSpace(in.Phone),
	}
}

func (in AddressInput) validate() error {
	if in.PostalCode == "" || in.Prefecture == "" || in.City == "" || in.Line1 == "" || in.Name == "" {
		return errInvalidRequest("postal_code, prefecture, city, line1 and name are required")
	}
	return nil
}

// 注文時に住所のスナップショットを渡す側
type AddressUsecase struct {
	addresses repo.AddressRepository
	log       *slog.Logger
}

func NewAddressUsecase(addresses repo.AddressRepository, log *slog.Logger) *AddressUsecase {
	return &AddressUsecase{addresses: addresses, log: log}
}

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]AddressDTO, error) {
	if userID <= 0 {
		return nil, errUnauthenticated()
	}

	list, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return nil, classify(ctx, u.log, "address.list", err)
	}

	out := make([]AddressDTO, 0, len(list))
	for i := range list {
		out = append(out, toAddressDTO(&list[i]))
	}
	return out, nil
}

// 最初の1件は自動でデフォルトにする
func (u *AddressUsecase) Create(ctx context.Context, userID int64, req AddressInput) (AddressDTO, error) {
	if userID <= 0 {
		return AddressDTO{}, errUnauthenticated()
	}
	req = req.trimmed()
	if err := req.validate(); err != nil {
		return AddressDTO{}, err
	}

	existing, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return AddressDTO{}, classify(ctx, u.log, "address.list", err)
	}

	now := time.Now()
	created, err := u.addresses.Create(ctx, model.Address{
		UserID:     userID,
		PostalCode: req.PostalCode,
		Prefecture: req.Prefecture,
		City:       req.City,
		Line1:      req.Line1,
		Line2:      req.Line2,
		Name:       req.Name,
		Phone:      req.Phone,
		IsDefault:  len(existing) == 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return AddressDTO{}, classify(ctx, u.log, "address.create", err)
	}
	return toAddressDTO(&created), nil
}

func (u *AddressUsecase) Update(ctx context.Context, userID int64, addressID int64, req AddressInput) error {
	if err := u.checkOwner(ctx, userID, addressID); err != nil {
		return err
	}
	req = req.trimmed()
	if err := req.validate(); err != nil {
		return err
	}

	err := u.addresses.Update(ctx, model.Address{
		ID:         addressID,
		PostalCode: req.PostalCode,
		Prefecture: req.Prefecture,
		City:       req.City,
		Line1:      req.Line1,
		Line2:      req.Line2,
		Name:       req.Name,
		Phone:      req.Phone,
		UpdatedAt:  time.Now(),
	})
	return classify(ctx, u.log, "address.update", err)
}

// 注文は住所のコピーを持っているので消しても影響しない
func (u *AddressUsecase) Delete(ctx context.Context, userID int64, addressID int64) error {
	if err := u.checkOwner(ctx, userID, addressID); err != nil {
		return err
	}
	return classify(ctx, u.log, "address.delete", u.addresses.Delete(ctx, addressID))
}

func (u *AddressUsecase) SetDefault(ctx context.Context, userID int64, addressID int64) error {
	if err := u.checkOwner(ctx, userID, addressID); err != nil {
		return err
	}
	//user内でdefaultは1つ
	return classify(ctx, u.log, "address.set_default", u.addresses.SetDefault(ctx, userID, addressID))
}

func (u *AddressUsecase) checkOwner(ctx context.Context, userID, addressID int64) error {
	if userID <= 0 {
		return errUnauthenticated()
	}
	if addressID <= 0 {
		return errInvalidRequest("invalid id")
	}

	owned, err := u.addresses.IsOwnedByUser(ctx, addressID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return errNotFound()
	}
	if err != nil {
		return classify(ctx, u.log, "address.owned", err)
	}
	if !owned {
		return errForbidden()
	}
	return nil
}

func toAddressDTO(a *model.Address) AddressDTO {
	dto := AddressDTO{
		ID:         a.ID,
		UserID:     a.UserID,
		PostalCode: a.PostalCode,
		Prefecture: a.Prefecture,
		City:       a.City,
		Line1:      a.Line1,
		Line2:      a.Line2,
		Name:       a.Name,
		Phone:      a.Phone,
		IsDefault:  a.IsDefault,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
	t := a.UpdatedAt.Format(time.RFC3339)
	dto.UpdatedAt = &t
	return dto
}
