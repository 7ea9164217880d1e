package usecase

import (
	"context"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/stretchr/testify/mock"
)

type productRepoMock struct{ mock.Mock }

func (m *productRepoMock) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	args := m.Called(ctx, q)
	ps, _ := args.Get(0).([]model.Product)
	return ps, args.Get(1).(int64), args.Error(2)
}

func (m *productRepoMock) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *productRepoMock) FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	ps, _ := args.Get(0).([]model.Product)
	return ps, args.Error(1)
}

func (m *productRepoMock) FindByIDsForUpdate(ctx context.Context, ids []int64) ([]model.Product, error) {
	panic("not used")
}

func (m *productRepoMock) Create(ctx context.Context, p model.Product) (model.Product, error) {
	args := m.Called(ctx, p)
	out, _ := args.Get(0).(model.Product)
	return out, args.Error(1)
}

func (m *productRepoMock) Update(ctx context.Context, p model.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *productRepoMock) SoftDelete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type addressRepoMock struct{ mock.Mock }

func (m *addressRepoMock) Create(ctx context.Context, a model.Address) (model.Address, error) {
	panic("not used")
}

func (m *addressRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	panic("not used")
}

func (m *addressRepoMock) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	args := m.Called(ctx, addressID)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *addressRepoMock) Update(ctx context.Context, a model.Address) error { panic("not used") }
func (m *addressRepoMock) Delete(ctx context.Context, addressID int64) error  { panic("not used") }

func (m *addressRepoMock) IsOwnedByUser(ctx context.Context, addressID, userID int64) (bool, error) {
	panic("not used")
}

func (m *addressRepoMock) SetDefault(ctx context.Context, userID, addressID int64) error {
	panic("not used")
}

type productCacheMock struct{ mock.Mock }

func (m *productCacheMock) Get(ctx context.Context, productID int64) (model.Product, bool, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(model.Product)
	return p, args.Bool(1), args.Error(2)
}

func (m *productCacheMock) Set(ctx context.Context, p model.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *productCacheMock) Invalidate(ctx context.Context, productIDs ...int64) error {
	return m.Called(ctx, productIDs).Error(0)
}
