package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bossnet/party-signup/internal/model"
)

// MockStore is a testify mock of the service's persistence port.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Upsert(ctx context.Context, reg model.Registration, prov model.Provenance) (model.UpsertResult, error) {
	args := m.Called(ctx, reg, prov)
	return args.Get(0).(model.UpsertResult), args.Error(1)
}

func (m *MockStore) ListPublic(ctx context.Context, limit int) ([]model.PublicRegistration, error) {
	args := m.Called(ctx, limit)
	regs, _ := args.Get(0).([]model.PublicRegistration)
	return regs, args.Error(1)
}

func (m *MockStore) SetPaid(ctx context.Context, email string, status int) error {
	return m.Called(ctx, email, status).Error(0)
}

func (m *MockStore) GetByEmail(ctx context.Context, email string) (*model.Registration, error) {
	args := m.Called(ctx, email)
	reg, _ := args.Get(0).(*model.Registration)
	return reg, args.Error(1)
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
