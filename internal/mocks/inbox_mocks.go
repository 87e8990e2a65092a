package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/domain"
)

type MockSourceClient struct {
	mock.Mock
	Src domain.Source
}

func NewMockSourceClient(src domain.Source) *MockSourceClient {
	return &MockSourceClient{Src: src}
}

func (m *MockSourceClient) Source() domain.Source {
	return m.Src
}

func (m *MockSourceClient) Fetch(ctx context.Context, token string) ([]domain.Notification, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Notification), args.Error(1)
}

type MockPersister struct {
	mock.Mock
}

func (m *MockPersister) MarkRead(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
