package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/petcuddles/pet-cuddles/internal/modules/notification/application"
	"github.com/petcuddles/pet-cuddles/internal/modules/notification/domain"
)

type creatorFunc func(context.Context, application.CreateInput) (*domain.Notification, error)

func (f creatorFunc) Create(ctx context.Context, in application.CreateInput) (*domain.Notification, error) {
	return f(ctx, in)
}

func TestAlertHandler_Handle(t *testing.T) {
	userID := uuid.New()

	t.Run("creates notification", func(t *testing.T) {
		var got application.CreateInput
		h := NewAlertHandler(creatorFunc(func(_ context.Context, in application.CreateInput) (*domain.Notification, error) {
			got = in
			return &domain.Notification{ID: uuid.New(), UserID: in.UserID, Source: in.Source}, nil
		}), zap.NewNop())

		raw := []byte(`{"user_id":"` + userID.String() + `","source":"weather_alert","severity":"extreme","title":"Storm","message":"Keep pets inside"}`)
		require.NoError(t, h.Handle(context.Background(), raw))
		assert.Equal(t, userID, got.UserID)
		assert.Equal(t, domain.SourceWeatherAlert, got.Source)
		assert.Equal(t, domain.SeverityExtreme, got.Severity)
	})

	t.Run("bad json is malformed", func(t *testing.T) {
		h := NewAlertHandler(creatorFunc(func(context.Context, application.CreateInput) (*domain.Notification, error) {
			t.Fatal("service must not be called")
			return nil, nil
		}), zap.NewNop())

		assert.ErrorIs(t, h.Handle(context.Background(), []byte(`{not json`)), ErrMalformedMessage)
	})

	t.Run("validation failure is malformed", func(t *testing.T) {
		h := NewAlertHandler(creatorFunc(func(context.Context, application.CreateInput) (*domain.Notification, error) {
			return nil, domain.ErrInvalidSource
		}), zap.NewNop())

		assert.ErrorIs(t, h.Handle(context.Background(), []byte(`{"source":"billing","message":"x"}`)), ErrMalformedMessage)
	})

	t.Run("storage failure is transient", func(t *testing.T) {
		h := NewAlertHandler(creatorFunc(func(context.Context, application.CreateInput) (*domain.Notification, error) {
			return nil, errors.New("db down")
		}), zap.NewNop())

		err := h.Handle(context.Background(), []byte(`{"message":"x"}`))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMalformedMessage)
	})
}
