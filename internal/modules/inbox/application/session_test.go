package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/petcuddles/pet-cuddles/internal/mocks"
	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/domain"
)

func persisterFactory(p Persister) PersisterFactory {
	return func(string) Persister { return p }
}

type switchableClient struct {
	src   domain.Source
	calls atomic.Int32
	auth  atomic.Bool
}

func (c *switchableClient) Source() domain.Source { return c.src }

func (c *switchableClient) Fetch(_ context.Context, token string) ([]domain.Notification, error) {
	c.calls.Add(1)
	if c.auth.Load() || token == "" {
		return nil, &domain.AuthError{Source: c.src, Message: "expired"}
	}
	return []domain.Notification{unread("n1", c.src)}, nil
}

func TestSessionManager_StartGetEnd(t *testing.T) {
	userID := uuid.New()
	agg := NewAggregator([]SourceClient{okClient(domain.SourceWeatherAlert, "a"), okClient(domain.SourceDiseaseAlert, "b")}, 0, nil)

	var mu sync.Mutex
	var published []Snapshot
	m := NewSessionManager(agg, persisterFactory(persistOK), SessionConfig{
		Publish: func(id uuid.UUID, snap Snapshot) {
			assert.Equal(t, userID, id)
			mu.Lock()
			published = append(published, snap)
			mu.Unlock()
		},
	}, nil)

	sess, report, err := m.Start(context.Background(), userID, testToken)
	require.NoError(t, err)
	assert.Len(t, report.Loaded, 2)
	assert.Equal(t, 2, sess.Store().Snapshot().UnreadCount)

	got, ok := m.Get(userID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	require.NoError(t, sess.MarkRead(context.Background(), "a"))
	assert.Equal(t, 1, sess.Store().Snapshot().UnreadCount)

	mu.Lock()
	require.Len(t, published, 2)
	assert.Equal(t, 1, published[1].UnreadCount)
	mu.Unlock()

	assert.True(t, m.End(userID))
	assert.False(t, m.End(userID))
	_, ok = m.Get(userID)
	assert.False(t, ok)
	assert.True(t, sess.Store().Closed())

	select {
	case <-sess.Done():
	default:
		t.Fatal("session context must be cancelled")
	}
}

func TestSessionManager_StartReplacesPreviousSession(t *testing.T) {
	userID := uuid.New()
	agg := NewAggregator([]SourceClient{okClient(domain.SourceGeneric, "g")}, 0, nil)
	m := NewSessionManager(agg, persisterFactory(persistOK), SessionConfig{}, nil)

	first, _, err := m.Start(context.Background(), userID, testToken)
	require.NoError(t, err)
	second, _, err := m.Start(context.Background(), userID, testToken)
	require.NoError(t, err)

	assert.True(t, first.Store().Closed())
	assert.False(t, second.Store().Closed())

	// Results resolving for the old session are discarded.
	_, err = first.Refresh(context.Background(), testToken)
	assert.Error(t, err)

	current, _ := m.Get(userID)
	assert.Same(t, second, current)
	m.Shutdown()
	assert.True(t, second.Store().Closed())
}

func TestSessionManager_StartWithRejectedCredential(t *testing.T) {
	userID := uuid.New()
	agg := NewAggregator([]SourceClient{&switchableClient{src: domain.SourceGeneric}}, 0, nil)
	m := NewSessionManager(agg, persisterFactory(persistOK), SessionConfig{}, nil)

	sess, _, err := m.Start(context.Background(), userID, "")
	assert.True(t, domain.IsAuthError(err))
	assert.True(t, sess.Store().Closed())
	_, ok := m.Get(userID)
	assert.False(t, ok)
}

func TestSessionManager_StartWithCancelledRequest(t *testing.T) {
	userID := uuid.New()
	agg := NewAggregator([]SourceClient{okClient(domain.SourceWeatherAlert, "a")}, 0, nil)
	m := NewSessionManager(agg, persisterFactory(persistOK), SessionConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sess, _, err := m.Start(ctx, userID, testToken)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, sess.Store().Closed())
	_, ok := m.Get(userID)
	assert.False(t, ok)
}

func TestSession_EndCancelsInFlightRefresh(t *testing.T) {
	userID := uuid.New()
	gate := make(chan struct{})
	blocking := mocks.NewMockSourceClient(domain.SourceGeneric)
	blocking.On("Fetch", mock.Anything, testToken).Return([]domain.Notification{}, nil).Once()
	blocking.On("Fetch", mock.Anything, testToken).
		Run(func(args mock.Arguments) {
			close(gate)
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, &domain.NetworkError{Source: domain.SourceGeneric, Err: context.Canceled})

	m := NewSessionManager(NewAggregator([]SourceClient{blocking}, 0, nil), persisterFactory(persistOK), SessionConfig{}, nil)
	sess, _, err := m.Start(context.Background(), userID, testToken)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := sess.Refresh(context.Background(), "")
		done <- err
	}()

	<-gate
	m.End(userID)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not abort after session end")
	}
	assert.Empty(t, sess.Store().Snapshot().Items)
}

func TestSession_RefreshUpdatesToken(t *testing.T) {
	c := mocks.NewMockSourceClient(domain.SourceGeneric)
	c.On("Fetch", mock.Anything, testToken).Return([]domain.Notification{}, nil)
	c.On("Fetch", mock.Anything, "renewed").Return([]domain.Notification{unread("x", "")}, nil)

	var persistedWith string
	m := NewSessionManager(NewAggregator([]SourceClient{c}, 0, nil), func(token string) Persister {
		persistedWith = token
		return persistOK
	}, SessionConfig{}, nil)

	sess, _, err := m.Start(context.Background(), uuid.New(), testToken)
	require.NoError(t, err)

	_, err = sess.Refresh(context.Background(), "renewed")
	require.NoError(t, err)
	assert.Equal(t, "renewed", sess.Token())

	require.NoError(t, sess.MarkRead(context.Background(), "x"))
	assert.Equal(t, "renewed", persistedWith)
	c.AssertExpectations(t)
}

func TestSession_MarkReadFailureRollsBack(t *testing.T) {
	persister := new(mocks.MockPersister)
	persister.On("MarkRead", mock.Anything, "a").Return(errors.New("503"))

	m := NewSessionManager(NewAggregator([]SourceClient{okClient(domain.SourceWeatherAlert, "a")}, 0, nil), persisterFactory(persister), SessionConfig{}, nil)
	sess, _, err := m.Start(context.Background(), uuid.New(), testToken)
	require.NoError(t, err)

	err = sess.MarkRead(context.Background(), "a")
	assert.True(t, domain.IsPersistenceError(err))
	assert.Equal(t, 1, sess.Store().Snapshot().UnreadCount)
}

func TestSessionManager_PollingRefreshesAndEndsOnAuthError(t *testing.T) {
	userID := uuid.New()
	client := &switchableClient{src: domain.SourceAppointment}
	m := NewSessionManager(NewAggregator([]SourceClient{client}, 0, nil), persisterFactory(persistOK), SessionConfig{
		PollInterval: 10 * time.Millisecond,
	}, nil)

	sess, _, err := m.Start(context.Background(), userID, testToken)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return client.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	client.auth.Store(true)
	require.Eventually(t, func() bool {
		_, ok := m.Get(userID)
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, sess.Store().Closed())
}
