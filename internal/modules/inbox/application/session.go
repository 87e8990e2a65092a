package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/domain"
)

// PersisterFactory builds a Persister that acts with the given credential.
type PersisterFactory func(token string) Persister

// SnapshotPublisher is told about every snapshot of a user's inbox.
type SnapshotPublisher func(userID uuid.UUID, snap Snapshot)

type SessionConfig struct {
	// PollInterval re-fetches every source on this period; zero disables.
	PollInterval time.Duration
	Publish      SnapshotPublisher
}

// Session is one user's inbox between login and logout.
type Session struct {
	UserID    uuid.UUID
	StartedAt time.Time

	store     *Store
	agg       *Aggregator
	persister PersisterFactory

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	token string
}

func (s *Session) Store() *Store { return s.store }

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Refresh re-fetches every source. A non-empty token replaces the one the
// session polls with. The fetch is abandoned when the session ends.
func (s *Session) Refresh(ctx context.Context, token string) (Report, error) {
	if token != "" {
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	return s.agg.Refresh(rctx, s.store, s.Token())
}

// MarkRead reconciles the read state of id with the backend.
func (s *Session) MarkRead(ctx context.Context, id string) error {
	outcome, err := s.store.Reconcile(ctx, id, s.persister(s.Token()))
	if !errors.Is(err, domain.ErrStoreClosed) {
		markReadTotal.WithLabelValues(string(outcome)).Inc()
	}
	return err
}

func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// SessionManager keeps at most one live session per user.
type SessionManager struct {
	agg       *Aggregator
	persister PersisterFactory
	cfg       SessionConfig
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewSessionManager(agg *Aggregator, persister PersisterFactory, cfg SessionConfig, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		agg:       agg,
		persister: persister,
		cfg:       cfg,
		logger:    logger,
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// Start replaces any session of userID with a fresh, empty store and runs
// the initial load. If that load fails, for a rejected credential or a
// cancelled request, the new session is ended and the error returned.
func (m *SessionManager) Start(ctx context.Context, userID uuid.UUID, token string) (*Session, Report, error) {
	sctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		UserID:    userID,
		StartedAt: time.Now(),
		store:     NewStore(),
		agg:       m.agg,
		persister: m.persister,
		ctx:       sctx,
		cancel:    cancel,
		token:     token,
	}
	if m.cfg.Publish != nil {
		sess.store.Subscribe(func(snap Snapshot) { m.cfg.Publish(userID, snap) })
	}

	m.mu.Lock()
	prev := m.sessions[userID]
	m.sessions[userID] = sess
	m.mu.Unlock()
	if prev != nil {
		m.close(prev)
	} else {
		activeSessions.Inc()
	}

	m.logger.Info("[Inbox] session started", zap.String("user_id", userID.String()))

	report, err := sess.Refresh(ctx, "")
	if err != nil {
		m.endIf(sess)
		return sess, report, err
	}

	if m.cfg.PollInterval > 0 {
		go m.poll(sess)
	}
	return sess, report, nil
}

func (m *SessionManager) Get(userID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// End cancels in-flight fetches and closes the store so late results are
// discarded. It reports whether a session existed.
func (m *SessionManager) End(userID uuid.UUID) bool {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if !ok {
		return false
	}
	activeSessions.Dec()
	m.close(sess)
	m.logger.Info("[Inbox] session ended", zap.String("user_id", userID.String()))
	return true
}

// Shutdown ends every session.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.End(id)
	}
}

// endIf ends sess only if it is still the user's current session.
func (m *SessionManager) endIf(sess *Session) {
	m.mu.Lock()
	current := m.sessions[sess.UserID] == sess
	if current {
		delete(m.sessions, sess.UserID)
	}
	m.mu.Unlock()
	if current {
		activeSessions.Dec()
	}
	m.close(sess)
}

func (m *SessionManager) close(sess *Session) {
	sess.cancel()
	sess.store.Close()
}

func (m *SessionManager) poll(sess *Session) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.ctx.Done():
			return
		case <-ticker.C:
			_, err := sess.Refresh(sess.ctx, "")
			switch {
			case err == nil:
			case domain.IsAuthError(err):
				m.logger.Warn("[Inbox] credential rejected while polling, ending session",
					zap.String("user_id", sess.UserID.String()), zap.Error(err))
				m.endIf(sess)
				return
			case errors.Is(err, context.Canceled), errors.Is(err, domain.ErrStoreClosed):
				return
			default:
				m.logger.Warn("[Inbox] poll failed", zap.String("user_id", sess.UserID.String()), zap.Error(err))
			}
		}
	}
}
