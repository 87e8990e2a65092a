package application

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/domain"
)

// versions is shared by every store, so a snapshot taken later always has a
// higher Version, even across sessions.
var versions atomic.Uint64

// Snapshot is a consistent view of a store. UnreadCount always equals
// CountUnread(Items). Items delivered to subscribers are shared between
// them and must not be modified.
type Snapshot struct {
	Items       []domain.Notification
	UnreadCount int
	Version     uint64
}

func (s Snapshot) UnreadBySource() map[domain.Source]int {
	return CountUnreadBySource(s.Items)
}

// Persister confirms a read with the backend of record.
type Persister interface {
	MarkRead(ctx context.Context, id string) error
}

type ReadOutcome string

const (
	ReadNoop       ReadOutcome = "noop"
	ReadPersisted  ReadOutcome = "persisted"
	ReadRolledBack ReadOutcome = "rolled_back"
)

type subscriber struct {
	id uint64
	fn func(Snapshot)
}

// Store holds one session's merged notifications.
//
// Every mutation bumps the version and builds the next snapshot inside the
// same critical section, so subscribers never see items and count out of
// step. Delivery runs outside the lock and is serialized: whichever goroutine
// finds no delivery in progress drains the latest snapshot until it is
// current. A subscriber may therefore call back into the store; its own
// mutation is delivered after it returns. Concurrent mutations may be
// coalesced, but an older version is never delivered after a newer one.
type Store struct {
	mu       sync.Mutex
	items    []domain.Notification
	index    map[string]int
	pending  map[string]struct{}
	readHere map[string]struct{}
	version  uint64
	closed   bool

	subs    []subscriber
	nextSub uint64

	latest     Snapshot
	delivered  uint64
	delivering bool
}

func NewStore() *Store {
	return &Store{
		index:    make(map[string]int),
		pending:  make(map[string]struct{}),
		readHere: make(map[string]struct{}),
	}
}

// Load replaces the items with the concatenation of results in slice order.
// A later duplicate of an id is dropped. Items already read in this session
// stay read even if the backend still reports them unread.
func (s *Store) Load(results []domain.SourceResult) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStoreClosed
	}

	items := make([]domain.Notification, 0, len(s.items))
	index := make(map[string]int, len(s.items))
	for _, res := range results {
		for _, n := range res.Items {
			if _, dup := index[n.ID]; dup {
				continue
			}
			if n.Source == "" {
				n.Source = res.Source
			}
			if _, ok := s.readHere[n.ID]; ok {
				n.Read = true
			} else if n.Read {
				s.readHere[n.ID] = struct{}{}
			}
			index[n.ID] = len(items)
			items = append(items, n)
		}
	}
	s.items = items
	s.index = index
	s.commitLocked()
	s.mu.Unlock()

	s.deliver()
	return nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every later mutation. The returned func
// removes it and is safe to call more than once.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Close ends the store. Subscribers are dropped, items are discarded and
// later loads or reads fail with ErrStoreClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = nil
	s.items = nil
	s.index = map[string]int{}
	s.pending = map[string]struct{}{}
}

func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MarkRead marks id read locally, then confirms it with persist. A failed
// confirmation reverts the change and returns a *domain.PersistenceError.
// Unknown or already read ids are a no-op.
func (s *Store) MarkRead(ctx context.Context, id string, persist Persister) error {
	_, err := s.Reconcile(ctx, id, persist)
	return err
}

// Reconcile is MarkRead that also reports what happened.
func (s *Store) Reconcile(ctx context.Context, id string, persist Persister) (ReadOutcome, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ReadNoop, domain.ErrStoreClosed
	}
	i, ok := s.index[id]
	if !ok || s.items[i].Read {
		s.mu.Unlock()
		return ReadNoop, nil
	}
	s.items[i].Read = true
	s.pending[id] = struct{}{}
	s.readHere[id] = struct{}{}
	s.commitLocked()
	s.mu.Unlock()
	s.deliver()

	err := persist.MarkRead(ctx, id)

	s.mu.Lock()
	_, stillPending := s.pending[id]
	delete(s.pending, id)
	if err == nil {
		s.mu.Unlock()
		return ReadPersisted, nil
	}
	if stillPending {
		delete(s.readHere, id)
		if i, ok := s.index[id]; ok && !s.closed {
			s.items[i].Read = false
			s.commitLocked()
		}
	}
	s.mu.Unlock()
	s.deliver()

	return ReadRolledBack, &domain.PersistenceError{ID: id, Err: err}
}

func (s *Store) snapshotLocked() Snapshot {
	items := make([]domain.Notification, len(s.items))
	copy(items, s.items)
	return Snapshot{Items: items, UnreadCount: CountUnread(items), Version: s.version}
}

func (s *Store) commitLocked() {
	s.version = versions.Add(1)
	s.latest = s.snapshotLocked()
}

func (s *Store) deliver() {
	s.mu.Lock()
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.delivering = false
			s.mu.Unlock()
			panic(r)
		}
	}()
	for !s.closed && s.latest.Version > s.delivered {
		snap := s.latest
		s.delivered = snap.Version
		subs := make([]subscriber, len(s.subs))
		copy(subs, s.subs)
		s.mu.Unlock()

		for _, sub := range subs {
			sub.fn(snap)
		}

		s.mu.Lock()
	}
	s.delivering = false
	s.mu.Unlock()
}
