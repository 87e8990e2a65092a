package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/domain"
)

// SourceClient fetches one feed for the holder of token. It returns a
// *domain.AuthError for a missing or rejected credential and a
// *domain.NetworkError for anything transient.
type SourceClient interface {
	Source() domain.Source
	Fetch(ctx context.Context, token string) ([]domain.Notification, error)
}

// Report summarizes one refresh.
type Report struct {
	Loaded map[domain.Source]int
	Failed map[domain.Source]error
}

func (r Report) FailedSources() []domain.Source {
	out := make([]domain.Source, 0, len(r.Failed))
	for src := range r.Failed {
		out = append(out, src)
	}
	return out
}

type Aggregator struct {
	clients      []SourceClient
	fetchTimeout time.Duration
	logger       *zap.Logger
}

// NewAggregator fetches clients in the given order. A zero fetchTimeout
// leaves deadlines to the caller's context.
func NewAggregator(clients []SourceClient, fetchTimeout time.Duration, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{clients: clients, fetchTimeout: fetchTimeout, logger: logger}
}

type fetchResult struct {
	items []domain.Notification
	err   error
}

// Refresh fetches every source in parallel and loads the results into store
// in registration order. A failing source contributes nothing and does not
// hold back the others. If any source rejected the credential the first
// *domain.AuthError is returned after loading. Nothing is loaded when ctx
// ends before the fetches complete.
func (a *Aggregator) Refresh(ctx context.Context, store *Store, token string) (Report, error) {
	results := make([]fetchResult, len(a.clients))

	var wg sync.WaitGroup
	for i, c := range a.clients {
		wg.Add(1)
		go func(i int, c SourceClient) {
			defer wg.Done()
			fctx := ctx
			if a.fetchTimeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(ctx, a.fetchTimeout)
				defer cancel()
			}
			items, err := c.Fetch(fctx, token)
			results[i] = fetchResult{items: items, err: err}
		}(i, c)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	report := Report{
		Loaded: make(map[domain.Source]int, len(a.clients)),
		Failed: make(map[domain.Source]error),
	}
	var authErr *domain.AuthError
	loads := make([]domain.SourceResult, 0, len(a.clients))

	for i, c := range a.clients {
		src := c.Source()
		res := results[i]
		if res.err != nil {
			report.Failed[src] = res.err
			var ae *domain.AuthError
			switch {
			case errors.As(res.err, &ae):
				sourceFetchTotal.WithLabelValues(string(src), "auth_error").Inc()
				if authErr == nil {
					authErr = ae
				}
			default:
				sourceFetchTotal.WithLabelValues(string(src), "network_error").Inc()
			}
			a.logger.Warn("[Inbox] source fetch failed", zap.String("source", string(src)), zap.Error(res.err))
			loads = append(loads, domain.SourceResult{Source: src})
			continue
		}
		sourceFetchTotal.WithLabelValues(string(src), "ok").Inc()
		report.Loaded[src] = len(res.items)
		loads = append(loads, domain.SourceResult{Source: src, Items: res.items})
	}

	if err := store.Load(loads); err != nil {
		return report, err
	}
	if authErr != nil {
		return report, authErr
	}
	return report, nil
}
