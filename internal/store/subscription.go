package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/valpere/translateme/internal"
)

type subscription struct {
	store    *Store
	onUpdate func([]internal.TranslationRecord)
	onError  func(error)

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// SubscribeOrdered opens a live view of the collection ordered by timestamp,
// newest first. onUpdate receives the full list once on subscription and
// again after every change; several changes in quick succession may be
// delivered as one update. onError receives snapshot failures; the
// subscription stays open after an error. Callbacks of one subscription run
// one at a time on a dedicated goroutine.
//
// The subscription ends when the returned handle is closed, when ctx is
// cancelled or when the Store is closed. Close must not be called from inside
// a callback.
func (s *Store) SubscribeOrdered(ctx context.Context, onUpdate func([]internal.TranslationRecord), onError func(error)) (internal.Subscription, error) {
	if onUpdate == nil {
		return nil, errors.New("onUpdate callback is required")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: store is closed", ErrPersistence)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		store:    s,
		onUpdate: onUpdate,
		onError:  onError,
		wake:     make(chan struct{}, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	sub.signal()
	go sub.run(ctx)

	return sub, nil
}

func (sub *subscription) signal() {
	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

func (sub *subscription) run(ctx context.Context) {
	defer close(sub.done)
	defer sub.store.remove(sub)

	var tick <-chan time.Time
	var version int64
	if interval := sub.store.pollInterval; interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C

		v, err := sub.store.dataVersion(ctx)
		if err != nil && ctx.Err() == nil {
			sub.store.log.Warn("failed to read data version", "error", err)
		}
		version = v
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.wake:
			sub.refresh(ctx)
		case <-tick:
			v, err := sub.store.dataVersion(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				sub.store.log.Warn("failed to read data version", "error", err)
				continue
			}
			if v != version {
				version = v
				sub.refresh(ctx)
			}
		}
	}
}

func (sub *subscription) refresh(ctx context.Context) {
	records, err := sub.store.List(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if sub.onError != nil {
			sub.onError(err)
		} else {
			sub.store.log.Warn("history snapshot failed", "error", err)
		}
		return
	}
	sub.store.log.Debug("history snapshot", "count", len(records))
	sub.onUpdate(records)
}

// Close stops delivery and waits for an in-flight callback to return.
// It is safe to call more than once.
func (sub *subscription) Close() error {
	sub.once.Do(sub.cancel)
	<-sub.done
	return nil
}

func (s *Store) remove(sub *subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}
