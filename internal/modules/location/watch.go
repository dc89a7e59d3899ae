// README: Position-driven re-ranking with an explicit cancellation handle.
package location

import (
	"context"
	"sync"

	"tidyhome/internal/types"
)

// Subscription is a running Watch. Unsubscribe stops it and waits for its
// goroutine to exit; Done is closed once it has.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
	<-s.done
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Watch re-ranks open appointments each time a position arrives and hands
// the result to fn. It stops when ctx ends, positions is closed or the
// subscription is cancelled. fn runs on the watch goroutine.
func (s *Service) Watch(ctx context.Context, positions <-chan types.Point, mode SortMode, fn func([]RankedAppointment, error)) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-positions:
				if !ok {
					return
				}
				ranked, err := s.RankOpen(ctx, &p, mode)
				if ctx.Err() != nil {
					return
				}
				fn(ranked, err)
			}
		}
	}()
	return sub
}
