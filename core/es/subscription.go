package es

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Projection consumes recorded events to build a read model or index.
// Handlers must be idempotent: the subscription delivers at least once.
type Projection interface {
	Name() string
	Handle(ctx context.Context, re RecordedEvent, event any) error
}

// CatchUpSubscription tails the full event log from a durable checkpoint and
// dispatches every event to its registered projections in order.
//
// The checkpoint is persisted only after all projections handled the event,
// so a projection failure stops the run without advancing; the event is
// redelivered on restart. All projections share one checkpoint: when a later
// handler fails after an earlier one succeeded, the earlier (idempotent)
// work is redone.
//
// The subscription moves starting -> catching-up -> live and has no terminal
// state; it runs for the process lifetime.
type CatchUpSubscription struct {
	id          string
	store       EventStore
	decoder     Decoder
	cps         CheckpointStore
	projections []Projection
	log         *slog.Logger
	metrics     ESMetrics

	live      chan struct{}
	isLive    atomic.Bool
	started   atomic.Bool
	closeChan chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

func NewCatchUpSubscription(
	id string,
	store EventStore,
	decoder Decoder,
	cps CheckpointStore,
	projections []Projection,
	opts ...SubscriptionOption,
) *CatchUpSubscription {
	options := newSubscriptionOpts(opts...)
	log := options.log
	if log == nil {
		log = slog.Default()
	}
	return &CatchUpSubscription{
		id:          id,
		store:       store,
		decoder:     decoder,
		cps:         cps,
		projections: projections,
		log:         log.With(slog.String("subscription", id)),
		metrics:     options.metrics,
		live:        make(chan struct{}),
		closeChan:   make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Live reports whether the subscription has caught up with the log.
func (s *CatchUpSubscription) Live() bool { return s.isLive.Load() }

func (s *CatchUpSubscription) Start(ctx context.Context) error {
	from := Position(0)
	last, err := s.cps.Load(ctx, s.id)
	if err != nil && !errors.Is(err, ErrCheckpointNotFound) {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if err == nil {
		from = last + 1
	}

	sub, err := s.store.SubscribeAll(ctx, from)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	liveAt := sub.MaxPosition()
	if liveAt == 0 || liveAt == last {
		s.goLive()
	}

	s.log.Info(
		"subscribed",
		slog.Uint64("from", from.Uint64()),
		slog.Uint64("live_at", liveAt.Uint64()),
		slog.Int("projections", len(s.projections)),
	)

	s.started.Store(true)

	go func() {
		defer func() {
			sub.Cancel()
			s.log.Info("stopped")
			close(s.done)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.closeChan:
				return

			case re, ok := <-sub.Chan():
				if !ok {
					return
				}
				if err := s.handle(ctx, re); err != nil {
					// do not advance the checkpoint: this event is
					// redelivered on the next start
					s.log.Error(
						"projection failed, stopping",
						slog.Any("error", err),
						slog.Uint64("position", re.Position.Uint64()),
					)
					return
				}
				if !s.isLive.Load() && re.Position >= liveAt {
					s.goLive()
				}
				if liveAt > re.Position {
					s.metrics.SubscriptionLag(s.id, int64(liveAt-re.Position))
				} else {
					s.metrics.SubscriptionLag(s.id, 0)
				}
			}
		}
	}()

	return nil
}

func (s *CatchUpSubscription) handle(ctx context.Context, re RecordedEvent) error {
	live := s.isLive.Load()

	defer s.metrics.ProjectionEventDuration(re.Type, live).ObserveDuration()

	ev, err := s.decoder.Decode(re)
	if err != nil {
		s.metrics.ProjectionEventProcessed(re.Type, live, false)
		return fmt.Errorf("decode event: %w", err)
	}

	for _, p := range s.projections {
		if err := p.Handle(ctx, re, ev); err != nil {
			s.metrics.ProjectionEventProcessed(re.Type, live, false)
			return fmt.Errorf("projection %s: %w", p.Name(), err)
		}
	}

	if err := s.cps.Save(ctx, s.id, re.Position); err != nil {
		s.metrics.ProjectionEventProcessed(re.Type, live, false)
		return fmt.Errorf("save checkpoint: %w", err)
	}
	s.metrics.CheckpointSaved(s.id)
	s.metrics.ProjectionEventProcessed(re.Type, live, true)
	return nil
}

func (s *CatchUpSubscription) goLive() {
	if s.isLive.CompareAndSwap(false, true) {
		close(s.live)
		s.log.Debug("live")
	}
}

// Stop signals the run loop and waits for it to exit. When Start was never
// called, or failed before spawning the loop, there is nothing to wait for.
func (s *CatchUpSubscription) Stop() {
	s.closeOnce.Do(func() {
		close(s.closeChan)
		if s.started.Load() {
			<-s.done
		}
	})
}

// Done is closed when the subscription loop has exited, whether by Stop,
// context cancellation, or a projection failure.
func (s *CatchUpSubscription) Done() <-chan struct{} { return s.done }

type (
	subscriptionOpts struct {
		log     *slog.Logger
		metrics ESMetrics
	}

	SubscriptionOption interface {
		applyToSubscriptionOpts(*subscriptionOpts)
	}

	subscriptionLogOption struct{ l *slog.Logger }
)

func (o subscriptionLogOption) applyToSubscriptionOpts(opts *subscriptionOpts) { opts.log = o.l }

// WithLog sets the logger for the subscription.
func WithLog(l *slog.Logger) SubscriptionOption { return subscriptionLogOption{l: l} }

func newSubscriptionOpts(opts ...SubscriptionOption) subscriptionOpts {
	options := subscriptionOpts{metrics: NopESMetrics()}
	for _, opt := range opts {
		opt.applyToSubscriptionOpts(&options)
	}
	return options
}
