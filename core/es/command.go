package es

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// CommandHandler orchestrates "read stream, aggregate, decide, append with
// concurrency guard" against one aggregate family. T is the aggregate state
// produced by the reducer.
//
// On success exactly one event is appended; any validation failure appends
// nothing. Concurrency conflicts are surfaced as typed errors for the caller
// to retry by re-reading.
type CommandHandler[T any] struct {
	log     *slog.Logger
	store   EventStore
	decoder Decoder
	reduce  Reducer[T]
	metrics ESMetrics
}

func NewCommandHandler[T any](
	log *slog.Logger,
	store EventStore,
	decoder Decoder,
	reduce Reducer[T],
	opts ...CommandHandlerOption,
) *CommandHandler[T] {
	options := newCommandHandlerOpts(opts...)
	if log == nil {
		log = slog.Default()
	}
	return &CommandHandler[T]{
		log:     log.With(slog.String("handler", "command")),
		store:   store,
		decoder: decoder,
		reduce:  reduce,
		metrics: options.metrics,
	}
}

// Create appends the first event of a new stream. The builder produces the
// creation event from the command; the append expects the stream to not yet
// exist. A concurrent creation surfaces as ErrStreamAlreadyExists.
func (h *CommandHandler[T]) Create(
	ctx context.Context,
	streamID string,
	build func() (TypedEvent, error),
) (*AppendResult, error) {
	ev, err := build()
	if err != nil {
		return nil, err
	}

	defer h.metrics.StoreAppendDuration(streamID).ObserveDuration()

	res, err := AppendOne(ctx, h.store, streamID, ExpectedNoStream, ev)
	if err != nil {
		if errors.Is(err, ErrStreamAlreadyExists) {
			h.metrics.ConcurrencyConflict(streamID)
		}
		return nil, fmt.Errorf("create stream %s: %w", streamID, err)
	}

	h.log.Debug(
		"created",
		slog.String("stream", streamID),
		slog.String("event", ev.EventType()),
	)
	return res, nil
}

// Update reads the full stream, folds it to current state, lets the decider
// validate invariants and produce the next event, and appends it expecting
// the revision observed during the read. Another writer appending in between
// surfaces as ErrConcurrencyConflict; the caller must retry by re-reading.
func (h *CommandHandler[T]) Update(
	ctx context.Context,
	streamID string,
	decide func(state *T) (TypedEvent, error),
) (*AppendResult, error) {
	events, err := h.store.ReadStream(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("read stream %s: %w", streamID, err)
	}

	state, err := AggregateStream(h.decoder, events, h.reduce)
	if err != nil {
		return nil, err
	}

	ev, err := decide(state)
	if err != nil {
		return nil, err
	}

	lastRevision := events[len(events)-1].Revision

	defer h.metrics.StoreAppendDuration(streamID).ObserveDuration()

	res, err := AppendOne(ctx, h.store, streamID, Expect(lastRevision), ev)
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			h.metrics.ConcurrencyConflict(streamID)
		}
		return nil, fmt.Errorf("update stream %s: %w", streamID, err)
	}

	h.log.Debug(
		"updated",
		slog.String("stream", streamID),
		slog.String("event", ev.EventType()),
		res.NextRevision.SlogAttr(),
	)
	return res, nil
}

// GetState rebuilds the current aggregate state by folding the full stream.
func (h *CommandHandler[T]) GetState(ctx context.Context, streamID string) (*T, error) {
	events, err := h.store.ReadStream(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("read stream %s: %w", streamID, err)
	}
	return AggregateStream(h.decoder, events, h.reduce)
}

type (
	commandHandlerOpts struct {
		metrics ESMetrics
	}

	CommandHandlerOption interface {
		applyToCommandHandlerOpts(*commandHandlerOpts)
	}
)

func newCommandHandlerOpts(opts ...CommandHandlerOption) commandHandlerOpts {
	options := commandHandlerOpts{metrics: NopESMetrics()}
	for _, opt := range opts {
		opt.applyToCommandHandlerOpts(&options)
	}
	return options
}
