package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/SE121-UIT/inventory-service/core/es"
)

const defaultSubjectPrefix = "inventory.es"

type EventStoreConfig struct {
	Connect       Connector    // Connect creates the underlying NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	SubjectPrefix string       // SubjectPrefix under which stream subjects live
	StreamName    string       // StreamName of the backing JetStream stream
}

// EventStore is the JetStream-backed event log. Each aggregate stream maps
// to one subject under the prefix; the JetStream stream sequence is the
// global log position, and the per-subject event count is the revision.
//
// Optimistic concurrency on append uses the expected-last-subject-sequence
// guard, so the revision check holds even against concurrent writers on
// other connections. Appends take one event per call: JetStream publishes
// have no batch atomicity, so a partial append could not be rolled back.
type EventStore struct {
	nc            *natsgo.Conn
	closeNc       closeFunc
	js            jetstream.JetStream
	stream        jetstream.Stream
	log           *slog.Logger
	subjectPrefix string
	streamName    string
}

func NewEventStore(cfg EventStoreConfig) (*EventStore, error) {
	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, closeNatsCon, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	streamName := strings.ToUpper(cfg.StreamName)
	if streamName == "" {
		streamName = "INVENTORY_ES"
	}

	subjectPrefix := cfg.SubjectPrefix
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}

	log = log.With(
		slog.String("store", "nats_js"),
		slog.String("stream", streamName),
		slog.String("subject_prefix", subjectPrefix),
	)

	log.Debug("ensuring stream")

	stream, streamInfo, err := ensureStream(js, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{fmt.Sprintf("%s.>", subjectPrefix)},
		Storage:  jetstream.FileStorage,
		FirstSeq: 1,
	})
	if err != nil {
		return nil, err
	}

	log.Debug("ensured", slog.Any("stream", streamInfo))

	return &EventStore{
		nc:            nc,
		closeNc:       closeNatsCon,
		js:            js,
		log:           log,
		stream:        stream,
		subjectPrefix: subjectPrefix,
		streamName:    streamName,
	}, nil
}

func (e *EventStore) Close() error {
	e.js.CleanupPublisher()
	e.closeNc()
	e.log.Debug("closed event store")
	return nil
}

func (e *EventStore) subjectForStream(streamID string) string {
	return fmt.Sprintf("%s.%s", e.subjectPrefix, streamID)
}

func (e *EventStore) ReadStream(ctx context.Context, streamID string) ([]es.RecordedEvent, error) {
	if streamID == "" {
		return nil, errors.New("stream id is empty")
	}

	subj := e.subjectForStream(streamID)

	last, err := e.lastEventForSubject(ctx, subj)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, es.ErrStreamNotFound
	}
	endPos := last.Position

	cc, err := e.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		DeliverPolicy:  jetstream.DeliverAllPolicy,
		FilterSubjects: []string{subj},
	})
	if err != nil {
		return nil, err
	}

	return e.fetchUntil(ctx, cc, endPos)
}

func (e *EventStore) fetchUntil(
	ctx context.Context,
	cc jetstream.Consumer,
	endPos es.Position,
) (loaded []es.RecordedEvent, err error) {
outer:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		mb, err := cc.FetchNoWait(100)
		if err != nil {
			return nil, err
		}
		if mb.Error() != nil {
			return nil, mb.Error()
		}

		empty := true
		for msg := range mb.Messages() {
			empty = false
			ev, err := decodeMsg(msg)
			if err != nil {
				return nil, fmt.Errorf("decode message: %w", err)
			}
			loaded = append(loaded, *ev)

			if endPos > 0 && ev.Position >= endPos {
				break outer
			}
		}
		if empty {
			break
		}
	}

	return loaded, nil
}

func (e *EventStore) Append(
	ctx context.Context,
	streamID string,
	expect es.ExpectedRevision,
	events []es.ProposedEvent,
) (*es.AppendResult, error) {
	if len(events) == 0 {
		return nil, es.ErrStoreNoEvents
	}
	// each publish is guarded and acked on its own, so a multi-event batch
	// could land partially on a mid-batch failure; refuse it outright
	if len(events) > 1 {
		return nil, fmt.Errorf("jetstream store appends one event per call, got %d", len(events))
	}
	if streamID == "" {
		return nil, errors.New("stream id is empty")
	}

	subj := e.subjectForStream(streamID)

	last, err := e.lastEventForSubject(ctx, subj)
	if err != nil {
		return nil, fmt.Errorf("get last event: %w", err)
	}

	var (
		lastSubjectSeq uint64
		nextRevision   es.Revision
	)
	if last != nil {
		lastSubjectSeq = last.Position.Uint64()
		nextRevision = last.Revision + 1
	}

	switch {
	case expect == es.ExpectedAny:
	case expect == es.ExpectedNoStream:
		if last != nil {
			return nil, es.ErrStreamAlreadyExists
		}
	default:
		if last == nil {
			return nil, es.ErrStreamNotFound
		}
		if es.Expect(last.Revision) != expect {
			return nil, fmt.Errorf(
				"%w: expected revision %d, stream %s is at %d",
				es.ErrConcurrencyConflict, expect, streamID, last.Revision,
			)
		}
	}

	pe := events[0]
	re := es.RecordedEvent{
		ID:         pe.ID,
		StreamID:   streamID,
		Type:       pe.Type,
		Revision:   nextRevision,
		OccurredAt: pe.OccurredAt,
		Data:       pe.Data,
	}
	pos, err := e.append(ctx, subj, re, lastSubjectSeq)
	if err != nil {
		return nil, err
	}

	return &es.AppendResult{NextRevision: nextRevision, Position: pos}, nil
}

// append publishes one event, guarding the subject's last sequence so a
// concurrent append on the same stream loses deterministically.
func (e *EventStore) append(
	ctx context.Context,
	subject string,
	re es.RecordedEvent,
	expectLastSubjectSeq uint64,
) (es.Position, error) {
	re.OccurredAt = nonZero(re.OccurredAt)
	if err := re.Validate(); err != nil {
		return 0, fmt.Errorf("validate event: %w", err)
	}

	msg := natsgo.NewMsg(subject)
	msg.Header.Set("x-event-type", re.Type)
	msg.Header.Set("x-stream-id", re.StreamID)

	data, err := json.Marshal(re)
	if err != nil {
		return 0, err
	}
	msg.Data = data

	ack, err := e.js.PublishMsg(
		ctx,
		msg,
		jetstream.WithMsgID(re.ID),
		jetstream.WithExpectLastSequencePerSubject(expectLastSubjectSeq),
	)
	if err != nil {
		var apiErr *jetstream.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
			if expectLastSubjectSeq == 0 {
				return 0, es.ErrStreamAlreadyExists
			}
			return 0, fmt.Errorf("%w: stream %s moved past sequence %d",
				es.ErrConcurrencyConflict, re.StreamID, expectLastSubjectSeq)
		}
		return 0, fmt.Errorf("append to subject %s: %w", subject, err)
	}

	return es.Position(ack.Sequence), nil
}

func (e *EventStore) SubscribeAll(ctx context.Context, from es.Position) (es.Subscription, error) {
	info, err := e.stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream info: %w", err)
	}
	maxPos := es.Position(info.State.LastSeq)

	consumerCfg := jetstream.ConsumerConfig{
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		FilterSubjects:    []string{fmt.Sprintf("%s.>", e.subjectPrefix)},
		InactiveThreshold: 10 * time.Minute,
	}
	if from > 1 {
		consumerCfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerCfg.OptStartSeq = from.Uint64()
	}

	consumer, err := e.stream.CreateOrUpdateConsumer(ctx, consumerCfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	ch := make(chan es.RecordedEvent, 64)
	ctx, cancel := context.WithCancel(ctx)

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// ack on receipt: redelivery is the checkpoint's concern, not ours
		if err := msg.Ack(); err != nil {
			e.log.Error("failed to ack message", slog.Any("error", err))
			return
		}

		ev, err := decodeMsg(msg)
		if err != nil {
			e.log.Error("failed to decode message", slog.Any("error", err))
			return
		}

		select {
		case ch <- *ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		cancel()
		return nil, err
	}

	stopOnce := sync.Once{}
	stop := func() {
		stopOnce.Do(func() { stopConsume(cancel, cc, ch) })
	}

	context.AfterFunc(ctx, stop)

	return &jsSubscription{ch: ch, cancel: stop, maxPos: maxPos}, nil
}

// drainCloser is the part of jetstream.ConsumeContext the teardown needs.
type drainCloser interface {
	Drain()
	Closed() <-chan struct{}
}

// stopConsume tears down a consume loop. Drain is non-blocking, so the
// channel must stay open until Closed fires: a callback that is mid-send
// would otherwise panic on the closed channel.
func stopConsume(cancel context.CancelFunc, cc drainCloser, ch chan es.RecordedEvent) {
	cancel()
	cc.Drain()
	<-cc.Closed()
	close(ch)
}

// lastEventForSubject returns the most recent event on the subject, or nil
// when the subject has no messages yet.
func (e *EventStore) lastEventForSubject(ctx context.Context, subject string) (*es.RecordedEvent, error) {
	raw, err := e.stream.GetLastMsgForSubject(ctx, subject)
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var re es.RecordedEvent
	if err := json.Unmarshal(raw.Data, &re); err != nil {
		return nil, fmt.Errorf("decode last message: %w", err)
	}
	re.Position = es.Position(raw.Sequence)
	return &re, nil
}

func decodeMsg(msg jetstream.Msg) (*es.RecordedEvent, error) {
	var re es.RecordedEvent
	if err := json.Unmarshal(msg.Data(), &re); err != nil {
		return nil, err
	}
	meta, err := msg.Metadata()
	if err != nil {
		return nil, err
	}
	re.Position = es.Position(meta.Sequence.Stream)
	return &re, nil
}

func ensureStream(js jetstream.JetStream, cfg jetstream.StreamConfig) (s jetstream.Stream, si *jetstream.StreamInfo, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*natsgo.DefaultTimeout)
	defer cancel()

	s, err = js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	si, err = s.Info(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, si, nil
}

func nonZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

type jsSubscription struct {
	ch     chan es.RecordedEvent
	cancel func()
	maxPos es.Position
}

func (s *jsSubscription) Chan() <-chan es.RecordedEvent { return s.ch }
func (s *jsSubscription) MaxPosition() es.Position      { return s.maxPos }
func (s *jsSubscription) Cancel()                       { s.cancel() }

var _ es.EventStore = (*EventStore)(nil)
