package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/axlan/dice-logger/internal/clock"
	"github.com/axlan/dice-logger/internal/logging"
	"github.com/axlan/dice-logger/internal/metrics"
	"github.com/axlan/dice-logger/internal/model"
	"github.com/axlan/dice-logger/internal/repository"
	"github.com/axlan/dice-logger/internal/transport"
)

// Topic suffixes recognized by the ingestor.
const (
	TopicLabelSuffix = "roll_label"
	TopicRollSuffix  = "roll"
)

// ErrMalformedMessage marks a payload that could not be decoded. The message is dropped.
var ErrMalformedMessage = errors.New("malformed message")

// MessageKind classifies an inbound message.
type MessageKind int

const (
	KindIgnored MessageKind = iota
	KindLabel
	KindRoll
	KindReconnect
)

func (k MessageKind) String() string {
	switch k {
	case KindLabel:
		return "label"
	case KindRoll:
		return "roll"
	case KindReconnect:
		return "reconnect"
	default:
		return "ignored"
	}
}

// Classify maps a message to its kind by topic suffix.
func Classify(msg transport.Message) MessageKind {
	switch {
	case msg.Reconnected:
		return KindReconnect
	case strings.HasSuffix(msg.Topic, TopicLabelSuffix):
		return KindLabel
	case strings.HasSuffix(msg.Topic, TopicRollSuffix):
		return KindRoll
	default:
		return KindIgnored
	}
}

// Session is the state carried between messages: the device clock and the active label.
type Session struct {
	Clock clock.Reconstructor
	Label string
}

// NewSession returns a session with no clock epoch and the default label.
func NewSession() Session {
	return Session{Label: model.DefaultLabel}
}

// Effect is the side effect a message asks for.
type Effect struct {
	Kind     MessageKind
	Insert   *model.RollEvent
	Resynced bool
}

// Step applies one message to the session and returns the next session and
// the effect to perform. It does no I/O. On error the session is returned
// unchanged and the message should be dropped.
func Step(s Session, msg transport.Message, now time.Time) (Session, Effect, error) {
	kind := Classify(msg)
	effect := Effect{Kind: kind}

	switch kind {
	case KindReconnect:
		s.Clock.Reset()

	case KindLabel:
		if !utf8.Valid(msg.Payload) {
			return s, effect, fmt.Errorf("%w: label on %s is not valid text", ErrMalformedMessage, msg.Topic)
		}
		s.Label = string(msg.Payload)

	case KindRoll:
		p, err := DecodeRoll(msg.Payload)
		if err != nil {
			return s, effect, fmt.Errorf("%w: roll on %s: %v", ErrMalformedMessage, msg.Topic, err)
		}
		before := s.Clock.Resyncs()
		ts := s.Clock.Reconstruct(*p.Time, now)
		effect.Resynced = s.Clock.Resyncs() != before
		effect.Insert = &model.RollEvent{
			Timestamp: model.UnixSeconds(ts),
			Name:      *p.Name,
			State:     model.RollState(*p.State),
			Label:     s.Label,
			Value:     *p.Val,
		}
	}
	return s, effect, nil
}

// DecodeRoll parses a roll payload. All four fields are required.
func DecodeRoll(payload []byte) (model.RollPayload, error) {
	var p model.RollPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, err
	}
	var missing []string
	if p.Time == nil {
		missing = append(missing, "time")
	}
	if p.Name == nil {
		missing = append(missing, "name")
	}
	if p.State == nil {
		missing = append(missing, "state")
	}
	if p.Val == nil {
		missing = append(missing, "val")
	}
	if len(missing) > 0 {
		return p, fmt.Errorf("missing field(s) %s", strings.Join(missing, ", "))
	}
	return p, nil
}

// Ingestor consumes broker messages one at a time and stores roll events.
// All session state is owned by the goroutine running Run.
type Ingestor struct {
	store   repository.RollInserter
	metrics metrics.Recorder
	now     func() time.Time
	log     *zerolog.Logger
	session Session
}

// NewIngestor creates an ingestor writing to store.
func NewIngestor(store repository.RollInserter, rec metrics.Recorder) *Ingestor {
	if rec == nil {
		rec = metrics.Noop()
	}
	return &Ingestor{
		store:   store,
		metrics: rec,
		now:     time.Now,
		log:     logging.Component("ingest"),
		session: NewSession(),
	}
}

// Session returns a copy of the current session.
func (i *Ingestor) Session() Session {
	return i.session
}

// Run subscribes under root and processes messages until ctx is cancelled or
// the subscription closes. A storage failure stops the loop with an error.
func (i *Ingestor) Run(ctx context.Context, sub transport.Subscriber, root string) error {
	ch, cancel, err := sub.Subscribe(root)
	if err != nil {
		return fmt.Errorf("ingest: subscribe: %w", err)
	}
	defer cancel()

	i.log.Info().Str("root", root).Msg("ingestion started")
	for {
		select {
		case <-ctx.Done():
			i.log.Info().Msg("ingestion stopping")
			return nil
		case msg, ok := <-ch:
			if !ok {
				i.log.Info().Msg("subscription channel closed")
				return nil
			}
			if err := i.Handle(ctx, msg); err != nil {
				return err
			}
		}
	}
}

// Handle processes a single message to completion. Malformed messages are
// logged and dropped; only storage failures are returned.
func (i *Ingestor) Handle(ctx context.Context, msg transport.Message) error {
	next, effect, err := Step(i.session, msg, i.now())
	i.metrics.IncMessages(effect.Kind.String())
	if err != nil {
		i.metrics.IncMalformed(effect.Kind.String())
		i.log.Warn().Err(err).Str("topic", msg.Topic).Msg("dropping message")
		return nil
	}
	i.session = next

	switch effect.Kind {
	case KindReconnect:
		i.log.Info().Msg("broker reconnected, device clock reset")
	case KindLabel:
		i.log.Info().Msgf("Label set to %s", i.session.Label)
	}
	if effect.Resynced {
		i.metrics.IncClockResyncs()
		i.log.Info().Msg("device counter went backward, clock resynced")
	}

	if effect.Insert == nil {
		return nil
	}
	ev := *effect.Insert
	if err := i.store.Insert(ctx, ev); err != nil {
		return fmt.Errorf("ingest: store roll: %w", err)
	}
	i.metrics.IncRollsStored(ev.State.String())
	if ev.Settled() {
		i.log.Info().Msgf("%.3f: %s rolled %d", ev.Timestamp, ev.Name, ev.Value)
	}
	return nil
}
