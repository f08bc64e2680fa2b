package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bargeh-api/internal/dto"
)

const (
	gradeEventUpdated   = "grade.updated"
	gradeFeedBufferSize = 16
)

// GradeEventPublisher announces grade changes.
type GradeEventPublisher interface {
	Publish(ctx context.Context, event dto.GradeEvent) error
}

// GradeEventBus fans grade events out to live feed subscribers of this node and,
// when a broker is configured, to the other API nodes.
type GradeEventBus interface {
	GradeEventPublisher
	Subscribe(assignmentID uint) (<-chan dto.GradeEvent, func())
	SubscriberCount(assignmentID uint) int
	Start(ctx context.Context)
}

type gradeEventEnvelope struct {
	Source string         `json:"source"`
	Event  dto.GradeEvent `json:"event"`
}

type gradeEventBus struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger

	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.GradeEvent]struct{}
}

// NewGradeEventBus builds the event bus. NATS is preferred over Redis pub/sub when
// both are available; with neither the bus only serves local subscribers.
func NewGradeEventBus(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) GradeEventBus {
	bus := &gradeEventBus{
		nodeID:      uuid.NewString(),
		logger:      logger.With().Str("component", "grade_event_bus").Logger(),
		subscribers: make(map[uint]map[chan dto.GradeEvent]struct{}),
	}
	if channelBase == "" {
		return bus
	}

	switch {
	case natsConn != nil:
		bus.nats = natsConn
		bus.natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	case redisClient != nil:
		bus.redis = redisClient
		bus.redisChannel = channelBase + ":events"
	}
	return bus
}

func (b *gradeEventBus) Start(ctx context.Context) {
	switch {
	case b.nats != nil:
		b.consumeNATS(ctx)
	case b.redis != nil:
		go b.consumeRedis(ctx)
	}
}

func (b *gradeEventBus) Publish(ctx context.Context, event dto.GradeEvent) error {
	if event.Type == "" {
		event.Type = gradeEventUpdated
	}
	b.deliver(event)

	if b.nats == nil && b.redis == nil {
		return nil
	}

	payload, err := json.Marshal(gradeEventEnvelope{Source: b.nodeID, Event: event})
	if err != nil {
		return err
	}

	if b.nats != nil {
		return b.nats.Publish(b.natsSubject, payload)
	}
	return b.redis.Publish(ctx, b.redisChannel, payload).Err()
}

func (b *gradeEventBus) Subscribe(assignmentID uint) (<-chan dto.GradeEvent, func()) {
	ch := make(chan dto.GradeEvent, gradeFeedBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[assignmentID]; !ok {
		b.subscribers[assignmentID] = make(map[chan dto.GradeEvent]struct{})
	}
	b.subscribers[assignmentID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subscribers, ok := b.subscribers[assignmentID]; ok {
				delete(subscribers, ch)
				if len(subscribers) == 0 {
					delete(b.subscribers, assignmentID)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

func (b *gradeEventBus) SubscriberCount(assignmentID uint) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[assignmentID])
}

// deliver hands the event to local subscribers without blocking; slow feeds drop events.
func (b *gradeEventBus) deliver(event dto.GradeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[event.AssignmentID] {
		select {
		case ch <- event:
		default:
			b.logger.Warn().Uint("assignment_id", event.AssignmentID).Msg("grading feed subscriber is slow, event dropped")
		}
	}
}

func (b *gradeEventBus) handleRemote(data []byte) {
	var envelope gradeEventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid grade event")
		return
	}
	if envelope.Source == b.nodeID {
		return
	}
	b.deliver(envelope.Event)
}

func (b *gradeEventBus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			b.logger.Error().Err(err).Msg("grade event redis subscription closed")
			return
		}
		b.handleRemote([]byte(msg.Payload))
	}
}

func (b *gradeEventBus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handleRemote(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to grade event subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain grade event subscription")
		}
	}()
}
