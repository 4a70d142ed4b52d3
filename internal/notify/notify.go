// Package notify is the change-notification channel between the game service
// and connected clients. Every committed mutation of a session-scoped row is
// published as a full row image on a Redis Pub/Sub channel keyed by table and
// session id.
//
// Delivery is at-least-once, best-effort and unordered across tables.
// Consumers must treat events as "this row changed, here is its current
// image" and re-derive state from it, never apply events as deltas, and must
// perform a full state fetch on (re)connect before trusting the stream.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Tables carried on the channel.
const (
	TableSessions     = "game_sessions"
	TableParticipants = "game_participants"
	TableAnswers      = "game_answers"
)

// Row-level operations.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Event is one row-level change. Row holds the full row image at commit time.
type Event struct {
	Table     string          `json:"table"`
	Op        string          `json:"op"`
	SessionID uuid.UUID       `json:"session_id"`
	Row       json.RawMessage `json:"row"`
}

func channelName(table string, sessionID uuid.UUID) string {
	return fmt.Sprintf("notify:%s:%s", table, sessionID.String())
}

// Publisher pushes change events onto the channel.
type Publisher struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewPublisher creates a publisher on the given Redis client.
func NewPublisher(rdb *redis.Client, logger zerolog.Logger) *Publisher {
	return &Publisher{
		redis:  rdb,
		logger: logger.With().Str("component", "notify_publisher").Logger(),
	}
}

// Publish sends one event. Publishing failures are reported to the caller so
// write paths can surface them; they never corrupt the stored row, which
// remains the source of truth for reconnecting clients.
func (p *Publisher) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.redis.Publish(ctx, channelName(evt.Table, evt.SessionID), data).Err(); err != nil {
		return fmt.Errorf("publish %s/%s: %w", evt.Table, evt.Op, err)
	}
	return nil
}

// Subscriber consumes change events for one session.
type Subscriber struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewSubscriber creates a subscriber on the given Redis client.
func NewSubscriber(rdb *redis.Client, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		redis:  rdb,
		logger: logger.With().Str("component", "notify_subscriber").Logger(),
	}
}

// Subscribe delivers change events for the given session and tables until the
// returned cancel function runs or ctx is done. After cancel returns, no
// further events are delivered: the forwarding goroutine checks a done signal
// before every send, so a late Redis message cannot race a torn-down consumer.
func (s *Subscriber) Subscribe(ctx context.Context, sessionID uuid.UUID, tables ...string) (<-chan Event, func(), error) {
	if len(tables) == 0 {
		tables = []string{TableSessions, TableParticipants, TableAnswers}
	}

	channels := make([]string, len(tables))
	for i, table := range tables {
		channels[i] = channelName(table, sessionID)
	}

	pubsub := s.redis.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Event, 64)
	done := make(chan struct{})

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					s.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping undecodable event")
					continue
				}
				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				case out <- evt:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}

	return out, cancel, nil
}
