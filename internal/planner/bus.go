package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-mapper/internal/curriculum"
)

// EstimateUpdate is pushed to subscribers whenever a session's selection
// changes. Version increases with every change so receivers can drop
// updates that arrive out of order. Closed is set once when the session ends.
type EstimateUpdate struct {
	SessionID   string              `json:"session_id"`
	Version     int64               `json:"version"`
	Fingerprint string              `json:"fingerprint"`
	Selection   curriculum.Result   `json:"selection"`
	Estimate    curriculum.Estimate `json:"estimate"`
	Closed      bool                `json:"closed,omitempty"`
	At          time.Time           `json:"at"`
}

// Publisher delivers estimate updates to whoever displays them.
type Publisher interface {
	Publish(ctx context.Context, update EstimateUpdate) error
}

// Publishers fans an update out to every publisher and joins their errors.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, update EstimateUpdate) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, update); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const subscriberBuffer = 16

// Broker is an in-process publisher with per-session subscriptions.
// Slow subscribers miss updates rather than blocking the publisher.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[chan EstimateUpdate]struct{}
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan EstimateUpdate]struct{})}
}

// Subscribe returns a channel of updates for one session and a function
// that ends the subscription. The channel is closed on unsubscribe.
func (b *Broker) Subscribe(sessionID string) (<-chan EstimateUpdate, func()) {
	ch := make(chan EstimateUpdate, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan EstimateUpdate]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[sessionID][ch]; !ok {
				return
			}
			delete(b.subs[sessionID], ch)
			if len(b.subs[sessionID]) == 0 {
				delete(b.subs, sessionID)
			}
			close(ch)
		})
	}
}

// Publish delivers update to the session's subscribers without blocking.
func (b *Broker) Publish(_ context.Context, update EstimateUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[update.SessionID] {
		select {
		case ch <- update:
		default:
			slog.Warn("dropping estimate update for slow subscriber", "session_id", update.SessionID)
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions for a session.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, id)
	}
	b.closed = true
}

// redisClient is the subset of *redis.Client used for publishing.
type redisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes updates as JSON on "<prefix>:<session_id>".
type RedisPublisher struct {
	client redisClient
	prefix string
}

func NewRedisPublisher(client redisClient, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the pub/sub channel for a session.
func (p *RedisPublisher) Channel(sessionID string) string {
	return p.prefix + ":" + sessionID
}

func (p *RedisPublisher) Publish(ctx context.Context, update EstimateUpdate) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("redis publisher client is nil")
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal estimate update: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(update.SessionID), payload).Err(); err != nil {
		return fmt.Errorf("publish estimate update: %w", err)
	}
	return nil
}

// RelayRedis forwards every update published under prefix into the broker
// until ctx is done. It lets subscribers on one instance see updates made
// through another.
func RelayRedis(ctx context.Context, client *redis.Client, prefix string, b *Broker) error {
	pubsub := client.PSubscribe(ctx, prefix+":*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", prefix, err)
	}
	slog.Info("estimate relay started", "pattern", prefix+":*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			update, err := decodeUpdate(msg.Payload)
			if err != nil {
				slog.Warn("skipping malformed estimate update", "channel", msg.Channel, "error", err)
				continue
			}
			if want := strings.TrimPrefix(msg.Channel, prefix+":"); update.SessionID != want {
				slog.Warn("estimate update session mismatch", "channel", msg.Channel, "session_id", update.SessionID)
				continue
			}
			_ = b.Publish(ctx, update)
		}
	}
}

func decodeUpdate(payload string) (EstimateUpdate, error) {
	var update EstimateUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		return EstimateUpdate{}, err
	}
	if update.SessionID == "" {
		return EstimateUpdate{}, fmt.Errorf("session_id is empty")
	}
	return update, nil
}
