package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handler processes one decoded event. A non-nil error leaves the message
// pending so it is reclaimed and retried.
type Handler func(ctx context.Context, event Event) error

// Subscriber consumes one stream as a member of a consumer group. Messages
// are acknowledged only after the handler succeeds. Messages left pending
// longer than ClaimIdle, by this consumer or a crashed peer, are claimed
// and handled again before new ones are read.
type Subscriber struct {
	client        *redis.Client
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	claimIdle     time.Duration
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	ClaimIdle     time.Duration
}

func NewSubscriber(client *redis.Client, config SubscriberConfig) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.ClaimIdle == 0 {
		config.ClaimIdle = time.Minute
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		claimIdle:     config.ClaimIdle,
	}
}

// Start blocks until ctx ends, then returns ctx.Err().
func (s *Subscriber) Start(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.Printf("Subscriber started: stream=%s, group=%s, consumer=%s", s.stream, s.group, s.consumer)

	for {
		if ctx.Err() != nil {
			log.Printf("Subscriber stopping: %s", s.stream)
			return ctx.Err()
		}
		if err := s.poll(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Subscriber %s: %v", s.stream, err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (s *Subscriber) poll(ctx context.Context) error {
	if err := s.reclaim(ctx); err != nil {
		return err
	}
	return s.readNew(ctx)
}

// reclaim takes over messages whose handler failed or whose consumer died.
func (s *Subscriber) reclaim(ctx context.Context) error {
	messages, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: s.consumer,
		MinIdle:  s.claimIdle,
		Start:    "0-0",
		Count:    s.batchSize,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to claim pending messages: %w", err)
	}
	s.handleAll(ctx, messages)
	return nil
}

func (s *Subscriber) readNew(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		s.handleAll(ctx, stream.Messages)
	}
	return nil
}

func (s *Subscriber) handleAll(ctx context.Context, messages []redis.XMessage) {
	for _, message := range messages {
		event, err := decodeMessage(message)
		if err != nil {
			// Undecodable messages can never succeed; ack them so they stop cycling.
			log.Printf("Dropping message %s on %s: %v", message.ID, s.stream, err)
			s.ack(ctx, message.ID)
			continue
		}
		if err := s.handler(ctx, event); err != nil {
			log.Printf("Handler failed for %s %s: %v", event.Type, message.ID, err)
			continue
		}
		s.ack(ctx, message.ID)
	}
}

func (s *Subscriber) ack(ctx context.Context, id string) {
	if err := s.client.XAck(ctx, s.stream, s.group, id).Err(); err != nil {
		log.Printf("Failed to ACK message %s: %v", id, err)
	}
}

func decodeMessage(message redis.XMessage) (Event, error) {
	var event Event
	raw, ok := message.Values["event"].(string)
	if !ok {
		return event, fmt.Errorf("missing event field")
	}
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}

func isBusyGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}
