package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abrahamus/iBeekeeper/pkg/logger"
	"github.com/abrahamus/iBeekeeper/pkg/redis"
)

var ErrAlreadyResolved = errors.New("message already acked or nacked")

// Message is one delivery from the stream. A message stays pending in the
// consumer group until acked, so a crashed worker's messages get reclaimed.
type Message struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
	Attempts  int
	resolved  bool
	queue     *Queue
}

// Ack marks the message as processed and removes it from the pending list.
func (m *Message) Ack() error {
	if m.resolved {
		return ErrAlreadyResolved
	}
	m.resolved = true
	return m.queue.ack(m.ID)
}

// Nack leaves the message pending so it is reclaimed and retried after the
// visibility timeout.
func (m *Message) Nack() error {
	if m.resolved {
		return ErrAlreadyResolved
	}
	m.resolved = true
	return nil
}

// Handler processes one message. A nil return acks the message; an error
// leaves it pending for a later retry.
type Handler func(ctx context.Context, msg *Message) error

type Config struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

// Queue is a redis-streams backed job queue with consumer groups,
// at-least-once delivery and an optional dead letter stream.
type Queue struct {
	adapter redis.Adapter
	config  Config
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
}

type Stats struct {
	TotalMessages   int64
	PendingMessages int64
	ProcessedCount  int64
	FailedCount     int64
	ConsumerCount   int64
}

func New(adapter redis.Adapter, config Config) (*Queue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = config.Name + "-group"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	// BUSYGROUP on an existing group is the normal second-boot case
	if err := adapter.XGroupCreateMkStream(config.Name, config.ConsumerGroup, "0"); err != nil {
		logger.Debug("consumer group init", "queue", config.Name, "error", err)
	}

	return q, nil
}

// Publish appends a raw payload to the stream.
func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().Format(time.RFC3339),
		"attempts":  0,
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("publishing to %s: %w", q.config.Name, err)
	}

	if q.config.MaxLen > 0 {
		if err := q.adapter.XTrimApprox(q.config.Name, q.config.MaxLen); err != nil {
			logger.Warn("stream trim failed", "queue", q.config.Name, "error", err)
		}
	}
	return id, nil
}

// PublishJSON marshals the payload and appends it to the stream.
func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	return q.Publish(ctx, encoded, metadata)
}

// Consume starts the poll loop. The handler's return value decides the ack.
func (q *Queue) Consume(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}
	q.handler = handler
	q.wg.Add(1)
	go q.consumeLoop()
	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.readNew()
			q.reclaimStuck()
		}
	}
}

func (q *Queue) readNew() {
	messages, err := q.adapter.XReadGroup(
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.Name,
		">",
		q.config.BatchSize,
	)
	if err != nil {
		if !errors.Is(err, redis.NilError) {
			logger.Warn("queue read failed", "queue", q.config.Name, "error", err)
		}
		return
	}

	for _, raw := range messages {
		q.dispatch(q.decode(raw))
	}
}

// reclaimStuck takes over messages another consumer read but never acked
// within the visibility timeout.
func (q *Queue) reclaimStuck() {
	pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup)
	if err != nil || pending == nil || pending.Count == 0 {
		return
	}

	entries, err := q.adapter.XPendingExt(q.config.Name, q.config.ConsumerGroup, "-", "+", 100)
	if err != nil || len(entries) == 0 {
		return
	}

	// delivery counts live in the pending entries list, not the message
	// body, so they survive consumer crashes and repeated reclaims
	var stale []string
	deliveries := make(map[string]int64)
	for _, entry := range entries {
		if entry.Idle >= q.config.VisibilityTimeout {
			stale = append(stale, entry.ID)
			deliveries[entry.ID] = entry.RetryCount
		}
	}
	if len(stale) == 0 {
		return
	}

	claimed, err := q.adapter.XClaim(
		q.config.Name,
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.VisibilityTimeout,
		stale...,
	)
	if err != nil {
		logger.Warn("queue claim failed", "queue", q.config.Name, "error", err)
		return
	}

	for _, raw := range claimed {
		msg := q.decode(raw)
		msg.Attempts = int(deliveries[msg.ID])
		q.dispatch(msg)
	}
}

func (q *Queue) dispatch(msg *Message) {
	if msg.Attempts >= q.config.MaxRetries {
		q.deadLetter(msg)
		if err := q.ack(msg.ID); err != nil {
			logger.Warn("queue ack failed", "queue", q.config.Name, "id", msg.ID, "error", err)
		}
		q.failed.Add(1)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, msg); err != nil {
		// not acked, reclaimed after the visibility timeout
		q.failed.Add(1)
		return
	}
	if !msg.resolved {
		if err := q.ack(msg.ID); err != nil {
			logger.Warn("queue ack failed", "queue", q.config.Name, "id", msg.ID, "error", err)
			return
		}
	}
	q.processed.Add(1)
}

func (q *Queue) ack(messageID string) error {
	return q.adapter.XAck(q.config.Name, q.config.ConsumerGroup, messageID)
}

func (q *Queue) deadLetter(msg *Message) {
	if !q.config.EnableDLQ {
		return
	}

	values := map[string]interface{}{
		"data":           string(msg.Data),
		"original_id":    msg.ID,
		"attempts":       msg.Attempts,
		"failed_at":      time.Now().Format(time.RFC3339),
		"original_queue": q.config.Name,
	}
	for k, v := range msg.Metadata {
		values["meta_"+k] = v
	}

	if _, err := q.adapter.XAdd(q.config.Name+":dlq", values); err != nil {
		logger.Error("dead letter publish failed", "queue", q.config.Name, "id", msg.ID, "error", err)
	}
}

func (q *Queue) decode(raw redis.StreamMessage) *Message {
	msg := &Message{
		ID:       raw.ID,
		Metadata: make(map[string]string),
		queue:    q,
	}

	for k, v := range raw.Values {
		val, ok := v.(string)
		if !ok {
			continue
		}
		switch {
		case k == "data":
			msg.Data = []byte(val)
		case k == "timestamp":
			if ts, err := time.Parse(time.RFC3339, val); err == nil {
				msg.Timestamp = ts
			}
		case k == "attempts":
			if n, err := strconv.Atoi(val); err == nil {
				msg.Attempts = n
			}
		case len(k) > 5 && k[:5] == "meta_":
			msg.Metadata[k[5:]] = val
		}
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return msg
}

// Stop cancels the poll loop and waits for in-flight handlers.
func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats() (*Stats, error) {
	total, err := q.adapter.XLen(q.config.Name)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalMessages:  total,
		ProcessedCount: q.processed.Load(),
		FailedCount:    q.failed.Load(),
	}

	if pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup); err == nil && pending != nil {
		stats.PendingMessages = pending.Count
		stats.ConsumerCount = int64(len(pending.Consumers))
	}
	return stats, nil
}
