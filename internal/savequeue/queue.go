// Package savequeue durably parks character saves that could not reach the
// database so they can be replayed later.
package savequeue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"realm-server/internal/character"
	"realm-server/internal/shared/redis"

	goredis "github.com/redis/go-redis/v9"
)

// takeScript reads and deletes a hash field in one step so a push landing
// between the two is never lost.
var takeScript = goredis.NewScript(`
local v = redis.call('HGET', KEYS[1], ARGV[1])
if v then
	redis.call('HDEL', KEYS[1], ARGV[1])
end
return v
`)

type Entry struct {
	CharacterID int64           `json:"character_id"`
	State       character.State `json:"state"`
	QueuedAt    time.Time       `json:"queued_at"`
}

// Saver is the write side of the character store.
type Saver interface {
	SaveCharacter(ctx context.Context, id int64, upd character.CharacterUpdate) error
}

// Queue keeps at most one pending entry per character: a newer push
// replaces an older one. Entries live in a Redis hash, or in memory when no
// Redis client is configured.
type Queue struct {
	client *redis.Client
	key    string

	mu     sync.Mutex
	memory map[int64]Entry

	logger *slog.Logger
}

func New(client *redis.Client, key string) *Queue {
	q := &Queue{
		client: client,
		key:    key,
		memory: make(map[int64]Entry),
		logger: slog.With("component", "save_queue"),
	}
	if client == nil {
		q.logger.Info("Save queue using in-memory fallback")
	}
	return q
}

func (q *Queue) durable() bool {
	return q.client != nil && q.client.Client != nil
}

func (q *Queue) Push(ctx context.Context, e Entry) error {
	logger := q.logger.With("operation", "push", "character_id", e.CharacterID)
	if e.QueuedAt.IsZero() {
		e.QueuedAt = time.Now()
	}

	if !q.durable() {
		q.mu.Lock()
		q.memory[e.CharacterID] = e
		q.mu.Unlock()
		logger.Warn("Character save queued in memory")
		return nil
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal queued save: %w", err)
	}
	if err := q.client.HSet(ctx, q.key, field(e.CharacterID), raw).Err(); err != nil {
		logger.Error("Failed to queue character save", "error", err)
		return fmt.Errorf("failed to queue character save: %w", err)
	}
	logger.Warn("Character save queued")
	return nil
}

// Take removes and returns the pending entry for a character, if any.
func (q *Queue) Take(ctx context.Context, characterID int64) (*Entry, error) {
	if !q.durable() {
		q.mu.Lock()
		defer q.mu.Unlock()
		e, ok := q.memory[characterID]
		if !ok {
			return nil, nil
		}
		delete(q.memory, characterID)
		return &e, nil
	}

	raw, err := takeScript.Run(ctx, q.client.Client, []string{q.key}, field(characterID)).Text()
	if err != nil {
		if stderrors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to take queued save: %w", err)
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("failed to decode queued save: %w", err)
	}
	return &e, nil
}

// Pending lists queued entries ordered by character id.
func (q *Queue) Pending(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	if !q.durable() {
		q.mu.Lock()
		for _, e := range q.memory {
			entries = append(entries, e)
		}
		q.mu.Unlock()
	} else {
		values, err := q.client.HVals(ctx, q.key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list queued saves: %w", err)
		}
		for _, v := range values {
			var e Entry
			if err := json.Unmarshal([]byte(v), &e); err != nil {
				q.logger.Error("Dropping undecodable queued save", "operation", "pending", "error", err)
				continue
			}
			entries = append(entries, e)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].CharacterID < entries[j].CharacterID })
	return entries, nil
}

// Replay writes every pending entry through saver. Entries that save are
// removed; the rest stay queued. It returns how many were saved.
func (q *Queue) Replay(ctx context.Context, saver Saver) (int, error) {
	logger := q.logger.With("operation", "replay")

	entries, err := q.Pending(ctx)
	if err != nil {
		return 0, err
	}

	saved := 0
	for _, e := range entries {
		taken, err := q.Take(ctx, e.CharacterID)
		if err != nil {
			return saved, err
		}
		if taken == nil {
			continue
		}
		if err := saver.SaveCharacter(ctx, taken.CharacterID, taken.State.Update()); err != nil {
			logger.Error("Queued save failed, keeping it", "character_id", taken.CharacterID, "error", err)
			if pushErr := q.requeue(ctx, *taken); pushErr != nil {
				return saved, pushErr
			}
			continue
		}
		saved++
	}

	if saved > 0 {
		logger.Info("Replayed queued saves", "saved", saved, "pending", len(entries)-saved)
	}
	return saved, nil
}

// requeue puts e back unless a newer entry was pushed meanwhile.
func (q *Queue) requeue(ctx context.Context, e Entry) error {
	if !q.durable() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if _, ok := q.memory[e.CharacterID]; !ok {
			q.memory[e.CharacterID] = e
		}
		return nil
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal queued save: %w", err)
	}
	if err := q.client.HSetNX(ctx, q.key, field(e.CharacterID), raw).Err(); err != nil {
		return fmt.Errorf("failed to requeue character save: %w", err)
	}
	return nil
}

// Run replays the queue every interval until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, saver Saver, interval time.Duration) {
	logger := q.logger.With("operation", "run")
	logger.Debug("Starting save queue flusher", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Save queue flusher stopped")
			return
		case <-ticker.C:
			if _, err := q.Replay(ctx, saver); err != nil {
				logger.Error("Failed to replay save queue", "error", err)
			}
		}
	}
}

func field(characterID int64) string {
	return strconv.FormatInt(characterID, 10)
}
