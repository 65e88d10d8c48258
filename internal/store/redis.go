package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Gurkunwar/standupbot/internal/bot/standup"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL    = 24 * time.Hour
	activeRunsKey = "standup:runs:active"
)

var ErrNoCheckpoint = errors.New("no checkpoint for run")

func InitRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		url = "redis://localhost:6379/0"
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

// Checkpoints keeps every active run's definition and per-member snapshots in
// Redis so a restarted process can resume where it stopped.
type Checkpoints struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCheckpoints(rdb *redis.Client, ttl time.Duration) *Checkpoints {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Checkpoints{rdb: rdb, ttl: ttl}
}

func membersKey(runID string) string    { return "standup:run:" + runID + ":members" }
func definitionKey(runID string) string { return "standup:run:" + runID + ":definition" }

// SaveRun records the run and marks it active.
func (c *Checkpoints) SaveRun(ctx context.Context, run standup.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, definitionKey(run.ID), data, c.ttl)
		pipe.SAdd(ctx, activeRunsKey, run.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// Save implements standup.Checkpointer.
func (c *Checkpoints) Save(ctx context.Context, runID string, member standup.MemberSnapshot) error {
	data, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("encode member %s: %w", member.MemberID, err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, membersKey(runID), member.MemberID, data)
		pipe.Expire(ctx, membersKey(runID), c.ttl)
		pipe.Expire(ctx, definitionKey(runID), c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("checkpoint %s/%s: %w", runID, member.MemberID, err)
	}
	return nil
}

func (c *Checkpoints) Run(ctx context.Context, runID string) (standup.Run, error) {
	var run standup.Run

	val, err := c.rdb.Get(ctx, definitionKey(runID)).Result()
	if errors.Is(err, redis.Nil) {
		return run, fmt.Errorf("%w %s", ErrNoCheckpoint, runID)
	}
	if err != nil {
		return run, fmt.Errorf("load run %s: %w", runID, err)
	}

	if err := json.Unmarshal([]byte(val), &run); err != nil {
		return run, fmt.Errorf("%w: run %s: %w", standup.ErrCorruptSnapshot, runID, err)
	}
	return run, nil
}

// Load returns the member snapshots of a run ordered like the run's member
// list, or nil when no member has been checkpointed yet.
func (c *Checkpoints) Load(ctx context.Context, run standup.Run) (*standup.Snapshot, error) {
	entries, err := c.rdb.HGetAll(ctx, membersKey(run.ID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load members of %s: %w", run.ID, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	order := make([]string, 0, len(entries))
	for _, id := range run.Definition.Members {
		if _, ok := entries[id]; ok {
			order = append(order, id)
		}
	}
	var extra []string
	for id := range entries {
		if !slices.Contains(order, id) {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	order = append(order, extra...)

	snap := &standup.Snapshot{RunID: run.ID}
	for _, id := range order {
		var m standup.MemberSnapshot
		if err := json.Unmarshal([]byte(entries[id]), &m); err != nil {
			return nil, fmt.Errorf("%w: member %s: %w", standup.ErrCorruptSnapshot, id, err)
		}
		snap.Members = append(snap.Members, m)
	}
	return snap, nil
}

func (c *Checkpoints) ActiveRuns(ctx context.Context) ([]string, error) {
	ids, err := c.rdb.SMembers(ctx, activeRunsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active runs: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

// Deactivate keeps the run's data for inspection but stops it from resuming.
func (c *Checkpoints) Deactivate(ctx context.Context, runID string) error {
	return c.rdb.SRem(ctx, activeRunsKey, runID).Err()
}

func (c *Checkpoints) Delete(ctx context.Context, runID string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, membersKey(runID), definitionKey(runID))
		pipe.SRem(ctx, activeRunsKey, runID)
		return nil
	})
	return err
}
