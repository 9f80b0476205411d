// Package store persists session registry entries in Redis and finished
// interviews in a relational archive.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ravindra162/prepAI-sub000/internal/models"
)

const sessionTTL = 4 * time.Hour

// ErrSessionNotFound is returned when a registry lookup misses.
var ErrSessionNotFound = errors.New("session not found")

// RegistryEntry is the cross-instance view of a live session.
type RegistryEntry struct {
	SessionID  string           `json:"sessionId"`
	Candidate  models.Candidate `json:"candidate"`
	Phase      models.Phase     `json:"phase"`
	Language   models.Language  `json:"language"`
	ProblemID  int              `json:"problemId,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	GatewayPod string           `json:"gatewayPod,omitempty"`
}

// Registry tracks live interview sessions in Redis so status queries and
// maintenance jobs can see sessions owned by any gateway instance.
type Registry struct {
	rdb *redis.Client
}

func NewRegistry(redisAddr string) *Registry {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	return &Registry{rdb: rdb}
}

// NewRegistryWithClient wires an existing client (tests use miniredis).
func NewRegistryWithClient(rdb *redis.Client) *Registry {
	return &Registry{rdb: rdb}
}

func (r *Registry) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func sessionKey(id string) string { return "interview:session:" + id }

// Save writes the full entry and refreshes its TTL.
func (r *Registry) Save(ctx context.Context, entry RegistryEntry) error {
	entry.UpdatedAt = time.Now()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", entry.SessionID, err)
	}
	if err := r.rdb.Set(ctx, sessionKey(entry.SessionID), data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", entry.SessionID, err)
	}
	return nil
}

// UpdatePhase rewrites only the phase of an existing entry.
func (r *Registry) UpdatePhase(ctx context.Context, sessionID string, phase models.Phase) error {
	entry, err := r.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	entry.Phase = phase
	return r.Save(ctx, entry)
}

func (r *Registry) Get(ctx context.Context, sessionID string) (RegistryEntry, error) {
	data, err := r.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return RegistryEntry{}, ErrSessionNotFound
	}
	if err != nil {
		return RegistryEntry{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	var entry RegistryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return RegistryEntry{}, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return entry, nil
}

func (r *Registry) Delete(ctx context.Context, sessionID string) error {
	return r.rdb.Del(ctx, sessionKey(sessionID)).Err()
}

// List scans the registry keyspace and returns all live entries. Entries that
// fail to decode are skipped.
func (r *Registry) List(ctx context.Context) ([]RegistryEntry, error) {
	var entries []RegistryEntry
	iter := r.rdb.Scan(ctx, 0, sessionKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var entry RegistryEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return entries, nil
}

// Stale returns entries whose last update is older than maxAge.
func (r *Registry) Stale(ctx context.Context, maxAge time.Duration) ([]RegistryEntry, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-maxAge)
	var stale []RegistryEntry
	for _, e := range entries {
		if e.UpdatedAt.Before(cutoff) {
			stale = append(stale, e)
		}
	}
	return stale, nil
}

func (r *Registry) Close() error {
	return r.rdb.Close()
}
