// Package store defines the persistence interface for connector data:
// the session log, learned resolution patterns, error resolutions, the
// shared-pool upload queue, and flat key/value config.
package store

import (
	"context"
	"time"

	"github.com/Yash-Prakash1/connector/internal/model"
)

// Store is the persistence interface. Lookups never fail on "not found";
// they return empty results. Each write is a single atomic unit.
type Store interface {
	// CreateSession persists a new session record.
	CreateSession(ctx context.Context, s model.Session) error

	// CompleteSession marks a session finished with its final result.
	CompleteSession(ctx context.Context, sessionID string, res model.SessionResult) error

	// LogStep appends one executed step to the session log.
	LogStep(ctx context.Context, sessionID string, step model.Step) error

	// ListSteps returns a session's steps in execution order.
	ListSteps(ctx context.Context, sessionID string) ([]model.Step, error)

	// CachedPatterns returns patterns for a goal/OS ordered by confidence
	// descending.
	CachedPatterns(ctx context.Context, goal string, os model.OS) ([]model.ResolutionPattern, error)

	// CachePatterns upserts pool-sourced patterns by their external id.
	// Last write for a given id wins, statistics included.
	CachePatterns(ctx context.Context, patterns []model.ResolutionPattern) error

	// RecordLearnedOutcome upserts a locally learned pattern by its
	// deterministic identity hash: increments total_count, increments
	// success_count iff succeeded, and recomputes success_rate.
	RecordLearnedOutcome(ctx context.Context, p model.ResolutionPattern, succeeded bool) error

	// CachedErrorResolutions returns error resolutions scoped to a goal/OS
	// (rows with no scope match everything), most successful first.
	CachedErrorResolutions(ctx context.Context, goal string, os model.OS) ([]model.ErrorResolution, error)

	// CacheErrorResolutions upserts pool-sourced error resolutions by id.
	CacheErrorResolutions(ctx context.Context, resolutions []model.ErrorResolution) error

	// RecordErrorResolution upserts by identity hash, incrementing
	// success_count. Resolutions are only recorded when they worked, so
	// there is no failure counting.
	RecordErrorResolution(ctx context.Context, er model.ErrorResolution) error

	// QueueUpload enqueues a shared-pool contribution payload for retry.
	QueueUpload(ctx context.Context, payload []byte) error

	// PendingUploads returns queued contributions, FIFO by creation time.
	PendingUploads(ctx context.Context) ([]model.UploadItem, error)

	// RemoveUpload deletes a queued contribution after a successful flush.
	RemoveUpload(ctx context.Context, id string) error

	// BumpUploadAttempts increments a queued contribution's retry counter.
	BumpUploadAttempts(ctx context.Context, id string) error

	// GetConfig returns the value for a config key, or "" if unset.
	GetConfig(ctx context.Context, key string) (string, error)

	// SetConfig stores a config key/value pair.
	SetConfig(ctx context.Context, key, value string) error

	// SessionStats returns summary statistics about stored sessions.
	SessionStats(ctx context.Context) (Stats, error)

	// Close releases any resources held by the store.
	Close() error
}

// NameCount pairs a name with its occurrence count.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats holds summary statistics about stored sessions and learned data.
type Stats struct {
	TotalSessions    int         `json:"total_sessions"`
	Successes        int         `json:"successes"`
	SuccessRate      float64     `json:"success_rate"`
	Patterns         int         `json:"patterns"`
	ErrorResolutions int         `json:"error_resolutions"`
	PendingUploads   int         `json:"pending_uploads"`
	TopGoals         []NameCount `json:"top_goals"`
	Earliest         time.Time   `json:"earliest"`
	Latest           time.Time   `json:"latest"`
	Last24h          int         `json:"last_24h"`
	Last7d           int         `json:"last_7d"`
	Last30d          int         `json:"last_30d"`
}
