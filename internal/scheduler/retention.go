package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/modules/snapshots"
)

// RetentionJob prunes snapshots older than the configured retention window.
type RetentionJob struct {
	store *snapshots.Store
	days  int
	log   zerolog.Logger
}

// NewRetentionJob creates a snapshot retention job.
func NewRetentionJob(store *snapshots.Store, days int, log zerolog.Logger) *RetentionJob {
	return &RetentionJob{
		store: store,
		days:  days,
		log:   log.With().Str("job", "snapshot_retention").Logger(),
	}
}

// Name implements Job.
func (j *RetentionJob) Name() string { return "snapshot_retention" }

// Run implements Job.
func (j *RetentionJob) Run() error {
	if j.days <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -j.days)
	deleted, err := j.store.Prune(cutoff)
	if err != nil {
		return err
	}
	j.log.Info().Int64("deleted", deleted).Int("retention_days", j.days).Msg("Retention pass complete")
	return nil
}
