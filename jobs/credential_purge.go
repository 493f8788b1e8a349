package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/sitelink-erp/sitelink/internal/credstore"
)

// CredentialPurgeJob deletes expired backup-tier credential rows. The
// identity layer itself never retries or expires anything automatically;
// this job only removes garbage past its lifetime.
type CredentialPurgeJob struct {
	tier   *credstore.PGTier
	logger *slog.Logger
}

// NewCredentialPurgeJob constructs the purge job.
func NewCredentialPurgeJob(tier *credstore.PGTier, logger *slog.Logger) *CredentialPurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialPurgeJob{tier: tier, logger: logger}
}

// Handle processes TaskCredentialPurge tasks.
func (j *CredentialPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	purged, err := j.tier.PurgeExpired(ctx)
	if err != nil {
		j.logger.Error("credential purge", slog.Any("error", err))
		return err
	}
	j.logger.Info("credential purge complete", slog.Int64("purged", purged))
	return nil
}
