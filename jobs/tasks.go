package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCredentialPurge removes expired backup-tier credential rows.
	TaskCredentialPurge = "credentials:purge"
)

// CredentialPurgePayload bounds one purge run.
type CredentialPurgePayload struct {
	BatchLimit int `json:"batch_limit,omitempty"`
}

// NewCredentialPurgeTask constructs an Asynq task.
func NewCredentialPurgeTask(payload CredentialPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCredentialPurge, data), nil
}
