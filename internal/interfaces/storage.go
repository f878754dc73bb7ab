package interfaces

import (
	"context"

	"github.com/venatordev/venator/internal/models"
)

// JobStorage persists extracted job records keyed by id. Saving an existing
// id overwrite-merges rather than appending.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.JobRecord) error
	SaveJobs(ctx context.Context, jobs map[string]models.JobRecord) error
	GetJob(ctx context.Context, id string) (*models.JobRecord, error)
	ListJobs(ctx context.Context) ([]*models.JobRecord, error)
	DeleteJob(ctx context.Context, id string) error
	CountJobs(ctx context.Context) (int, error)
}

// StorageManager aggregates storage interfaces backed by one database.
type StorageManager interface {
	JobStorage() JobStorage
	Close() error
}
