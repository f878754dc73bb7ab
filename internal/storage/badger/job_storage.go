package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"github.com/venatordev/venator/internal/interfaces"
	"github.com/venatordev/venator/internal/models"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// SaveJob upserts a job record keyed by its id. A re-extracted job with the
// same id replaces the previous record; fields the new extraction could not
// fill are kept from the stored copy.
func (s *JobStorage) SaveJob(ctx context.Context, job *models.JobRecord) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}

	now := time.Now().Unix()
	merged := *job

	var existing models.JobRecord
	err := s.db.Store().Get(job.ID, &existing)
	switch {
	case err == nil:
		// Keep fields the new extraction left blank.
		if merged.Title == "" {
			merged.Title = existing.Title
		}
		if merged.Company == "" {
			merged.Company = existing.Company
		}
		if merged.Description == "" {
			merged.Description = existing.Description
		}
		merged.CreatedAt = existing.CreatedAt
		merged.UpdatedAt = now
	case err == badgerhold.ErrNotFound:
		if merged.CreatedAt == 0 {
			merged.CreatedAt = now
		}
		merged.UpdatedAt = now
	default:
		return fmt.Errorf("failed to read existing job: %w", err)
	}

	if err := s.db.Store().Upsert(merged.ID, &merged); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// SaveJobs persists a batch of job records. Partial failures abort with the
// first error; records already written stay written.
func (s *JobStorage) SaveJobs(ctx context.Context, jobs map[string]models.JobRecord) error {
	for id, job := range jobs {
		j := job
		if j.ID == "" {
			j.ID = id
		}
		if err := s.SaveJob(ctx, &j); err != nil {
			return fmt.Errorf("failed to save job %s: %w", id, err)
		}
	}
	s.logger.Debug().Int("count", len(jobs)).Msg("Saved job batch")
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, id string) (*models.JobRecord, error) {
	var job models.JobRecord
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) ListJobs(ctx context.Context) ([]*models.JobRecord, error) {
	var jobs []models.JobRecord
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.JobRecord, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) DeleteJob(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.JobRecord{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("job not found: %s", id)
		}
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func (s *JobStorage) CountJobs(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.JobRecord{}, badgerhold.Where("ID").Ne(""))
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return int(count), nil
}
