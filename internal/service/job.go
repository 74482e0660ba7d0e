package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/forgo/jobboard/internal/linksafety"
	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/internal/repository"
)

// NotificationQueue accepts new-job batches for background delivery.
// Enqueue must not block; it reports false when the batch was dropped.
type NotificationQueue interface {
	Enqueue(batch model.NotificationBatch) bool
}

// JobService handles job listing, search and mutation
type JobService struct {
	jobRepo repository.Repository[model.Job]
	subRepo repository.Repository[model.UserSubscription]
	links   linksafety.Checker
	queue   NotificationQueue
	logger  *slog.Logger
	now     func() time.Time
}

// JobServiceConfig holds configuration for the job service
type JobServiceConfig struct {
	JobRepo          repository.Repository[model.Job]
	SubscriptionRepo repository.Repository[model.UserSubscription]
	LinkChecker      linksafety.Checker
	Queue            NotificationQueue
	Logger           *slog.Logger
}

// NewJobService creates a new job service
func NewJobService(cfg JobServiceConfig) *JobService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		jobRepo: cfg.JobRepo,
		subRepo: cfg.SubscriptionRepo,
		links:   cfg.LinkChecker,
		queue:   cfg.Queue,
		logger:  logger,
		now:     time.Now,
	}
}

func newestFirst() repository.Order {
	return repository.Order{Field: model.JobFieldCreatedAt, Desc: true}
}

func includes(includeOwner bool) []string {
	if includeOwner {
		return []string{model.JobRelationPostedBy}
	}
	return nil
}

// ListJobs returns one page of jobs, newest first. Paging arguments are
// validated before the store is touched.
func (s *JobService) ListJobs(ctx context.Context, pageNumber, pageSize int, includeOwner bool) (*model.PagedJobs, error) {
	if pageNumber < model.MinPageNumber {
		return nil, ErrInvalidPageNumber
	}
	if pageSize < model.MinPageSize || pageSize > model.MaxPageSize {
		return nil, ErrInvalidPageSize
	}

	total, err := s.jobRepo.Count(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	jobs, err := s.jobRepo.GetPaged(ctx, repository.PageQuery{
		Page:    pageNumber,
		Size:    pageSize,
		Order:   newestFirst(),
		Include: includes(includeOwner),
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	return &model.PagedJobs{
		Jobs:       jobs,
		PageNumber: pageNumber,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

func totalPages(total int64, pageSize int) int {
	if total <= 0 {
		return 0
	}
	size := int64(pageSize)
	return int((total + size - 1) / size)
}

// SearchJobs matches keyword case-insensitively against title, description
// and external link. Results are the first page of ten, newest first.
func (s *JobService) SearchJobs(ctx context.Context, keyword string, includeOwner bool) ([]model.Job, error) {
	keyword = strings.TrimSpace(keyword)
	if utf8.RuneCountInString(keyword) < model.MinSearchKeywordLength {
		return nil, ErrKeywordTooShort
	}

	jobs, err := s.jobRepo.GetPaged(ctx, repository.PageQuery{
		Page:  1,
		Size:  model.SearchPageSize,
		Order: newestFirst(),
		Where: repository.Or(
			repository.ContainsFold(model.JobFieldTitle, keyword),
			repository.ContainsFold(model.JobFieldDescription, keyword),
			repository.ContainsFold(model.JobFieldExternalLink, keyword),
		),
		Include: includes(includeOwner),
	})
	if err != nil {
		return nil, fmt.Errorf("search jobs: %w", err)
	}
	return jobs, nil
}

// GetJob returns a single job
func (s *JobService) GetJob(ctx context.Context, id string, includeOwner bool) (*model.Job, error) {
	if err := validateJobID(id); err != nil {
		return nil, err
	}
	return s.load(ctx, id, includes(includeOwner)...)
}

// CreateJob checks the link, stores the job and hands the eligible
// subscribers to the notification queue. The job is created even when the
// notification step fails or is dropped.
func (s *JobService) CreateJob(ctx context.Context, userID string, req model.JobRequest) (*model.Job, error) {
	req.Normalize()
	if err := newValidationError(req.Validate()); err != nil {
		return nil, err
	}
	if err := s.checkLink(ctx, req.ExternalLink); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	job := &model.Job{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Description:    req.Description,
		ExternalLink:   req.ExternalLink,
		PostedByUserID: userID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.jobRepo.Add(ctx, job); err != nil {
		return nil, fmt.Errorf("add job: %w", err)
	}

	s.notifySubscribers(ctx, job)
	return job, nil
}

// notifySubscribers resolves recipients now and leaves rendering and
// sending to the queue.
func (s *JobService) notifySubscribers(ctx context.Context, job *model.Job) {
	if s.queue == nil || s.subRepo == nil {
		return
	}

	subs, err := s.subRepo.Find(ctx, repository.And(
		repository.Eq(model.SubscriptionFieldIsActive, true),
		repository.NotEq(model.SubscriptionFieldUserID, job.PostedByUserID),
	))
	if err != nil {
		s.logger.Error("Failed to resolve notification recipients",
			"job_id", job.ID,
			"error", err)
		return
	}

	recipients := model.RecipientsFromSubscriptions(subs, job.PostedByUserID)
	if len(recipients) == 0 {
		return
	}
	if !s.queue.Enqueue(model.NotificationBatch{Job: *job, Recipients: recipients}) {
		s.logger.Warn("Notification batch not queued",
			"job_id", job.ID,
			"recipients", len(recipients))
	}
}

// UpdateJob replaces the editable fields of a job owned by userID
func (s *JobService) UpdateJob(ctx context.Context, userID, id string, req model.JobRequest) (*model.Job, error) {
	if err := validateJobID(id); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := newValidationError(req.Validate()); err != nil {
		return nil, err
	}

	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := RequireOwner(userID, job); err != nil {
		return nil, err
	}
	if err := s.checkLink(ctx, req.ExternalLink); err != nil {
		return nil, err
	}

	job.Title = req.Title
	job.Description = req.Description
	job.ExternalLink = req.ExternalLink
	job.UpdatedAt = s.now().UTC()

	if err := s.jobRepo.Update(ctx, job); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("update job: %w", err)
	}
	return job, nil
}

// DeleteJob removes a job owned by userID. Deleting a missing job fails
// with ErrJobNotFound.
func (s *JobService) DeleteJob(ctx context.Context, userID, id string) error {
	if err := validateJobID(id); err != nil {
		return err
	}

	job, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := RequireOwner(userID, job); err != nil {
		return err
	}

	if err := s.jobRepo.Remove(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("remove job: %w", err)
	}
	return nil
}

// CountJobs returns the number of stored jobs
func (s *JobService) CountJobs(ctx context.Context) (int64, error) {
	return s.jobRepo.Count(ctx, nil)
}

func (s *JobService) load(ctx context.Context, id string, include ...string) (*model.Job, error) {
	job, err := s.jobRepo.GetByID(ctx, id, include...)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *JobService) checkLink(ctx context.Context, link string) error {
	verdict, err := s.links.Check(ctx, link)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLinkCheckUnavailable, err)
	}
	if !verdict.Safe {
		return &UnsafeLinkError{Reason: verdict.Reason}
	}
	return nil
}

func validateJobID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidJobID
	}
	return nil
}
