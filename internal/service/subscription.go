package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/internal/repository"
)

// SubscriptionService manages a user's opt-in to new-job emails
type SubscriptionService struct {
	subRepo  repository.Repository[model.UserSubscription]
	userRepo repository.Repository[model.User]
	now      func() time.Time
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(subRepo repository.Repository[model.UserSubscription], userRepo repository.Repository[model.User]) *SubscriptionService {
	return &SubscriptionService{subRepo: subRepo, userRepo: userRepo, now: time.Now}
}

// Get returns the user's subscription, or an inactive one if none exists
func (s *SubscriptionService) Get(ctx context.Context, userID string) (*model.UserSubscription, error) {
	sub, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return &model.UserSubscription{UserID: userID}, nil
	}
	return sub, nil
}

// SetActive creates or updates the user's subscription. Email and name are
// copied from the user record on every write.
func (s *SubscriptionService) SetActive(ctx context.Context, userID string, active bool) (*model.UserSubscription, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	sub, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if sub == nil {
		sub = &model.UserSubscription{
			ID:        uuid.NewString(),
			UserID:    userID,
			IsActive:  active,
			Email:     user.Email,
			FullName:  user.FullName,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.subRepo.Add(ctx, sub); err != nil {
			return nil, fmt.Errorf("add subscription: %w", err)
		}
		return sub, nil
	}

	sub.IsActive = active
	sub.Email = user.Email
	sub.FullName = user.FullName
	sub.UpdatedAt = now
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionService) find(ctx context.Context, userID string) (*model.UserSubscription, error) {
	subs, err := s.subRepo.Find(ctx, repository.Eq(model.SubscriptionFieldUserID, userID))
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}
