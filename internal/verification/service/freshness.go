package service

import (
	"context"

	"civitas/internal/verification/freshness"
	id "civitas/pkg/domain"
	"civitas/pkg/requestcontext"
)

// CheckFreshness evaluates the account's last verification against the
// window for category.
func (s *Service) CheckFreshness(ctx context.Context, accountID id.AccountID, category freshness.Category) (freshness.Decision, error) {
	profile, err := s.Profile(ctx, accountID)
	if err != nil {
		return freshness.Decision{}, err
	}
	return freshness.IsValidForAction(profile.VerifiedAt, category, requestcontext.Now(ctx))
}

// RequireFresh is CheckFreshness that fails with freshness_exceeded.
func (s *Service) RequireFresh(ctx context.Context, accountID id.AccountID, category freshness.Category) (freshness.Decision, error) {
	profile, err := s.Profile(ctx, accountID)
	if err != nil {
		return freshness.Decision{}, err
	}
	return freshness.Require(profile.VerifiedAt, category, requestcontext.Now(ctx))
}
