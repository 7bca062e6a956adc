package entitlements

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kickoffclub/hq-backend/internal/profiles"
	"github.com/kickoffclub/hq-backend/pkg/db/models"
	"github.com/kickoffclub/hq-backend/pkg/enums"
)

// HasAccess reports whether a member on userTier may open content gated at
// resourceTier. Higher tiers include everything below them; an unknown tier
// ranks below free and unlocks nothing.
func HasAccess(userTier, resourceTier enums.SubscriptionTier) bool {
	return userTier.Rank() >= resourceTier.Rank() && resourceTier.IsValid()
}

// EffectiveTier collapses tier and billing status into the tier access
// decisions actually use. A paid tier with a lapsed status degrades to free;
// the stored tier itself is left alone so a recovered subscription restores
// access without another write.
func EffectiveTier(profile *models.UserProfile) enums.SubscriptionTier {
	if profile == nil {
		return enums.SubscriptionTierFree
	}
	if profile.SubscriptionTier == enums.SubscriptionTierFree {
		return enums.SubscriptionTierFree
	}
	if !profile.SubscriptionStatus.GrantsAccess() {
		return enums.SubscriptionTierFree
	}
	return profile.SubscriptionTier
}

// Decision is the result of one access check.
type Decision struct {
	Allowed       bool                   `json:"allowed"`
	EffectiveTier enums.SubscriptionTier `json:"effective_tier"`
	RequiredTier  enums.SubscriptionTier `json:"required_tier"`
}

type profileLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)
}

// Service answers access questions for a member against gated resources.
type Service interface {
	CanAccess(ctx context.Context, userID uuid.UUID, requiredTier enums.SubscriptionTier) (*Decision, error)
	DecideForProfile(profile *models.UserProfile, requiredTier enums.SubscriptionTier) Decision
}

type service struct {
	profileRepo profileLoader
}

// NewService wires an entitlement service with the provided profile repository.
func NewService(profileRepo profiles.Repository) (Service, error) {
	if profileRepo == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	return &service{profileRepo: profileRepo}, nil
}

func (s *service) CanAccess(ctx context.Context, userID uuid.UUID, requiredTier enums.SubscriptionTier) (*Decision, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if !requiredTier.IsValid() {
		return nil, fmt.Errorf("invalid required tier %q", requiredTier)
	}

	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	decision := s.DecideForProfile(profile, requiredTier)
	return &decision, nil
}

func (s *service) DecideForProfile(profile *models.UserProfile, requiredTier enums.SubscriptionTier) Decision {
	effective := EffectiveTier(profile)
	return Decision{
		Allowed:       HasAccess(effective, requiredTier),
		EffectiveTier: effective,
		RequiredTier:  requiredTier,
	}
}
