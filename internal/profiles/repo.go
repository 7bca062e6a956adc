package profiles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kickoffclub/hq-backend/pkg/db/models"
	"github.com/kickoffclub/hq-backend/pkg/enums"
)

// Repository manages persistence for member profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*models.UserProfile, error)
	Create(ctx context.Context, profile *models.UserProfile) error
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
	ApplyBillingUpdate(ctx context.Context, update BillingUpdate) (bool, error)
}

// BillingUpdate is the subscription state derived from one provider event.
// EventAt orders competing writes: an update older than the profile's
// last_billing_event_at is a replay and must not win.
type BillingUpdate struct {
	ProfileID      uuid.UUID
	Tier           enums.SubscriptionTier
	Status         enums.SubscriptionStatus
	SubscriptionID *string
	EventAt        time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a profile repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) Create(ctx context.Context, profile *models.UserProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *repository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return r.db.WithContext(ctx).
		Model(&models.UserProfile{}).
		Where("id = ?", id).
		Update("stripe_customer_id", customerID).Error
}

// ApplyBillingUpdate writes the subscription columns only when the event is
// newer than the last one applied. Returns false when the update lost to a
// newer event already on the row.
func (r *repository) ApplyBillingUpdate(ctx context.Context, update BillingUpdate) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.UserProfile{}).
		Where("id = ?", update.ProfileID).
		Where("last_billing_event_at IS NULL OR last_billing_event_at < ?", update.EventAt).
		Updates(map[string]any{
			"subscription_tier":      update.Tier,
			"subscription_status":    update.Status,
			"stripe_subscription_id": update.SubscriptionID,
			"last_billing_event_at":  update.EventAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
