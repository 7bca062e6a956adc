package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/kickoffclub/hq-backend/internal/coupons"
	"github.com/kickoffclub/hq-backend/internal/profiles"
	"github.com/kickoffclub/hq-backend/pkg/config"
	"github.com/kickoffclub/hq-backend/pkg/db/models"
	"github.com/kickoffclub/hq-backend/pkg/enums"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/logger"
	"github.com/kickoffclub/hq-backend/pkg/metrics"
)

// Session metadata keys read back by the webhook handler.
const (
	MetadataUserID     = "kickoff_user_id"
	MetadataTier       = "kickoff_tier"
	MetadataCouponCode = "kickoff_coupon_code"
)

// CheckoutInput starts a subscription purchase.
type CheckoutInput struct {
	Tier       enums.SubscriptionTier
	CouponCode string
}

// CheckoutSession is the client-facing result of starting checkout.
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// PortalSession points the member at Stripe's self-serve billing portal.
type PortalSession struct {
	URL string `json:"url"`
}

type couponValidator interface {
	Validate(ctx context.Context, code string) (*coupons.ValidationResult, error)
}

type profileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

// Service starts checkout sessions and billing portal sessions.
type Service interface {
	CreateCheckout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*CheckoutSession, error)
	BillingPortal(ctx context.Context, userID uuid.UUID) (*PortalSession, error)
}

type service struct {
	stripeClient StripeBillingClient
	profileRepo  profileStore
	coupons      couponValidator
	cfg          config.StripeConfig
	logg         *logger.Logger
	billing      *metrics.BillingMetrics
}

// ServiceParams wires the billing service dependencies.
type ServiceParams struct {
	StripeClient StripeBillingClient
	ProfileRepo  profiles.Repository
	Coupons      couponValidator
	Config       config.StripeConfig
	Logger       *logger.Logger
	Billing      *metrics.BillingMetrics
}

// NewService builds a billing service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.StripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.ProfileRepo == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		stripeClient: params.StripeClient,
		profileRepo:  params.ProfileRepo,
		coupons:      params.Coupons,
		cfg:          params.Config,
		logg:         params.Logger,
		billing:      params.Billing,
	}, nil
}

// CreateCheckout opens a Stripe Checkout session for the requested tier. A
// coupon, when present, is validated here but only consumed by the webhook
// once the session actually completes, so an abandoned checkout never burns
// a redemption slot.
func (s *service) CreateCheckout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*CheckoutSession, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	priceID, err := s.priceForTier(input.Tier)
	if err != nil {
		return nil, err
	}

	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		MetadataUserID: userID.String(),
		MetadataTier:   input.Tier.String(),
	}

	if input.CouponCode != "" {
		result, err := s.coupons.Validate(ctx, input.CouponCode)
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon not redeemable").
				WithDetails(map[string]any{"reason": string(result.Reason)})
		}
		if result.Coupon.AppliesToTier != nil && *result.Coupon.AppliesToTier != input.Tier {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon does not apply to this plan")
		}
		metadata[MetadataCouponCode] = result.Coupon.Code
	}

	customerID, err := s.ensureCustomer(ctx, profile)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout())
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(s.cfg.CheckoutSuccessURL),
		CancelURL:         stripe.String(s.cfg.CheckoutCancelURL),
		ClientReferenceID: stripe.String(userID.String()),
		Metadata:          metadata,
	}

	session, err := s.stripeClient.CreateCheckoutSession(ctx, params)
	if err != nil {
		s.countCheckout("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeProvider, err, "creating checkout session")
	}

	s.countCheckout("created")
	s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "checkout session created")

	return &CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// BillingPortal opens the Stripe customer portal for an existing subscriber.
func (s *service) BillingPortal(ctx context.Context, userID uuid.UUID) (*PortalSession, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.StripeCustomerID == nil || *profile.StripeCustomerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNoSubscription, "no billing account on file")
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout())
	defer cancel()

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*profile.StripeCustomerID),
		ReturnURL: stripe.String(s.cfg.PortalReturnURL),
	}

	session, err := s.stripeClient.CreatePortalSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProvider, err, "creating billing portal session")
	}

	return &PortalSession{URL: session.URL}, nil
}

func (s *service) ensureCustomer(ctx context.Context, profile *models.UserProfile) (string, error) {
	if profile.StripeCustomerID != nil && *profile.StripeCustomerID != "" {
		return *profile.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(profile.Email),
		Name:  stripe.String(profile.FullName),
		Metadata: map[string]string{
			MetadataUserID: profile.ID.String(),
		},
	}
	created, err := s.stripeClient.CreateCustomer(ctx, params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeProvider, err, "creating stripe customer")
	}

	if err := s.profileRepo.SetStripeCustomerID(ctx, profile.ID, created.ID); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (s *service) priceForTier(tier enums.SubscriptionTier) (string, error) {
	switch tier {
	case enums.SubscriptionTierBasic:
		if s.cfg.BasicPriceID == "" {
			return "", pkgerrors.New(pkgerrors.CodeInternal, "basic price not configured")
		}
		return s.cfg.BasicPriceID, nil
	case enums.SubscriptionTierPremium:
		if s.cfg.PremiumPriceID == "" {
			return "", pkgerrors.New(pkgerrors.CodeInternal, "premium price not configured")
		}
		return s.cfg.PremiumPriceID, nil
	case enums.SubscriptionTierFree:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "free tier has no checkout")
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown tier %q", tier))
	}
}

func (s *service) requestTimeout() time.Duration {
	if s.cfg.RequestTimeout > 0 {
		return s.cfg.RequestTimeout
	}
	return 15 * time.Second
}

func (s *service) countCheckout(outcome string) {
	if s.billing != nil {
		s.billing.IncCheckout(outcome)
	}
}
