package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/kickoffclub/hq-backend/internal/coupons"
	"github.com/kickoffclub/hq-backend/internal/profiles"
	"github.com/kickoffclub/hq-backend/pkg/config"
	"github.com/kickoffclub/hq-backend/pkg/enums"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/logger"
	"github.com/kickoffclub/hq-backend/pkg/metrics"
)

// Metadata keys written by the billing service when checkout starts.
const (
	metadataUserID     = "kickoff_user_id"
	metadataTier       = "kickoff_tier"
	metadataCouponCode = "kickoff_coupon_code"
)

type couponRedeemer interface {
	Redeem(ctx context.Context, userID uuid.UUID, code string) (*coupons.RedemptionOutcome, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type billingNotifier interface {
	SendSubscriptionActivated(ctx context.Context, toEmail, toName string, tier enums.SubscriptionTier) error
	SendSubscriptionCanceled(ctx context.Context, toEmail, toName string) error
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	ProfileRepo       profiles.Repository
	Coupons           couponRedeemer
	StripeClient      StripeSubscriptionClient
	TransactionRunner txRunner
	// Notifier is optional; without it no receipts are sent.
	Notifier billingNotifier
	Config            config.StripeConfig
	Logger            *logger.Logger
	Billing           *metrics.BillingMetrics
}

// Service applies Stripe billing events to member profiles. Every write goes
// through ApplyBillingUpdate, which drops events older than the one already
// applied; combined with the event-id guard upstream this makes the whole
// pipeline safe to replay.
type Service struct {
	profileRepo profiles.Repository
	coupons     couponRedeemer
	stripe      StripeSubscriptionClient
	txRunner    txRunner
	notifier    billingNotifier
	cfg         config.StripeConfig
	logg        *logger.Logger
	billing     *metrics.BillingMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.ProfileRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile repo required")
	}
	if params.Coupons == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "coupon redeemer required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		profileRepo: params.ProfileRepo,
		coupons:     params.Coupons,
		stripe:      params.StripeClient,
		txRunner:    params.TransactionRunner,
		notifier:    params.Notifier,
		cfg:         params.Config,
		logg:        params.Logger,
		billing:     params.Billing,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	ctx = s.logg.WithStripeEventID(ctx, event.ID)
	eventAt := time.Unix(event.Created, 0).UTC()

	var err error
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if decodeErr := json.Unmarshal(event.Data.Raw, &session); decodeErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode checkout session event")
		}
		err = s.handleCheckoutCompleted(ctx, &session, eventAt)

	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if decodeErr := json.Unmarshal(event.Data.Raw, &stripeSub); decodeErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode subscription event")
		}
		err = s.syncSubscription(ctx, &stripeSub, eventAt)

	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentFailed:
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
		}
		stripeSub, fetchErr := s.stripe.Get(ctx, subscriptionID, &stripe.SubscriptionParams{})
		if fetchErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, fetchErr, "fetch stripe subscription")
		}
		err = s.syncSubscription(ctx, stripeSub, eventAt)

	default:
		s.countEvent(string(event.Type), "ignored")
		return nil
	}

	if err != nil {
		s.countEvent(string(event.Type), "error")
		return err
	}
	s.countEvent(string(event.Type), "applied")
	return nil
}

// handleCheckoutCompleted activates the purchased tier and, when the session
// carried a coupon, consumes its redemption slot. The redemption sits outside
// the profile update because its own ledger already makes it idempotent.
func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession, eventAt time.Time) error {
	userID, err := uuid.Parse(session.Metadata[metadataUserID])
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session missing user id metadata")
	}
	tier, err := enums.ParseSubscriptionTier(session.Metadata[metadataTier])
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session missing tier metadata")
	}

	var subscriptionID *string
	if session.Subscription != nil && session.Subscription.ID != "" {
		subscriptionID = &session.Subscription.ID
	}

	ctx = s.logg.WithUserID(ctx, userID.String())

	var applied bool
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		applied, err = s.profileRepo.WithTx(tx).ApplyBillingUpdate(ctx, profiles.BillingUpdate{
			ProfileID:      userID,
			Tier:           tier,
			Status:         enums.SubscriptionStatusActive,
			SubscriptionID: subscriptionID,
			EventAt:        eventAt,
		})
		if err != nil {
			return err
		}
		if !applied {
			s.logg.Info(ctx, "checkout event older than profile state, skipped")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if code := session.Metadata[metadataCouponCode]; code != "" {
		if _, err := s.coupons.Redeem(ctx, userID, code); err != nil {
			appErr := pkgerrors.As(err)
			if appErr != nil && appErr.Code() == pkgerrors.CodeAlreadyRedeemed {
				// replayed delivery, the ledger row already exists
				return nil
			}
			// the member already paid, so a lost redemption slot is an
			// ops follow-up rather than a webhook failure
			s.logg.Error(s.logg.WithCouponCode(ctx, code), "coupon redemption failed after checkout", err)
		}
	}

	if applied && s.notifier != nil {
		profile, loadErr := s.profileRepo.GetByID(ctx, userID)
		switch {
		case loadErr != nil:
			s.logg.Error(ctx, "loading profile for activation receipt", loadErr)
		case profile == nil:
			s.logg.Warn(ctx, "profile missing for activation receipt")
		default:
			if sendErr := s.notifier.SendSubscriptionActivated(ctx, profile.Email, profile.FullName, tier); sendErr != nil {
				s.logg.Error(ctx, "sending activation receipt", sendErr)
			}
		}
	}

	return nil
}

func (s *Service) syncSubscription(ctx context.Context, stripeSub *stripe.Subscription, eventAt time.Time) error {
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}
	if stripeSub.Customer == nil || stripeSub.Customer.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription customer missing")
	}

	profile, err := s.profileRepo.GetByStripeCustomerID(ctx, stripeSub.Customer.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no profile for stripe customer")
		}
		return err
	}

	status := mapSubscriptionStatus(stripeSub.Status)
	tier := s.tierForSubscription(stripeSub, profile.SubscriptionTier)
	if !status.GrantsAccess() && status != enums.SubscriptionStatusCheckoutPending {
		tier = enums.SubscriptionTierFree
	}

	subscriptionID := stripeSub.ID
	ctx = s.logg.WithUserID(ctx, profile.ID.String())

	var applied bool
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		applied, err = s.profileRepo.WithTx(tx).ApplyBillingUpdate(ctx, profiles.BillingUpdate{
			ProfileID:      profile.ID,
			Tier:           tier,
			Status:         status,
			SubscriptionID: &subscriptionID,
			EventAt:        eventAt,
		})
		if err != nil {
			return err
		}
		if !applied {
			s.logg.Info(ctx, "subscription event older than profile state, skipped")
		}
		return nil
	})
	if err != nil {
		return err
	}

	// lapsed memberships get a goodbye note, but only when this event is the
	// one that actually flipped the profile
	if applied && s.notifier != nil && status == enums.SubscriptionStatusCanceled && profile.SubscriptionStatus != enums.SubscriptionStatusCanceled {
		if sendErr := s.notifier.SendSubscriptionCanceled(ctx, profile.Email, profile.FullName); sendErr != nil {
			s.logg.Error(ctx, "sending cancellation note", sendErr)
		}
	}

	return nil
}

// tierForSubscription derives the tier from the subscribed price, falling
// back to the profile's current tier when the price is not one of ours.
func (s *Service) tierForSubscription(stripeSub *stripe.Subscription, current enums.SubscriptionTier) enums.SubscriptionTier {
	priceID := ""
	if stripeSub.Items != nil && len(stripeSub.Items.Data) > 0 && stripeSub.Items.Data[0].Price != nil {
		priceID = stripeSub.Items.Data[0].Price.ID
	}
	switch priceID {
	case "":
		return current
	case s.cfg.BasicPriceID:
		return enums.SubscriptionTierBasic
	case s.cfg.PremiumPriceID:
		return enums.SubscriptionTierPremium
	default:
		return current
	}
}

func mapSubscriptionStatus(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue:
		return enums.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusPaused:
		return enums.SubscriptionStatusUnpaid
	case stripe.SubscriptionStatusIncomplete:
		return enums.SubscriptionStatusCheckoutPending
	default:
		return enums.SubscriptionStatusNone
	}
}

func (s *Service) countEvent(eventType, outcome string) {
	if s.billing != nil {
		s.billing.IncWebhookEvent(eventType, outcome)
	}
}
