package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/kickoffclub/hq-backend/internal/coupons"
	"github.com/kickoffclub/hq-backend/internal/profiles"
	"github.com/kickoffclub/hq-backend/pkg/config"
	"github.com/kickoffclub/hq-backend/pkg/db/models"
	"github.com/kickoffclub/hq-backend/pkg/enums"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/logger"
)

type stubProfileRepo struct {
	profile *models.UserProfile
	getErr  error

	applied    []profiles.BillingUpdate
	applyOK    bool
	applyErr   error
	customerID string
}

func (s *stubProfileRepo) WithTx(_ *gorm.DB) profiles.Repository { return s }

func (s *stubProfileRepo) GetByID(_ context.Context, _ uuid.UUID) (*models.UserProfile, error) {
	return s.profile, s.getErr
}

func (s *stubProfileRepo) GetByStripeCustomerID(_ context.Context, customerID string) (*models.UserProfile, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.customerID = customerID
	if s.profile == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.profile, nil
}

func (s *stubProfileRepo) Create(_ context.Context, _ *models.UserProfile) error { return nil }

func (s *stubProfileRepo) SetStripeCustomerID(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func (s *stubProfileRepo) ApplyBillingUpdate(_ context.Context, update profiles.BillingUpdate) (bool, error) {
	if s.applyErr != nil {
		return false, s.applyErr
	}
	s.applied = append(s.applied, update)
	return s.applyOK, nil
}

type stubRedeemer struct {
	err      error
	redeemed []string
	users    []uuid.UUID
}

func (s *stubRedeemer) Redeem(_ context.Context, userID uuid.UUID, code string) (*coupons.RedemptionOutcome, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.redeemed = append(s.redeemed, code)
	s.users = append(s.users, userID)
	return &coupons.RedemptionOutcome{UserID: userID, RedeemedAt: time.Now()}, nil
}

type stubStripeClient struct {
	sub *stripe.Subscription
	err error
}

func (s *stubStripeClient) Get(_ context.Context, _ string, _ *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return s.sub, s.err
}

type stubNotifier struct {
	activated []string
	canceled  []string
	err       error
}

func (s *stubNotifier) SendSubscriptionActivated(_ context.Context, toEmail, _ string, tier enums.SubscriptionTier) error {
	if s.err != nil {
		return s.err
	}
	s.activated = append(s.activated, toEmail+":"+string(tier))
	return nil
}

func (s *stubNotifier) SendSubscriptionCanceled(_ context.Context, toEmail, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.canceled = append(s.canceled, toEmail)
	return nil
}

type stubTxRunner struct{}

func (s *stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newWebhookService(t *testing.T, repo *stubProfileRepo, redeemer *stubRedeemer, client *stubStripeClient) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		ProfileRepo:       repo,
		Coupons:           redeemer,
		StripeClient:      client,
		TransactionRunner: &stubTxRunner{},
		Config: config.StripeConfig{
			BasicPriceID:   "price_basic",
			PremiumPriceID: "price_premium",
		},
		Logger: logger.New(logger.Options{}),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func checkoutCompletedEvent(t *testing.T, userID uuid.UUID, tier, couponCode string, created int64) *stripe.Event {
	t.Helper()
	session := &stripe.CheckoutSession{
		ID: "cs_evt",
		Metadata: map[string]string{
			metadataUserID: userID.String(),
			metadataTier:   tier,
		},
		Subscription: &stripe.Subscription{ID: "sub_new"},
	}
	if couponCode != "" {
		session.Metadata[metadataCouponCode] = couponCode
	}
	raw, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{
		ID:      "evt_1",
		Type:    stripe.EventTypeCheckoutSessionCompleted,
		Created: created,
		Data:    &stripe.EventData{Raw: raw},
	}
}

func TestHandleCheckoutCompletedActivatesTier(t *testing.T) {
	userID := uuid.New()
	repo := &stubProfileRepo{applyOK: true}
	svc := newWebhookService(t, repo, &stubRedeemer{}, &stubStripeClient{})

	event := checkoutCompletedEvent(t, userID, "premium", "", 1_700_000_000)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if len(repo.applied) != 1 {
		t.Fatalf("expected 1 billing update, got %d", len(repo.applied))
	}
	update := repo.applied[0]
	if update.ProfileID != userID {
		t.Fatalf("unexpected profile id %s", update.ProfileID)
	}
	if update.Tier != enums.SubscriptionTierPremium {
		t.Fatalf("unexpected tier %s", update.Tier)
	}
	if update.Status != enums.SubscriptionStatusActive {
		t.Fatalf("unexpected status %s", update.Status)
	}
	if update.SubscriptionID == nil || *update.SubscriptionID != "sub_new" {
		t.Fatalf("expected subscription id carried through")
	}
	if !update.EventAt.Equal(time.Unix(1_700_000_000, 0).UTC()) {
		t.Fatalf("unexpected event time %s", update.EventAt)
	}
}

func TestHandleCheckoutCompletedRedeemsCoupon(t *testing.T) {
	userID := uuid.New()
	repo := &stubProfileRepo{applyOK: true}
	redeemer := &stubRedeemer{}
	svc := newWebhookService(t, repo, redeemer, &stubStripeClient{})

	event := checkoutCompletedEvent(t, userID, "basic", "LAUNCH20", 1_700_000_000)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if len(redeemer.redeemed) != 1 || redeemer.redeemed[0] != "LAUNCH20" {
		t.Fatalf("expected coupon redeemed, got %v", redeemer.redeemed)
	}
	if redeemer.users[0] != userID {
		t.Fatalf("coupon redeemed for wrong user")
	}
}

func TestHandleCheckoutCompletedReplayedCouponIsFine(t *testing.T) {
	userID := uuid.New()
	repo := &stubProfileRepo{applyOK: true}
	redeemer := &stubRedeemer{err: pkgerrors.New(pkgerrors.CodeAlreadyRedeemed, "redemption already recorded")}
	svc := newWebhookService(t, repo, redeemer, &stubStripeClient{})

	event := checkoutCompletedEvent(t, userID, "basic", "LAUNCH20", 1_700_000_000)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("replayed coupon must not fail the event: %v", err)
	}
}

func TestHandleCheckoutCompletedMissingMetadata(t *testing.T) {
	repo := &stubProfileRepo{applyOK: true}
	svc := newWebhookService(t, repo, &stubRedeemer{}, &stubStripeClient{})

	session := &stripe.CheckoutSession{ID: "cs_bad"}
	raw, _ := json.Marshal(session)
	event := &stripe.Event{
		ID:      "evt_bad",
		Type:    stripe.EventTypeCheckoutSessionCompleted,
		Created: 1,
		Data:    &stripe.EventData{Raw: raw},
	}

	if err := svc.HandleEvent(context.Background(), event); err == nil {
		t.Fatalf("expected error for missing metadata")
	}
	if len(repo.applied) != 0 {
		t.Fatalf("must not write profile on bad metadata")
	}
}

func subscriptionEvent(t *testing.T, eventType stripe.EventType, sub *stripe.Subscription, created int64) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("marshal subscription: %v", err)
	}
	return &stripe.Event{
		ID:      "evt_sub",
		Type:    eventType,
		Created: created,
		Data:    &stripe.EventData{Raw: raw},
	}
}

func TestSubscriptionUpdatedSyncsProfile(t *testing.T) {
	profile := &models.UserProfile{
		ID:               uuid.New(),
		SubscriptionTier: enums.SubscriptionTierBasic,
	}
	repo := &stubProfileRepo{profile: profile, applyOK: true}
	svc := newWebhookService(t, repo, &stubRedeemer{}, &stubStripeClient{})

	sub := &stripe.Subscription{
		ID:       "sub_up",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_1"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: "price_premium"}}},
		},
	}
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub, 1_700_000_100)

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if repo.customerID != "cus_1" {
		t.Fatalf("expected lookup by customer id")
	}
	update := repo.applied[0]
	if update.Tier != enums.SubscriptionTierPremium {
		t.Fatalf("expected upgrade to premium, got %s", update.Tier)
	}
	if update.Status != enums.SubscriptionStatusActive {
		t.Fatalf("unexpected status %s", update.Status)
	}
}

func TestSubscriptionDeletedDowngradesToFree(t *testing.T) {
	profile := &models.UserProfile{
		ID:               uuid.New(),
		SubscriptionTier: enums.SubscriptionTierPremium,
	}
	repo := &stubProfileRepo{profile: profile, applyOK: true}
	svc := newWebhookService(t, repo, &stubRedeemer{}, &stubStripeClient{})

	sub := &stripe.Subscription{
		ID:       "sub_gone",
		Status:   stripe.SubscriptionStatusCanceled,
		Customer: &stripe.Customer{ID: "cus_1"},
	}
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, sub, 1_700_000_200)

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	update := repo.applied[0]
	if update.Tier != enums.SubscriptionTierFree {
		t.Fatalf("canceled subscription must drop tier to free, got %s", update.Tier)
	}
	if update.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("unexpected status %s", update.Status)
	}
}

func TestSubscriptionPastDueKeepsTier(t *testing.T) {
	profile := &models.UserProfile{
		ID:               uuid.New(),
		SubscriptionTier: enums.SubscriptionTierPremium,
	}
	repo := &stubProfileRepo{profile: profile, applyOK: true}
	svc := newWebhookService(t, repo, &stubRedeemer{}, &stubStripeClient{})

	sub := &stripe.Subscription{
		ID:       "sub_due",
		Status:   stripe.SubscriptionStatusPastDue,
		Customer: &stripe.Customer{ID: "cus_1"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: "price_premium"}}},
		},
	}
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub, 1_700_000_300)

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	update := repo.applied[0]
	if update.Tier != enums.SubscriptionTierPremium {
		t.Fatalf("past_due must keep the paid tier, got %s", update.Tier)
	}
	if update.Status != enums.SubscriptionStatusPastDue {
		t.Fatalf("unexpected status %s", update.Status)
	}
}

func TestInvoicePaidFetchesSubscription(t *testing.T) {
	profile := &models.UserProfile{
		ID:               uuid.New(),
		SubscriptionTier: enums.SubscriptionTierBasic,
	}
	repo := &stubProfileRepo{profile: profile, applyOK: true}
	client := &stubStripeClient{
		sub: &stripe.Subscription{
			ID:       "sub_inv",
			Status:   stripe.SubscriptionStatusActive,
			Customer: &stripe.Customer{ID: "cus_1"},
			Items: &stripe.SubscriptionItemList{
				Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: "price_basic"}}},
			},
		},
	}
	svc := newWebhookService(t, repo, &stubRedeemer{}, client)

	raw, _ := json.Marshal(map[string]any{"subscription": "sub_inv"})
	event := &stripe.Event{
		ID:      "evt_inv",
		Type:    stripe.EventTypeInvoicePaid,
		Created: 1_700_000_400,
		Data:    &stripe.EventData{Raw: raw, Object: map[string]any{"subscription": "sub_inv"}},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(repo.applied) != 1 {
		t.Fatalf("expected profile update from invoice event")
	}
}

func TestUnknownEventTypeIgnored(t *testing.T) {
	repo := &stubProfileRepo{applyOK: true}
	svc := newWebhookService(t, repo, &stubRedeemer{}, &stubStripeClient{})

	event := &stripe.Event{
		ID:   "evt_misc",
		Type: stripe.EventType("payment_intent.created"),
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown events must be ignored: %v", err)
	}
	if len(repo.applied) != 0 {
		t.Fatalf("unknown events must not touch profiles")
	}
}

func TestSubscriptionEventUnknownCustomer(t *testing.T) {
	repo := &stubProfileRepo{applyOK: true}
	svc := newWebhookService(t, repo, &stubRedeemer{}, &stubStripeClient{})

	sub := &stripe.Subscription{
		ID:       "sub_orphan",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_unknown"},
	}
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub, 1)

	err := svc.HandleEvent(context.Background(), event)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestSubscriptionEventUnknownCustomerWrappedLookupError(t *testing.T) {
	// Repositories may wrap the driver's not-found; the classification has to
	// survive the wrapping.
	repo := &stubProfileRepo{
		applyOK: true,
		getErr:  fmt.Errorf("load profile by customer: %w", gorm.ErrRecordNotFound),
	}
	svc := newWebhookService(t, repo, &stubRedeemer{}, &stubStripeClient{})

	sub := &stripe.Subscription{
		ID:       "sub_orphan_wrapped",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_unknown"},
	}
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub, 1)

	err := svc.HandleEvent(context.Background(), event)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for wrapped lookup error, got %v", err)
	}
}

func TestCheckoutCompletedSendsActivationReceipt(t *testing.T) {
	userID := uuid.New()
	repo := &stubProfileRepo{
		profile: &models.UserProfile{ID: userID, Email: "sam@example.com", FullName: "Sam"},
		applyOK: true,
	}
	notifier := &stubNotifier{}
	svc := newWebhookService(t, repo, &stubRedeemer{}, &stubStripeClient{})
	svc.notifier = notifier

	event := checkoutCompletedEvent(t, userID, "premium", "", 1_700_000_000)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(notifier.activated) != 1 || notifier.activated[0] != "sam@example.com:premium" {
		t.Fatalf("expected activation receipt, got %v", notifier.activated)
	}
}

func TestStaleCheckoutSendsNoReceipt(t *testing.T) {
	userID := uuid.New()
	repo := &stubProfileRepo{
		profile: &models.UserProfile{ID: userID, Email: "sam@example.com"},
		applyOK: false,
	}
	notifier := &stubNotifier{}
	svc := newWebhookService(t, repo, &stubRedeemer{}, &stubStripeClient{})
	svc.notifier = notifier

	event := checkoutCompletedEvent(t, userID, "basic", "", 1)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(notifier.activated) != 0 {
		t.Fatal("skipped events must not send receipts")
	}
}

func TestSubscriptionDeletedSendsCancellationNote(t *testing.T) {
	profile := &models.UserProfile{
		ID:                 uuid.New(),
		Email:              "sam@example.com",
		SubscriptionTier:   enums.SubscriptionTierPremium,
		SubscriptionStatus: enums.SubscriptionStatusActive,
	}
	repo := &stubProfileRepo{profile: profile, applyOK: true}
	notifier := &stubNotifier{}
	svc := newWebhookService(t, repo, &stubRedeemer{}, &stubStripeClient{})
	svc.notifier = notifier

	sub := &stripe.Subscription{
		ID:       "sub_gone",
		Status:   stripe.SubscriptionStatusCanceled,
		Customer: &stripe.Customer{ID: "cus_1"},
	}
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, sub, 1_700_000_500)

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(notifier.canceled) != 1 || notifier.canceled[0] != "sam@example.com" {
		t.Fatalf("expected cancellation note, got %v", notifier.canceled)
	}
}

func TestNotifierFailureDoesNotFailEvent(t *testing.T) {
	userID := uuid.New()
	repo := &stubProfileRepo{
		profile: &models.UserProfile{ID: userID, Email: "sam@example.com"},
		applyOK: true,
	}
	notifier := &stubNotifier{err: errors.New("smtp down")}
	svc := newWebhookService(t, repo, &stubRedeemer{}, &stubStripeClient{})
	svc.notifier = notifier

	event := checkoutCompletedEvent(t, userID, "basic", "", 1)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("receipt failure must not fail the event: %v", err)
	}
}

func TestApplyErrorPropagates(t *testing.T) {
	userID := uuid.New()
	wantErr := errors.New("db down")
	repo := &stubProfileRepo{applyErr: wantErr}
	svc := newWebhookService(t, repo, &stubRedeemer{}, &stubStripeClient{})

	event := checkoutCompletedEvent(t, userID, "basic", "", 1)
	if err := svc.HandleEvent(context.Background(), event); !errors.Is(err, wantErr) {
		t.Fatalf("expected db error to propagate, got %v", err)
	}
}
