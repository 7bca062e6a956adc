package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/kickoffclub/hq-backend/internal/coupons"
	"github.com/kickoffclub/hq-backend/pkg/config"
	"github.com/kickoffclub/hq-backend/pkg/db/models"
	"github.com/kickoffclub/hq-backend/pkg/enums"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/logger"
)

type stubStripeClient struct {
	createdCustomer *stripe.CustomerParams
	checkoutParams  *stripe.CheckoutSessionParams
	portalParams    *stripe.BillingPortalSessionParams
	checkoutErr     error
	portalErr       error
}

func (s *stubStripeClient) CreateCustomer(_ context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	s.createdCustomer = params
	return &stripe.Customer{ID: "cus_new"}, nil
}

func (s *stubStripeClient) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if s.checkoutErr != nil {
		return nil, s.checkoutErr
	}
	s.checkoutParams = params
	return &stripe.CheckoutSession{ID: "cs_123", URL: "https://checkout.stripe.com/cs_123"}, nil
}

func (s *stubStripeClient) CreatePortalSession(_ context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	if s.portalErr != nil {
		return nil, s.portalErr
	}
	s.portalParams = params
	return &stripe.BillingPortalSession{URL: "https://billing.stripe.com/p_123"}, nil
}

type stubProfileStore struct {
	profile     *models.UserProfile
	getErr      error
	setCustomer string
}

func (s *stubProfileStore) GetByID(_ context.Context, _ uuid.UUID) (*models.UserProfile, error) {
	return s.profile, s.getErr
}

func (s *stubProfileStore) SetStripeCustomerID(_ context.Context, _ uuid.UUID, customerID string) error {
	s.setCustomer = customerID
	return nil
}

type stubCouponValidator struct {
	result *coupons.ValidationResult
	err    error
	asked  string
}

func (s *stubCouponValidator) Validate(_ context.Context, code string) (*coupons.ValidationResult, error) {
	s.asked = code
	return s.result, s.err
}

func testConfig() config.StripeConfig {
	return config.StripeConfig{
		BasicPriceID:       "price_basic",
		PremiumPriceID:     "price_premium",
		CheckoutSuccessURL: "https://hq.test/success",
		CheckoutCancelURL:  "https://hq.test/cancel",
		PortalReturnURL:    "https://hq.test/account",
	}
}

func freshProfile() *models.UserProfile {
	return &models.UserProfile{
		ID:       uuid.New(),
		Email:    "member@example.com",
		FullName: "Sam Member",
	}
}

func newBillingService(t *testing.T, stripeClient *stubStripeClient, store *stubProfileStore, validator *stubCouponValidator) *service {
	t.Helper()
	return &service{
		stripeClient: stripeClient,
		profileRepo:  store,
		coupons:      validator,
		cfg:          testConfig(),
		logg:         logger.New(logger.Options{}),
	}
}

func TestCreateCheckoutNewCustomer(t *testing.T) {
	profile := freshProfile()
	stripeClient := &stubStripeClient{}
	store := &stubProfileStore{profile: profile}
	svc := newBillingService(t, stripeClient, store, &stubCouponValidator{})

	out, err := svc.CreateCheckout(context.Background(), profile.ID, CheckoutInput{Tier: enums.SubscriptionTierPremium})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if out.SessionID != "cs_123" || out.URL == "" {
		t.Fatalf("unexpected session %+v", out)
	}
	if store.setCustomer != "cus_new" {
		t.Fatalf("expected new customer id persisted, got %q", store.setCustomer)
	}
	if got := *stripeClient.checkoutParams.LineItems[0].Price; got != "price_premium" {
		t.Fatalf("expected premium price, got %q", got)
	}
	if got := stripeClient.checkoutParams.Metadata[MetadataUserID]; got != profile.ID.String() {
		t.Fatalf("expected user id metadata, got %q", got)
	}
}

func TestCreateCheckoutExistingCustomerSkipsCreate(t *testing.T) {
	profile := freshProfile()
	existing := "cus_existing"
	profile.StripeCustomerID = &existing
	stripeClient := &stubStripeClient{}
	store := &stubProfileStore{profile: profile}
	svc := newBillingService(t, stripeClient, store, &stubCouponValidator{})

	_, err := svc.CreateCheckout(context.Background(), profile.ID, CheckoutInput{Tier: enums.SubscriptionTierBasic})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if stripeClient.createdCustomer != nil {
		t.Fatalf("must not create a second stripe customer")
	}
	if got := *stripeClient.checkoutParams.Customer; got != existing {
		t.Fatalf("expected existing customer, got %q", got)
	}
}

func TestCreateCheckoutWithValidCoupon(t *testing.T) {
	profile := freshProfile()
	stripeClient := &stubStripeClient{}
	validator := &stubCouponValidator{
		result: &coupons.ValidationResult{
			Valid:  true,
			Coupon: &coupons.CouponSummary{ID: uuid.New(), Code: "LAUNCH20"},
		},
	}
	svc := newBillingService(t, stripeClient, &stubProfileStore{profile: profile}, validator)

	_, err := svc.CreateCheckout(context.Background(), profile.ID, CheckoutInput{
		Tier:       enums.SubscriptionTierBasic,
		CouponCode: "launch20",
	})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if validator.asked != "launch20" {
		t.Fatalf("expected coupon validated, got %q", validator.asked)
	}
	if got := stripeClient.checkoutParams.Metadata[MetadataCouponCode]; got != "LAUNCH20" {
		t.Fatalf("expected coupon metadata, got %q", got)
	}
}

func TestCreateCheckoutRejectsInvalidCoupon(t *testing.T) {
	profile := freshProfile()
	validator := &stubCouponValidator{
		result: &coupons.ValidationResult{Valid: false, Reason: coupons.ReasonExhausted},
	}
	svc := newBillingService(t, &stubStripeClient{}, &stubProfileStore{profile: profile}, validator)

	_, err := svc.CreateCheckout(context.Background(), profile.ID, CheckoutInput{
		Tier:       enums.SubscriptionTierBasic,
		CouponCode: "USEDUP",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateCheckoutRejectsTierMismatchedCoupon(t *testing.T) {
	profile := freshProfile()
	premiumOnly := enums.SubscriptionTierPremium
	validator := &stubCouponValidator{
		result: &coupons.ValidationResult{
			Valid:  true,
			Coupon: &coupons.CouponSummary{ID: uuid.New(), Code: "PREMONLY", AppliesToTier: &premiumOnly},
		},
	}
	svc := newBillingService(t, &stubStripeClient{}, &stubProfileStore{profile: profile}, validator)

	_, err := svc.CreateCheckout(context.Background(), profile.ID, CheckoutInput{
		Tier:       enums.SubscriptionTierBasic,
		CouponCode: "PREMONLY",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateCheckoutFreeTier(t *testing.T) {
	svc := newBillingService(t, &stubStripeClient{}, &stubProfileStore{profile: freshProfile()}, &stubCouponValidator{})

	_, err := svc.CreateCheckout(context.Background(), uuid.New(), CheckoutInput{Tier: enums.SubscriptionTierFree})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for free tier, got %v", err)
	}
}

func TestCreateCheckoutProviderFailure(t *testing.T) {
	profile := freshProfile()
	stripeClient := &stubStripeClient{checkoutErr: &stripe.Error{Msg: "rate limited"}}
	svc := newBillingService(t, stripeClient, &stubProfileStore{profile: profile}, &stubCouponValidator{})

	_, err := svc.CreateCheckout(context.Background(), profile.ID, CheckoutInput{Tier: enums.SubscriptionTierBasic})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeProvider {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestBillingPortal(t *testing.T) {
	profile := freshProfile()
	customer := "cus_42"
	profile.StripeCustomerID = &customer
	stripeClient := &stubStripeClient{}
	svc := newBillingService(t, stripeClient, &stubProfileStore{profile: profile}, &stubCouponValidator{})

	out, err := svc.BillingPortal(context.Background(), profile.ID)
	if err != nil {
		t.Fatalf("billing portal: %v", err)
	}
	if out.URL == "" {
		t.Fatalf("expected portal url")
	}
	if got := *stripeClient.portalParams.Customer; got != customer {
		t.Fatalf("expected customer %q, got %q", customer, got)
	}
}

func TestBillingPortalNoCustomer(t *testing.T) {
	svc := newBillingService(t, &stubStripeClient{}, &stubProfileStore{profile: freshProfile()}, &stubCouponValidator{})

	_, err := svc.BillingPortal(context.Background(), uuid.New())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNoSubscription {
		t.Fatalf("expected no subscription error, got %v", err)
	}
}
