package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kickoffclub/hq-backend/api/middleware"
	"github.com/kickoffclub/hq-backend/api/responses"
	"github.com/kickoffclub/hq-backend/api/validators"
	"github.com/kickoffclub/hq-backend/internal/billing"
	"github.com/kickoffclub/hq-backend/pkg/enums"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/logger"
)

type billingService interface {
	CreateCheckout(ctx context.Context, userID uuid.UUID, input billing.CheckoutInput) (*billing.CheckoutSession, error)
	BillingPortal(ctx context.Context, userID uuid.UUID) (*billing.PortalSession, error)
}

type checkoutRequest struct {
	Plan       string `json:"plan" validate:"required,oneof=basic premium"`
	CouponCode string `json:"coupon_code" validate:"omitempty,max=64"`
}

// BillingCheckout starts a Stripe checkout session for a paid plan.
func BillingCheckout(svc billingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing member identity"))
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		tier, err := enums.ParseSubscriptionTier(req.Plan)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown plan"))
			return
		}

		session, err := svc.CreateCheckout(ctx, userID, billing.CheckoutInput{
			Tier:       tier,
			CouponCode: req.CouponCode,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// BillingPortal returns a Stripe billing portal URL for self-serve changes.
func BillingPortal(svc billingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing member identity"))
			return
		}

		session, err := svc.BillingPortal(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, session)
	}
}
