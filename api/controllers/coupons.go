package controllers

import (
	"context"
	"net/http"

	"github.com/kickoffclub/hq-backend/api/responses"
	"github.com/kickoffclub/hq-backend/api/validators"
	"github.com/kickoffclub/hq-backend/internal/coupons"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/logger"
)

type couponValidatorService interface {
	Validate(ctx context.Context, code string) (*coupons.ValidationResult, error)
}

type validateCouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// CouponValidate checks a code without consuming it. Invalid codes are a
// normal 200 with valid:false so the checkout form can show the reason.
func CouponValidate(svc couponValidatorService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		var req validateCouponRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithCouponCode(ctx, req.Code)
		}

		result, err := svc.Validate(ctx, req.Code)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
