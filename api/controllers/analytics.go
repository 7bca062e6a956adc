package controllers

import (
	"net/http"

	"github.com/kickoffclub/hq-backend/api/middleware"
	"github.com/kickoffclub/hq-backend/api/responses"
	"github.com/kickoffclub/hq-backend/api/validators"
	"github.com/kickoffclub/hq-backend/internal/analytics"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/logger"
)

type webVitalsRequest struct {
	Samples []analytics.WebVitalSample `json:"samples" validate:"required,min=1,dive"`
}

// WebVitals accepts browser performance reports. The endpoint stays a 204 on
// success so the client beacon never waits on BigQuery internals.
func WebVitals(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "analytics service unavailable"))
			return
		}

		var req webVitalsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		err := svc.RecordVitals(ctx, analytics.ReportContext{
			UserID:    middleware.UserIDFromContext(ctx),
			UserAgent: r.UserAgent(),
		}, req.Samples)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
