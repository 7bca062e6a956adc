package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/logger"
	"github.com/kickoffclub/hq-backend/pkg/types"
)

// clientSafeCodes are the codes whose internal message can be shown to the
// caller verbatim. Everything else gets the generic public message for its
// code so internals never leak through an error string.
var clientSafeCodes = map[pkgerrors.Code]struct{}{
	pkgerrors.CodeValidation:      {},
	pkgerrors.CodeForbidden:       {},
	pkgerrors.CodeUnauthorized:    {},
	pkgerrors.CodeNotFound:        {},
	pkgerrors.CodeConflict:        {},
	pkgerrors.CodeAlreadyRedeemed: {},
	pkgerrors.CodeRaceLost:        {},
	pkgerrors.CodeNoSubscription:  {},
	pkgerrors.CodeRateLimit:       {},
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	logError(ctx, logg, err)
	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: buildAPIError(typed, meta)})
}

func buildAPIError(typed *pkgerrors.Error, meta pkgerrors.Metadata) types.APIError {
	msg := meta.PublicMessage
	if _, safe := clientSafeCodes[typed.Code()]; safe && typed.Message() != "" {
		msg = typed.Message()
	}

	apiErr := types.APIError{
		Code:    string(typed.Code()),
		Message: msg,
	}
	if meta.DetailsAllowed {
		apiErr.Details = typed.Details()
	}
	return apiErr
}

func logError(ctx context.Context, logg *logger.Logger, err error) {
	if logg == nil {
		return
	}
	dump := pkgerrors.Dump(err)
	ctx = logg.WithFields(ctx, map[string]any{
		"error":         dump.TopMessage,
		"error_code":    dump.Code,
		"error_chain":   dump.Chain,
		"pg_code":       dump.PGCode,
		"pg_detail":     dump.PGDetail,
		"pg_message":    dump.PGMessage,
		"pg_table":      dump.PGTable,
		"pg_column":     dump.PGColumn,
		"pg_constraint": dump.PGConstraint,
	})
	logg.Error(ctx, "request.error", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
