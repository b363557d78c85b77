package responses

import (
	"context"
	"encoding/json"
	"net/http"

	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
	"github.com/nexusauctions/nexus-backend/pkg/types"
)

// WriteSuccess writes a 200 envelope around data.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

// WriteSuccessStatus writes a success envelope with an explicit status code.
func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// codes whose service-level message is safe to surface to the caller.
var passthroughMessage = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:     true,
	pkgerrors.CodeNotFound:       true,
	pkgerrors.CodeConflict:       true,
	pkgerrors.CodeInvalidState:   true,
	pkgerrors.CodeAuctionEnded:   true,
	pkgerrors.CodeBidTooLow:      true,
	pkgerrors.CodeSelfBid:        true,
	pkgerrors.CodeInsufficient:   true,
	pkgerrors.CodeAlreadySettled: true,
}

// WriteError maps a service error onto the HTTP envelope. Unknown errors are
// treated as internal and never leak their message.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	code := pkgerrors.CodeInternal
	message := ""
	var details any

	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
		message = typed.Message()
		details = typed.Details()
	}

	meta := pkgerrors.MetadataFor(code)
	body := types.APIError{
		Code:    string(code),
		Message: meta.PublicMessage,
	}
	if message != "" && passthroughMessage[code] {
		body.Message = message
	}
	if details != nil && meta.DetailsAllowed {
		body.Details = details
	}

	if logg != nil && meta.HTTPStatus >= http.StatusInternalServerError {
		logg.Error(ctx, "request failed", err)
	}

	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
