package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/infra/logging"

	"github.com/rs/zerolog"
)

// statusClientClosedRequest is nginx's code for a client that hung up
// before the response was ready.
const statusClientClosedRequest = 499

type errorBody struct {
	Error       string     `json:"error"`
	Message     string     `json:"message"`
	Field       string     `json:"field,omitempty"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	DaysOverdue *int       `json:"days_overdue,omitempty"`
}

// statusFor maps the domain taxonomy onto HTTP. The error code string is
// stable and meant for clients; the message is informational.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusConflict, "insufficient_balance"
	case errors.Is(err, domain.ErrSoldOut):
		return http.StatusConflict, "sold_out"
	case errors.Is(err, domain.ErrAlreadyUsed):
		return http.StatusConflict, "already_used"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, domain.ErrTemplateExpired):
		return http.StatusGone, "template_expired"
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone, "expired"
	case errors.Is(err, domain.ErrBusy):
		return http.StatusServiceUnavailable, "busy"
	case errors.Is(err, domain.ErrCanceled):
		return statusClientClosedRequest, "canceled"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	code, kind := statusFor(err)
	body := errorBody{Error: kind, Message: err.Error()}

	var (
		verr *domain.ValidationError
		used *domain.AlreadyUsedError
		exp  *domain.ExpiredError
	)
	switch {
	case errors.As(err, &verr):
		body.Field = verr.Field
	case errors.As(err, &used):
		if !used.UsedAt.IsZero() {
			t := used.UsedAt.UTC()
			body.UsedAt = &t
		}
	case errors.As(err, &exp):
		d := exp.DaysOverdue
		body.DaysOverdue = &d
	}

	switch code {
	case http.StatusInternalServerError:
		// never leak driver details
		body.Message = "internal error"
		if logger != nil {
			logging.With(r.Context(), logger).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		}
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
	case statusClientClosedRequest:
		if logger != nil {
			logging.With(r.Context(), logger).Debug().Err(err).Str("path", r.URL.Path).Msg("client went away")
		}
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
