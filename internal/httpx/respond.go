package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-concert-tickets/internal/billing"
	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	codeNotFound          = "not_found"
	codeMethodNotAllowed  = "method_not_allowed"
	codeInvalidJSON       = "invalid_request_body"
	codeConcertNotFound   = "concert_not_found"
	codeOrderNotFound     = "order_not_found"
	codeNotEnoughTickets  = "not_enough_tickets"
	codeTicketsTaken      = "tickets_unavailable"
	codePaymentFailed     = "payment_failed"
	codeGatewayDown       = "payment_gateway_unavailable"
	codeInvalidQuantity   = "invalid_quantity"
	codeInvalidConcert    = "invalid_concert"
	codeUnauthorized      = "unauthorized"
	codeRateLimited       = "rate_limited"
	codeInternalError     = "internal_error"
	messageInvalidRequest = "The given data was invalid."
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type validationResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeValidation renders ozzo validation errors keyed by JSON field.
func writeValidation(w http.ResponseWriter, err error) {
	out := map[string][]string{}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for field, e := range errs {
			out[field] = []string{e.Error()}
		}
	} else {
		out["_"] = []string{err.Error()}
	}
	writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Message: messageInvalidRequest, Errors: out})
}

// writeDomainError maps service errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, concerts.ErrConcertNotFound):
		writeError(w, http.StatusNotFound, codeConcertNotFound, "concert not found")
	case errors.Is(err, concerts.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeOrderNotFound, "order not found")
	case errors.Is(err, concerts.ErrNotEnoughTickets):
		writeError(w, http.StatusUnprocessableEntity, codeNotEnoughTickets, err.Error())
	case errors.Is(err, concerts.ErrTicketsUnavailable):
		writeError(w, http.StatusConflict, codeTicketsTaken, err.Error())
	case errors.Is(err, concerts.ErrPaymentFailed):
		writeError(w, http.StatusUnprocessableEntity, codePaymentFailed, "payment failed")
	case errors.Is(err, concerts.ErrInvalidQuantity):
		writeError(w, http.StatusUnprocessableEntity, codeInvalidQuantity, err.Error())
	case errors.Is(err, concerts.ErrInvalidConcert):
		writeError(w, http.StatusUnprocessableEntity, codeInvalidConcert, err.Error())
	case errors.Is(err, billing.ErrGatewayUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeGatewayDown, "payment provider unavailable, try again later")
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
