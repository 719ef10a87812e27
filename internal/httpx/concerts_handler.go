package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
	"github.com/ariefcatur/go-concert-tickets/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// TicketService is the storefront side of concerts.Service.
type TicketService interface {
	ListPublishedConcerts(ctx context.Context) ([]concerts.Concert, error)
	GetPublishedConcert(ctx context.Context, id int64) (concerts.Concert, error)
	PurchaseTickets(ctx context.Context, in concerts.PurchaseInput) (concerts.Order, error)
	GetOrder(ctx context.Context, concertID int64, confirmationNumber string) (concerts.Order, error)
}

type ConcertsHandler struct {
	Service TicketService
	// Limiter throttles the order endpoint per client. Nil disables it.
	Limiter *RateLimiter
}

type PurchaseReq struct {
	Email          string `json:"email"`
	TicketQuantity int    `json:"ticket_quantity"`
	PaymentToken   string `json:"payment_token"`
}

func (p PurchaseReq) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.TicketQuantity, validation.Required, validation.Min(1)),
		validation.Field(&p.PaymentToken, validation.Required),
	)
}

func (h *ConcertsHandler) Register(r chi.Router) {
	r.Route("/api/concerts", func(r chi.Router) {
		r.Get("/", h.listConcerts)
		r.Get("/{concertID}", h.showConcert)
		r.Get("/{concertID}/orders/{confirmationNumber}", h.showOrder)
		r.Group(func(r chi.Router) {
			if h.Limiter != nil {
				r.Use(h.Limiter.Middleware)
			}
			r.Post("/{concertID}/orders", h.purchaseTickets)
		})
	})
}

func (h *ConcertsHandler) listConcerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cs, err := h.Service.ListPublishedConcerts(ctx)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]concertResource, 0, len(cs))
	for _, c := range cs {
		out = append(out, toConcertResource(c))
	}
	writeJSON(w, http.StatusOK, dataEnvelope{Data: out})
}

func (h *ConcertsHandler) showConcert(w http.ResponseWriter, r *http.Request) {
	id, ok := concertID(r)
	if !ok {
		writeError(w, http.StatusNotFound, codeConcertNotFound, "concert not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Service.GetPublishedConcert(ctx, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataEnvelope{Data: toConcertResource(c)})
}

func (h *ConcertsHandler) purchaseTickets(w http.ResponseWriter, r *http.Request) {
	id, ok := concertID(r)
	if !ok {
		writeError(w, http.StatusNotFound, codeConcertNotFound, "concert not found")
		return
	}

	var req PurchaseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid json")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		writeValidation(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.PurchaseTimeout)
	defer cancel()

	order, err := h.Service.PurchaseTickets(ctx, concerts.PurchaseInput{
		ConcertID:      id,
		Email:          req.Email,
		Quantity:       req.TicketQuantity,
		PaymentToken:   req.PaymentToken,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		TraceID:        middleware.GetReqID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResource(order))
}

func (h *ConcertsHandler) showOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := concertID(r)
	if !ok {
		writeError(w, http.StatusNotFound, codeOrderNotFound, "order not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, err := h.Service.GetOrder(ctx, id, chi.URLParam(r, "confirmationNumber"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResource(order))
}

func concertID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "concertID"), 10, 64)
	return id, err == nil && id > 0
}
