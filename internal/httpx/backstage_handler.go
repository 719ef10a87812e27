package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	backstageDateLayout = "2006-01-02"
	backstageTimeLayout = "3:04pm"
)

// BackstageService is the promoter side of concerts.Service.
type BackstageService interface {
	CreateConcertWithTickets(ctx context.Context, c concerts.Concert, quantity int) (concerts.Concert, error)
	GetConcert(ctx context.Context, id int64) (concerts.Concert, error)
	PublishConcert(ctx context.Context, id int64) (concerts.Concert, error)
	AddTickets(ctx context.Context, concertID int64, quantity int) error
	TicketsRemaining(ctx context.Context, concertID int64) (int, error)
	OrderTickets(ctx context.Context, concertID int64, email string, quantity int) (concerts.Order, error)
}

// BackstageHandler serves promoter endpoints. Requests must carry a bearer
// token matching TokenHash; with an empty hash nothing is mounted.
type BackstageHandler struct {
	Service   BackstageService
	TokenHash []byte
}

type CreateConcertReq struct {
	Title                 string `json:"title"`
	Subtitle              string `json:"subtitle"`
	Date                  string `json:"date"`
	Time                  string `json:"time"`
	TicketPrice           string `json:"ticket_price"`
	Venue                 string `json:"venue"`
	VenueAddress          string `json:"venue_address"`
	City                  string `json:"city"`
	State                 string `json:"state"`
	Zip                   string `json:"zip"`
	AdditionalInformation string `json:"additional_information"`
	TicketQuantity        int    `json:"ticket_quantity"`
}

func (c CreateConcertReq) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&c.Date, validation.Required, validation.Date(backstageDateLayout)),
		validation.Field(&c.Time, validation.Required, validation.Date(backstageTimeLayout)),
		validation.Field(&c.TicketPrice, validation.Required, validation.By(dollarAmount)),
		validation.Field(&c.Venue, validation.Required),
		validation.Field(&c.VenueAddress, validation.Required),
		validation.Field(&c.City, validation.Required),
		validation.Field(&c.State, validation.Required),
		validation.Field(&c.Zip, validation.Required, is.Digit),
		validation.Field(&c.TicketQuantity, validation.Required, validation.Min(1)),
	)
}

// dollarAmount accepts "32.50" style prices of at least 5 dollars.
func dollarAmount(v any) error {
	s, _ := v.(string)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("must be a dollar amount")
	}
	if d.LessThan(decimal.NewFromInt(5)) {
		return errors.New("must be at least 5.00")
	}
	if !d.Equal(d.Round(2)) {
		return errors.New("must not have fractional cents")
	}
	return nil
}

func (c CreateConcertReq) toConcert() concerts.Concert {
	date, _ := time.Parse(backstageDateLayout+" "+backstageTimeLayout, c.Date+" "+c.Time)
	price, _ := decimal.NewFromString(c.TicketPrice)
	return concerts.Concert{
		Title:                 c.Title,
		Subtitle:              c.Subtitle,
		Date:                  date,
		TicketPrice:           price.Shift(2).IntPart(),
		Venue:                 c.Venue,
		VenueAddress:          c.VenueAddress,
		City:                  c.City,
		State:                 c.State,
		Zip:                   c.Zip,
		AdditionalInformation: c.AdditionalInformation,
	}
}

type AddTicketsReq struct {
	Quantity int `json:"quantity"`
}

func (a AddTicketsReq) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Quantity, validation.Required, validation.Min(1)),
	)
}

type BoxOfficeOrderReq struct {
	Email          string `json:"email"`
	TicketQuantity int    `json:"ticket_quantity"`
}

func (b BoxOfficeOrderReq) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Email, validation.Required, is.Email),
		validation.Field(&b.TicketQuantity, validation.Required, validation.Min(1)),
	)
}

func (h *BackstageHandler) Register(r chi.Router) {
	if len(h.TokenHash) == 0 {
		return
	}
	r.Route("/api/backstage/concerts", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/", h.createConcert)
		r.Get("/{concertID}", h.showConcert)
		r.Post("/{concertID}/tickets", h.addTickets)
		r.Post("/{concertID}/publish", h.publishConcert)
		r.Post("/{concertID}/orders", h.boxOfficeOrder)
	})
}

func (h *BackstageHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" || bcrypt.CompareHashAndPassword(h.TokenHash, []byte(token)) != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="backstage"`)
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *BackstageHandler) createConcert(w http.ResponseWriter, r *http.Request) {
	var req CreateConcertReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid json")
		return
	}
	req.Time = strings.ToLower(strings.TrimSpace(req.Time))
	if err := req.Validate(); err != nil {
		writeValidation(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Service.CreateConcertWithTickets(ctx, req.toConcert(), req.TicketQuantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeConcert(ctx, w, r, http.StatusCreated, c)
}

func (h *BackstageHandler) showConcert(w http.ResponseWriter, r *http.Request) {
	id, ok := concertID(r)
	if !ok {
		writeError(w, http.StatusNotFound, codeConcertNotFound, "concert not found")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Service.GetConcert(ctx, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeConcert(ctx, w, r, http.StatusOK, c)
}

func (h *BackstageHandler) addTickets(w http.ResponseWriter, r *http.Request) {
	id, ok := concertID(r)
	if !ok {
		writeError(w, http.StatusNotFound, codeConcertNotFound, "concert not found")
		return
	}
	var req AddTicketsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid json")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidation(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Service.AddTickets(ctx, id, req.Quantity); err != nil {
		writeDomainError(w, r, err)
		return
	}
	c, err := h.Service.GetConcert(ctx, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeConcert(ctx, w, r, http.StatusOK, c)
}

func (h *BackstageHandler) publishConcert(w http.ResponseWriter, r *http.Request) {
	id, ok := concertID(r)
	if !ok {
		writeError(w, http.StatusNotFound, codeConcertNotFound, "concert not found")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Service.PublishConcert(ctx, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeConcert(ctx, w, r, http.StatusOK, c)
}

func (h *BackstageHandler) boxOfficeOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := concertID(r)
	if !ok {
		writeError(w, http.StatusNotFound, codeConcertNotFound, "concert not found")
		return
	}
	var req BoxOfficeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid json")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		writeValidation(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Service.OrderTickets(ctx, id, req.Email, req.TicketQuantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResource(order))
}

func (h *BackstageHandler) writeConcert(ctx context.Context, w http.ResponseWriter, r *http.Request, status int, c concerts.Concert) {
	remaining, err := h.Service.TicketsRemaining(ctx, c.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	res := toConcertResource(c)
	res.TicketsRemaining = &remaining
	writeJSON(w, status, dataEnvelope{Data: res})
}
