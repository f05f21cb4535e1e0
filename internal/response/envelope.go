// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"crud-scaffold/internal/entity"
)

const (
	MsgCreated   = "Created successfully"
	MsgRetrieved = "Retrieved successfully"
	MsgUpdated   = "Updated successfully"
	MsgDeleted   = "Deleted successfully"
	MsgThrottled = "Too many requests, please try again later"
	MsgInternal  = "Internal server error"
)

// Envelope is the body of every response.
type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       any         `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Stack      string      `json:"stack,omitempty"`
	Timestamp  string      `json:"timestamp"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes the page carried by a listing envelope.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// PaginationOf extracts the paging metadata of p.
func PaginationOf[E any](p entity.Page[E]) Pagination {
	return Pagination{Page: p.Page, Limit: p.Limit, Total: p.Total, TotalPages: p.TotalPages}
}

// Writer renders envelopes. Outside production, internal failures carry
// their cause and stack trace.
type Writer struct {
	production bool
	now        func() time.Time
}

func NewWriter(production bool) *Writer {
	return &Writer{production: production, now: time.Now}
}

// WithClock returns a copy of w stamping envelopes with now.
func (wr *Writer) WithClock(now func() time.Time) *Writer {
	c := *wr
	c.now = now
	return &c
}

func (wr *Writer) timestamp() string {
	return wr.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// JSON writes env with the given status, filling in the timestamp.
func (wr *Writer) JSON(w http.ResponseWriter, status int, env Envelope) {
	env.Timestamp = wr.timestamp()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func (wr *Writer) OK(w http.ResponseWriter, msg string, data any) {
	wr.JSON(w, http.StatusOK, Envelope{Success: true, Message: msg, Data: data})
}

func (wr *Writer) Created(w http.ResponseWriter, msg string, data any) {
	wr.JSON(w, http.StatusCreated, Envelope{Success: true, Message: msg, Data: data})
}

// Paginated writes a successful listing.
func (wr *Writer) Paginated(w http.ResponseWriter, msg string, items any, p Pagination) {
	wr.JSON(w, http.StatusOK, Envelope{Success: true, Message: msg, Data: items, Pagination: &p})
}

// Fail writes a failure envelope. detail is optional.
func (wr *Writer) Fail(w http.ResponseWriter, status int, msg string, detail error) {
	env := Envelope{Success: false, Message: msg}
	if detail != nil {
		env.Error = detail.Error()
	}
	wr.JSON(w, status, env)
}

// Throttled writes the rate limit rejection.
func (wr *Writer) Throttled(w http.ResponseWriter) {
	wr.JSON(w, http.StatusTooManyRequests, Envelope{Success: false, Message: MsgThrottled})
}

// Error maps err onto a status and failure envelope. Store errors use their
// kind; anything else is an internal failure.
func (wr *Writer) Error(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	msg := MsgInternal
	var se *entity.Error
	if errors.As(err, &se) {
		msg = se.Message
	}

	env := Envelope{Success: false, Message: msg}
	if status != http.StatusInternalServerError {
		if cause := entity.Cause(err); cause != nil {
			env.Error = cause.Error()
		}
	} else if !wr.production {
		cause := entity.Cause(err)
		if cause == nil {
			cause = err
		}
		env.Error = cause.Error()
		env.Stack = fmt.Sprintf("%+v", cause)
	}
	wr.JSON(w, status, env)
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	switch entity.KindOf(err) {
	case entity.KindNotFound:
		return http.StatusNotFound
	case entity.KindInvalidState:
		return http.StatusConflict
	case entity.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
