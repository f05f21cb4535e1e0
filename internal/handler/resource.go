package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"crud-scaffold/internal/entity"
	"crud-scaffold/internal/metrics"
	"crud-scaffold/internal/response"
)

// Resource exposes one entity store as a REST collection.
type Resource[T any, PT entity.Model[T]] struct {
	name    string
	store   *entity.Store[T, PT]
	wr      *response.Writer
	metrics *metrics.Registry
}

func NewResource[T any, PT entity.Model[T]](name string, s *entity.Store[T, PT], wr *response.Writer, m *metrics.Registry) *Resource[T, PT] {
	return &Resource[T, PT]{name: name, store: s, wr: wr, metrics: m}
}

// Name returns the collection name used in metrics labels.
func (h *Resource[T, PT]) Name() string { return h.name }

// Routes returns the collection router, to be mounted at /{name}.
func (h *Resource[T, PT]) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

func (h *Resource[T, PT]) Create(w http.ResponseWriter, r *http.Request) {
	partial, err := decodePartial(r)
	if err != nil {
		h.wr.Error(w, err)
		return
	}
	item, err := h.store.Create(partial)
	if h.done(w, "create", err) {
		return
	}
	h.wr.Created(w, response.MsgCreated, item)
}

func (h *Resource[T, PT]) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.store.List(parseQuery(r))
	if h.done(w, "list", err) {
		return
	}
	h.wr.Paginated(w, response.MsgRetrieved, page.Items, response.PaginationOf(page))
}

func (h *Resource[T, PT]) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.Get(chi.URLParam(r, "id"))
	if h.done(w, "get", err) {
		return
	}
	h.wr.OK(w, response.MsgRetrieved, item)
}

func (h *Resource[T, PT]) Update(w http.ResponseWriter, r *http.Request) {
	partial, err := decodePartial(r)
	if err != nil {
		h.wr.Error(w, err)
		return
	}
	item, err := h.store.Update(chi.URLParam(r, "id"), partial)
	if h.done(w, "update", err) {
		return
	}
	h.wr.OK(w, response.MsgUpdated, item)
}

func (h *Resource[T, PT]) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(chi.URLParam(r, "id"))
	if h.done(w, "delete", err) {
		return
	}
	h.wr.OK(w, response.MsgDeleted, nil)
}

// RefreshGauge publishes the store's current entity counts.
func (h *Resource[T, PT]) RefreshGauge() {
	st := h.store.Stats()
	h.metrics.SetEntities(h.name, st.Active, st.Deleted)
}

// done records the outcome of op and writes the error envelope when err is
// non-nil. It reports whether the response has been written.
func (h *Resource[T, PT]) done(w http.ResponseWriter, op string, err error) bool {
	if err != nil {
		h.metrics.StoreOp(h.name, op, entity.KindOf(err).String())
		h.wr.Error(w, err)
		return true
	}
	h.metrics.StoreOp(h.name, op, "ok")
	if op != "list" && op != "get" {
		h.RefreshGauge()
	}
	return false
}

func decodePartial(r *http.Request) (map[string]any, error) {
	var partial map[string]any
	err := json.NewDecoder(r.Body).Decode(&partial)
	switch {
	case err == nil:
		return partial, nil
	case errors.Is(err, io.EOF):
		return nil, nil
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &entity.Error{Kind: entity.KindInvalidInput, Op: "decode", Message: "Request body too large", Err: err}
		}
		return nil, &entity.Error{Kind: entity.KindInvalidInput, Op: "decode", Message: "Invalid payload", Err: err}
	}
}

// parseQuery reads paging parameters; unparsable integers fall back to the
// store defaults.
func parseQuery(r *http.Request) entity.Query {
	v := r.URL.Query()
	page, _ := strconv.Atoi(v.Get("page"))
	limit, _ := strconv.Atoi(v.Get("limit"))
	return entity.Query{
		Page:      page,
		Limit:     limit,
		SortBy:    v.Get("sortBy"),
		SortOrder: entity.SortOrder(v.Get("sortOrder")),
		Search:    v.Get("search"),
	}
}

// Purge physically removes entities soft-deleted before the cutoff.
func (h *Resource[T, PT]) Purge(before time.Time) int {
	n := h.store.Purge(before)
	h.metrics.StoreOp(h.name, "purge", "ok")
	h.RefreshGauge()
	return n
}
