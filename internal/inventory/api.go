package inventory

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-inventory/internal/platform/httpx"
)

// IdempotencyHeader carries the submission token of a create call.
const IdempotencyHeader = "Idempotency-Key"

// APIHandler exposes a Store as the JSON inventory API.
type APIHandler struct {
	logger *slog.Logger
	store  Store
	token  string
}

// NewAPIHandler constructs the API. An empty token disables bearer auth.
func NewAPIHandler(logger *slog.Logger, store Store, token string) *APIHandler {
	return &APIHandler{logger: logger, store: store, token: token}
}

// MountRoutes registers the API under /api/inventory/items.
func (h *APIHandler) MountRoutes(r chi.Router) {
	r.Use(httpx.RequireBearer(h.token))
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *APIHandler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, opList, "", err)
		return
	}
	if items == nil {
		items = []Item{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *APIHandler) create(w http.ResponseWriter, r *http.Request) {
	var fields ItemFields
	if err := httpx.DecodeJSON(r, &fields); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx := WithIdempotencyKey(r.Context(), strings.TrimSpace(r.Header.Get(IdempotencyHeader)))
	item, err := h.store.Create(ctx, fields)
	if err != nil {
		h.fail(w, opCreate, "", err)
		return
	}
	w.Header().Set("Location", "/api/inventory/items/"+item.ID)
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *APIHandler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var fields ItemFields
	if err := httpx.DecodeJSON(r, &fields); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.store.Update(r.Context(), id, fields)
	if err != nil {
		h.fail(w, opUpdate, id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *APIHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.fail(w, opDelete, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) fail(w http.ResponseWriter, op, id string, err error) {
	serr := Classify(op, id, err)
	if serr.Kind == KindInternal || serr.Kind == KindNetwork {
		h.logger.Error("inventory api", slog.String("op", op), slog.String("id", id), slog.Any("error", err))
	}
	httpx.RespondError(w, serr)
}
