package inventory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-inventory/internal/shared"
	"github.com/odyssey-erp/odyssey-inventory/internal/view"
)

const (
	itemsPath     = "/inventory/items"
	itemsTemplate = "pages/inventory/items.html"
)

// Handler serves the server-rendered inventory screen.
type Handler struct {
	logger    *slog.Logger
	store     Store
	templates *view.Engine
	csrf      *shared.CSRFManager
	timeout   time.Duration
	validator *Validator
}

// NewHandler constructs the inventory screen handler. timeout bounds every
// store call made while serving a request.
func NewHandler(logger *slog.Logger, store Store, templates *view.Engine, csrf *shared.CSRFManager, timeout time.Duration) *Handler {
	return &Handler{logger: logger, store: store, templates: templates, csrf: csrf, timeout: timeout, validator: NewValidator()}
}

// MountRoutes registers the screen under /inventory.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.showItems)
	r.Get("/items/export.csv", h.exportItems)
	r.Get("/items/{id}/edit", h.showEdit)
	r.Post("/items", h.createItem)
	r.Post("/items/{id}", h.updateItem)
	r.Post("/items/{id}/delete", h.deleteItem)
}

type itemsPageData struct {
	State      ScreenState
	CSRFToken  string
	FormAction string
	CreateURL  string
	ExportURL  string
	CancelURL  string
}

func (h *Handler) newScreen(r *http.Request) (*Screen, context.Context) {
	screen := NewScreen(h.store, ScreenOptions{Timeout: h.timeout, Logger: h.logger, Validator: h.validator})
	ctx := WithActor(r.Context(), shared.ActorIDFromContext(r.Context()))
	return screen, ctx
}

func (h *Handler) showItems(w http.ResponseWriter, r *http.Request) {
	screen, ctx := h.newScreen(r)
	defer screen.Close()

	status := http.StatusOK
	if err := screen.Load(ctx); err != nil {
		status = statusFor(err)
	}
	screen.SetSearch(r.URL.Query().Get("search"))
	if r.URL.Query().Get("modal") == "create" {
		screen.OpenCreate()
	}
	h.render(w, r, screen, status)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	screen, ctx := h.newScreen(r)
	defer screen.Close()

	search := r.URL.Query().Get("search")
	if err := screen.Load(ctx); err != nil {
		h.redirectWithFlash(w, r, search, shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	item, ok := screen.Item(chi.URLParam(r, "id"))
	if !ok {
		h.redirectWithFlash(w, r, search, shared.FlashError, Classify(opUpdate, "", ErrNotFound).UserMessage())
		return
	}
	screen.SetSearch(search)
	screen.OpenEdit(item)
	h.render(w, r, screen, http.StatusOK)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	screen, ctx := h.newScreen(r)
	defer screen.Close()

	screen.SetSearch(r.PostFormValue("search"))
	screen.OpenCreate()
	h.submit(ctx, w, r, screen, "Item added.")
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	screen, ctx := h.newScreen(r)
	defer screen.Close()

	screen.SetSearch(r.PostFormValue("search"))
	screen.OpenEdit(Item{ID: chi.URLParam(r, "id")})
	h.submit(ctx, w, r, screen, "Item updated.")
}

func (h *Handler) submit(ctx context.Context, w http.ResponseWriter, r *http.Request, screen *Screen, success string) {
	search := r.PostFormValue("search")
	err := screen.Submit(ctx, parseItemForm(r))
	if err == nil {
		message, kind := success, shared.FlashSuccess
		if notice := screen.State().Notice; notice != "" {
			message, kind = notice, shared.FlashInfo
		}
		h.redirectWithFlash(w, r, search, kind, message)
		return
	}
	state := screen.State()
	if !state.ModalOpen {
		h.redirectWithFlash(w, r, search, shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	// The table behind the modal still has to be shown.
	if rerr := screen.Reload(ctx); rerr != nil {
		h.logger.Warn("reload behind modal", slog.Any("error", rerr))
	}
	h.render(w, r, screen, statusFor(err))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	screen, ctx := h.newScreen(r)
	defer screen.Close()

	search := r.PostFormValue("search")
	if err := screen.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		h.redirectWithFlash(w, r, search, shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, search, shared.FlashSuccess, "Item deleted.")
}

func (h *Handler) exportItems(w http.ResponseWriter, r *http.Request) {
	screen, ctx := h.newScreen(r)
	defer screen.Close()

	search := r.URL.Query().Get("search")
	if err := screen.Load(ctx); err != nil {
		h.redirectWithFlash(w, r, search, shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	screen.SetSearch(search)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+CSVFilename+`"`)
	w.Header().Set("Cache-Control", "no-store")
	if err := screen.ExportCSV(w); err != nil {
		h.logger.Error("export inventory csv", slog.Any("error", err))
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, screen *Screen, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, err := h.csrf.EnsureToken(sess)
	if err != nil {
		h.logger.Warn("ensure csrf token", slog.Any("error", err))
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}

	state := screen.State()
	data := itemsPageData{
		State:      state,
		CSRFToken:  csrfToken,
		FormAction: itemsPath,
		CreateURL:  itemsURL(state.Search, "modal", "create"),
		ExportURL:  exportURL(state.Search),
		CancelURL:  itemsURL(state.Search),
	}
	if state.Editing != nil {
		data.FormAction = itemsPath + "/" + url.PathEscape(state.Editing.ID)
	}
	viewData := view.TemplateData{Title: "Inventory", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	if err := h.templates.Render(w, status, itemsTemplate, viewData); err != nil {
		h.logger.Error("render inventory items", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, search, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && message != "" {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, itemsURL(search), http.StatusSeeOther)
}

func parseItemForm(r *http.Request) ItemForm {
	return ItemForm{
		Name:        r.PostFormValue("name"),
		Price:       r.PostFormValue("price"),
		Description: r.PostFormValue("description"),
		Token:       r.PostFormValue("token"),
	}
}

// itemsURL builds the list URL keeping the search and extra key/value pairs.
func itemsURL(search string, extra ...string) string {
	q := url.Values{}
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	if strings.TrimSpace(search) != "" {
		q.Set("search", search)
	}
	if len(q) == 0 {
		return itemsPath
	}
	return itemsPath + "?" + q.Encode()
}

func exportURL(search string) string {
	if strings.TrimSpace(search) == "" {
		return itemsPath + "/export.csv"
	}
	return itemsPath + "/export.csv?" + url.Values{"search": {search}}.Encode()
}

func statusFor(err error) int {
	var fields FieldErrors
	if errors.As(err, &fields) {
		return http.StatusBadRequest
	}
	var serr *StoreError
	if errors.As(err, &serr) {
		return serr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
