package inventory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-inventory/internal/shared"
	"github.com/odyssey-erp/odyssey-inventory/internal/view"
)

type handlerHarness struct {
	router   http.Handler
	store    *fakeStore
	sessions *shared.SessionManager
	session  *shared.Session
}

func newHandlerHarness(t *testing.T, store *fakeStore) *handlerHarness {
	t.Helper()
	engine, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &handlerHarness{store: store, sessions: shared.NewSessionManager(nil, "odyssey_session", time.Hour, false)}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if h.session == nil {
				sess, err := h.sessions.Load(req.Context(), req)
				require.NoError(t, err)
				h.session = sess
			}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), h.session)))
		})
	})
	r.Route("/inventory", NewHandler(logger, store, engine, shared.NewCSRFManager("secret"), time.Second).MountRoutes)
	h.router = r
	return h
}

func (h *handlerHarness) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *handlerHarness) flash() *shared.FlashMessage {
	return h.session.PopFlash()
}

func seededStore() *fakeStore {
	return newFakeStore(
		Item{ID: "1", Name: "Apple Pie", Description: "Sweet", Price: "LKR 500.00"},
		Item{ID: "2", Name: "Banana", Description: "Yellow", Price: "LKR 100.00"},
	)
}

func TestHandlerListRendersTable(t *testing.T) {
	h := newHandlerHarness(t, seededStore())

	rec := h.do(http.MethodGet, "/inventory/items?search=APPLE", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<th>Price (LKR)</th>")
	assert.Contains(t, body, "<th>Action</th>")
	assert.Contains(t, body, "Apple Pie")
	assert.NotContains(t, body, "Banana")
	assert.NotContains(t, body, `role="dialog"`)
	assert.Contains(t, body, "/inventory/items/export.csv?search=APPLE")
}

func TestHandlerCreateModalOpens(t *testing.T) {
	h := newHandlerHarness(t, seededStore())

	rec := h.do(http.MethodGet, "/inventory/items?modal=create", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Add New Inventory Item")
	assert.Contains(t, rec.Body.String(), `action="/inventory/items"`)
	for _, label := range []string{"Add New Item", `placeholder="Search Inventory"`, ">Item Name</label>", ">Item Price</label>", ">Description</label>", "Export CSV"} {
		assert.Contains(t, rec.Body.String(), label)
	}
}

func TestHandlerCreateRedirectsWithFlash(t *testing.T) {
	store := seededStore()
	h := newHandlerHarness(t, store)

	rec := h.do(http.MethodPost, "/inventory/items", url.Values{
		"name": {"Tea"}, "description": {"Black"}, "price": {"LKR 300.00"}, "token": {"tok-9"}, "search": {"tea"},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/inventory/items?search=tea", rec.Header().Get("Location"))
	assert.Equal(t, 1, store.count("create"))
	assert.Equal(t, []string{"tok-9"}, store.keys)
	flash := h.flash()
	require.NotNil(t, flash)
	assert.Equal(t, "Item added.", flash.Message)
}

func TestHandlerCreateInvalidRerendersModal(t *testing.T) {
	store := seededStore()
	h := newHandlerHarness(t, store)

	rec := h.do(http.MethodPost, "/inventory/items", url.Values{"name": {"Tea"}, "description": {""}, "price": {"Rs 300.00"}})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Please input the item description!")
	assert.Contains(t, body, "Price must be in the format &#39;LKR 300.00&#39;")
	assert.Contains(t, body, `value="Tea"`)
	assert.Contains(t, body, "Banana")
	assert.Equal(t, 0, store.count("create"))
}

func TestHandlerEditAndUpdate(t *testing.T) {
	store := seededStore()
	h := newHandlerHarness(t, store)

	rec := h.do(http.MethodGet, "/inventory/items/2/edit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Edit Inventory Item")
	assert.Contains(t, rec.Body.String(), `action="/inventory/items/2"`)
	assert.Contains(t, rec.Body.String(), `value="LKR 100.00"`)

	rec = h.do(http.MethodPost, "/inventory/items/2", url.Values{"name": {"Banana"}, "description": {"Ripe"}, "price": {"LKR 120"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 1, store.count("update"))
	assert.Equal(t, 0, store.count("create"))
	assert.Equal(t, "Item updated.", h.flash().Message)
}

func TestHandlerEditMissingItemRedirects(t *testing.T) {
	h := newHandlerHarness(t, seededStore())

	rec := h.do(http.MethodGet, "/inventory/items/99/edit", nil)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, shared.FlashError, h.flash().Kind)
}

func TestHandlerUpdateVanishedItem(t *testing.T) {
	h := newHandlerHarness(t, seededStore())

	rec := h.do(http.MethodPost, "/inventory/items/99", url.Values{"name": {"X"}, "description": {"Y"}, "price": {"LKR 1"}})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	flash := h.flash()
	require.NotNil(t, flash)
	assert.Equal(t, "The item no longer exists. The list has been refreshed.", flash.Message)
}

func TestHandlerStoreFailureKeepsModal(t *testing.T) {
	store := seededStore()
	store.failOn["create"] = context.DeadlineExceeded
	h := newHandlerHarness(t, store)

	rec := h.do(http.MethodPost, "/inventory/items", url.Values{"name": {"Tea"}, "description": {"Black"}, "price": {"LKR 300"}})

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "could not be reached")
	assert.Contains(t, body, `role="dialog"`)
}

func TestHandlerStoreFailureSurvivesFailedReload(t *testing.T) {
	store := seededStore()
	store.failOn["create"] = context.DeadlineExceeded
	store.failOn["list"] = errors.New("pool closed")
	h := newHandlerHarness(t, store)

	rec := h.do(http.MethodPost, "/inventory/items", url.Values{"name": {"Tea"}, "description": {"Black"}, "price": {"LKR 300"}})

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "could not be reached")
	assert.NotContains(t, body, "Something went wrong")
	assert.Contains(t, body, `role="dialog"`)
	assert.Equal(t, []string{"create", "list"}, store.calls)
}

func TestHandlerDelete(t *testing.T) {
	store := seededStore()
	h := newHandlerHarness(t, store)

	rec := h.do(http.MethodPost, "/inventory/items/1/delete", url.Values{})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, []string{"delete:1", "list"}, store.calls)
	assert.Equal(t, "Item deleted.", h.flash().Message)
}

func TestHandlerExportCSV(t *testing.T) {
	h := newHandlerHarness(t, seededStore())

	rec := h.do(http.MethodGet, "/inventory/items/export.csv?search=apple", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="inventory_report.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Name,Description,Price (LKR)\r\nApple Pie,Sweet,LKR 500.00\r\n", rec.Body.String())
}

func TestHandlerListFailureShowsMessage(t *testing.T) {
	store := seededStore()
	store.failOn["list"] = context.DeadlineExceeded
	h := newHandlerHarness(t, store)

	rec := h.do(http.MethodGet, "/inventory/items", nil)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Inventory could not be loaded.")
}

func TestItemsURL(t *testing.T) {
	assert.Equal(t, "/inventory/items", itemsURL(""))
	assert.Equal(t, "/inventory/items?search=a+b", itemsURL("a b"))
	assert.Equal(t, "/inventory/items?modal=create&search=x", itemsURL("x", "modal", "create"))
	assert.Equal(t, "/inventory/items/export.csv", exportURL(" "))
}
