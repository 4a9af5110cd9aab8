package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/handler"
)

type mockMenuStore struct {
	items []database.MenuItemWithCategory
	err   error
}

func (m *mockMenuStore) ListMenu(_ context.Context) ([]database.MenuItemWithCategory, error) {
	return m.items, m.err
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("marshal request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func putJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, router, "PUT", path, body)
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var resp []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func setupMenuRouter(store *mockMenuStore) *chi.Mux {
	h := handler.NewMenuHandler(store)
	r := chi.NewRouter()
	r.Route("/menu", h.RegisterRoutes)
	return r
}

func TestListMenu_GroupsByCategory(t *testing.T) {
	mains, soups := uuid.New(), uuid.New()
	store := &mockMenuStore{items: []database.MenuItemWithCategory{
		{ID: uuid.New(), Name: "Chicken Mandi", Price: num("8"), CategoryID: mains, CategoryName: "Mains"},
		{ID: uuid.New(), Name: "Lamb Qozi", Price: num("10"), CategoryID: mains, CategoryName: "Mains"},
		{ID: uuid.New(), Name: "Lentil Soup", Price: num("3"), CategoryID: soups, CategoryName: "Soups"},
	}}

	rr := doRequest(t, setupMenuRouter(store), "GET", "/menu", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	cats := decodeList(t, rr)
	if len(cats) != 2 || cats[0]["name"] != "Mains" || cats[1]["name"] != "Soups" {
		t.Fatalf("categories: %v", cats)
	}
	items := cats[0]["items"].([]any)
	if len(items) != 2 || items[1].(map[string]any)["price"] != "10.00" {
		t.Errorf("mains: %v", items)
	}
}

func TestListMenu_Empty(t *testing.T) {
	rr := doRequest(t, setupMenuRouter(&mockMenuStore{}), "GET", "/menu", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "[]\n" {
		t.Errorf("empty menu: %d %q", rr.Code, rr.Body.String())
	}
}

func TestListMenu_StoreError(t *testing.T) {
	rr := doRequest(t, setupMenuRouter(&mockMenuStore{err: errors.New("boom")}), "GET", "/menu", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d", rr.Code)
	}
}
