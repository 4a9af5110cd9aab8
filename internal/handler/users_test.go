package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tablepos/engine/internal/auth"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/enum"
	"github.com/tablepos/engine/internal/handler"
)

// --- Mock UserStore ---

type mockUserStore struct {
	users map[string]database.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]database.User)}
}

func (m *mockUserStore) ListUsers(_ context.Context) ([]database.User, error) {
	out := make([]database.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockUserStore) UpsertUser(_ context.Context, arg database.UpsertUserParams) (database.User, error) {
	u, ok := m.users[arg.Email]
	if !ok {
		u = database.User{ID: uuid.New(), Active: true}
	}
	u.Name = arg.Name
	u.Email = arg.Email
	u.PasswordHash = arg.PasswordHash
	u.PinHash = arg.PinHash
	u.Role = arg.Role
	m.users[arg.Email] = u
	return u, nil
}

func setupUserRouter(store *mockUserStore) *chi.Mux {
	h := handler.NewUserHandler(store)
	r := chi.NewRouter()
	r.Route("/users", h.RegisterRoutes)
	return r
}

func TestUpsertUser_HashesSecrets(t *testing.T) {
	store := newMockUserStore()
	router := setupUserRouter(store)

	rr := putJSON(t, router, "/users", map[string]string{
		"name":     "Maha",
		"email":    "Maha@Test.com",
		"password": "s3cret-pass",
		"role":     enum.UserRoleManager,
		"pin":      "4321",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	stored, ok := store.users["maha@test.com"]
	if !ok {
		t.Fatal("email should be stored lowercased")
	}
	if stored.PasswordHash == "s3cret-pass" || !auth.CheckSecret(stored.PasswordHash, "s3cret-pass") {
		t.Error("password must be stored as a bcrypt hash")
	}
	if !stored.PinHash.Valid || !auth.CheckSecret(stored.PinHash.String, "4321") {
		t.Error("pin must be stored as a bcrypt hash")
	}

	resp := decodeResponse(t, rr)
	if resp["has_pin"] != true || resp["role"] != enum.UserRoleManager {
		t.Errorf("response: %v", resp)
	}
	if _, leaked := resp["pin"]; leaked {
		t.Error("pin must not be returned")
	}
}

func TestUpsertUser_Validation(t *testing.T) {
	base := func() map[string]string {
		return map[string]string{"name": "A", "email": "a@test.com", "password": "pw", "role": enum.UserRoleCashier}
	}
	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"missing name", func(m map[string]string) { delete(m, "name") }},
		{"bad email", func(m map[string]string) { m["email"] = "nope" }},
		{"unknown role", func(m map[string]string) { m["role"] = "owner" }},
		{"short pin", func(m map[string]string) { m["pin"] = "12" }},
		{"non-digit pin", func(m map[string]string) { m["pin"] = "12a4" }},
	}
	router := setupUserRouter(newMockUserStore())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := base()
			tt.mutate(body)
			if rr := putJSON(t, router, "/users", body); rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestListUsers(t *testing.T) {
	store := newMockUserStore()
	store.users["a@test.com"] = database.User{ID: uuid.New(), Name: "A", Email: "a@test.com", Role: enum.UserRoleKitchen, Active: true}
	router := setupUserRouter(store)

	rr := doRequest(t, router, "GET", "/users", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	users := decodeList(t, rr)
	if len(users) != 1 || users[0]["has_pin"] != false || users[0]["role"] != enum.UserRoleKitchen {
		t.Errorf("users: %v", users)
	}
}
