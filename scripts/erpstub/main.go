// Command erpstub runs a minimal stand-in for the upstream construction-ERP
// API so the gateway can be exercised locally without the real backend. It
// accepts any listed account with the password "password" and serves canned
// rows for every dashboard module.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type user struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

var users = []user{
	{ID: "u-1", Name: "Admin", Email: "admin@sitelink.local", Role: "admin"},
	{ID: "u-2", Name: "Managing Director", Email: "md@sitelink.local", Role: "md"},
	{ID: "u-3", Name: "Designer", Email: "design@sitelink.local", Role: "design"},
	{ID: "u-4", Name: "Client Manager", Email: "cm@sitelink.local", Role: "client-manager"},
	{ID: "u-5", Name: "Storekeeper", Email: "store@sitelink.local", Role: "store"},
	{ID: "u-6", Name: "Accountant", Email: "accounts@sitelink.local", Role: "accounts"},
	{ID: "u-7", Name: "Site Engineer", Email: "site@sitelink.local", Role: "site"},
	{ID: "u-8", Name: "Client", Email: "client@sitelink.local", Role: "client"},
}

func main() {
	addr := getenv("ERPSTUB_ADDR", ":9000")

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Post("/api/auth/login", handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(requireToken)
		r.Get("/api/auth/me", handleMe)
		r.Get("/api/users", handleUsers)
		r.Route("/api/{module}", func(r chi.Router) {
			r.Get("/", handleRows)
			r.Post("/", handleEcho)
			r.Put("/{itemID}", handleEcho)
			r.Delete("/{itemID}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		})
	})

	log.Printf("erpstub listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != "password" {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}
	for _, u := range users {
		if u.Email == body.Email {
			respondJSON(w, http.StatusOK, map[string]any{"token": "stub-" + u.ID, "user": u})
			return
		}
	}
	respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
}

func requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenUser(r) == nil {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing or unknown token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenUser(r *http.Request) *user {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	for i := range users {
		if token == "stub-"+users[i].ID {
			return &users[i]
		}
	}
	return nil
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, tokenUser(r))
}

func handleUsers(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, users)
}

func handleRows(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	owner := r.URL.Query().Get("user_id")
	rows := []map[string]string{
		{"id": module + "-1", "owner": owner, "status": "draft"},
		{"id": module + "-2", "owner": owner, "status": "approved"},
	}
	respondJSON(w, http.StatusOK, rows)
}

func handleEcho(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)
	if payload == nil {
		payload = map[string]any{}
	}
	payload["id"] = chi.URLParam(r, "itemID")
	if payload["id"] == "" {
		payload["id"] = "new"
	}
	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	respondJSON(w, status, payload)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
