package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/drlab-io/drlab/internal/domain"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "well formed", header: "Bearer abc123", want: "abc123"},
		{name: "trailing space", header: "Bearer abc123 ", want: "abc123"},
		{name: "missing prefix", header: "abc123", want: ""},
		{name: "wrong scheme", header: "Basic abc123", want: ""},
		{name: "empty header", header: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bearerToken(tt.header); got != tt.want {
				t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	})

	t.Run("generates when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		requestIDMiddleware(next).ServeHTTP(rec, req)

		if seen == "" {
			t.Error("expected a generated request id in context")
		}
		if rec.Header().Get("X-Request-Id") != seen {
			t.Error("response header should echo the request id")
		}
	})

	t.Run("preserves client id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-Id", "req-42")
		requestIDMiddleware(next).ServeHTTP(rec, req)

		if seen != "req-42" {
			t.Errorf("request id = %q, want req-42", seen)
		}
	})
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		user       *domain.User
		roles      []domain.Role
		wantStatus int
	}{
		{
			name:       "matching role passes",
			user:       &domain.User{ID: uuid.New(), Role: domain.RoleTechnician},
			roles:      []domain.Role{domain.RoleManager, domain.RoleTechnician},
			wantStatus: http.StatusOK,
		},
		{
			name:       "admin always passes",
			user:       &domain.User{ID: uuid.New(), Role: domain.RoleAdmin},
			roles:      []domain.Role{domain.RoleManager},
			wantStatus: http.StatusOK,
		},
		{
			name:       "viewer rejected",
			user:       &domain.User{ID: uuid.New(), Role: domain.RoleViewer},
			roles:      []domain.Role{domain.RoleManager},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "no user rejected",
			user:       nil,
			roles:      []domain.Role{domain.RoleManager},
			wantStatus: http.StatusUnauthorized,
		},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				req = req.WithContext(context.WithValue(req.Context(), ctxKeyUser, tt.user))
			}

			rec := httptest.NewRecorder()
			requireRole(tt.roles...)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&offset=junk", nil)

	if got := queryInt(req, "limit", 50); got != 25 {
		t.Errorf("limit = %d, want 25", got)
	}
	if got := queryInt(req, "offset", 0); got != 0 {
		t.Errorf("offset = %d, want 0 fallback", got)
	}
	if got := queryInt(req, "missing", 50); got != 50 {
		t.Errorf("missing = %d, want 50 fallback", got)
	}
}
