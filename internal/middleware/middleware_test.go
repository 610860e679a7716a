package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/semuinside/exam-backend/internal/config"
	"github.com/semuinside/exam-backend/internal/service"
)

const testSecret = "middleware-secret"

func init() { gin.SetMode(gin.TestMode) }

func token(t *testing.T, sub string, role string, exp time.Time) string {
	t.Helper()
	claims := service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(exp)},
		AppMetadata:      service.AppMetadata{Role: role},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRequireJWT(t *testing.T) {
	auth := service.NewAuthService(&config.Config{JWTSecret: testSecret})
	userID := uuid.New()
	valid := token(t, userID.String(), "", time.Now().Add(time.Hour))

	r := gin.New()
	r.GET("/me", RequireJWT(auth), func(c *gin.Context) {
		id, _ := GetRespondentID(c)
		c.String(http.StatusOK, id.String())
	})
	r.GET("/admin", RequireJWT(auth), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		path   string
		header string
		query  string
		want   int
	}{
		{name: "bearer header", path: "/me", header: "Bearer " + valid, want: http.StatusOK},
		{name: "query fallback", path: "/me", query: valid, want: http.StatusOK},
		{name: "missing", path: "/me", want: http.StatusUnauthorized},
		{name: "expired", path: "/me", header: "Bearer " + token(t, userID.String(), "", time.Now().Add(-time.Minute)), want: http.StatusUnauthorized},
		{name: "respondent on admin route", path: "/admin", header: "Bearer " + valid, want: http.StatusForbidden},
		{name: "admin", path: "/admin", header: "Bearer " + token(t, userID.String(), service.RoleAdmin, time.Now().Add(time.Hour)), want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := tt.path
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if tt.want == http.StatusOK && w.Body.String() != userID.String() {
				t.Errorf("respondent = %q", w.Body.String())
			}
		})
	}
}

func TestSessionParam(t *testing.T) {
	r := gin.New()
	r.GET("/s/:session_id", SessionParam(), func(c *gin.Context) { c.String(http.StatusOK, GetSessionID(c).String()) })

	id := uuid.New()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s/"+id.String(), nil))
	if w.Code != http.StatusOK || w.Body.String() != id.String() {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s/nope", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d", w.Code)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := &RateLimiter{visitors: map[string]*visitor{}, rate: 2, interval: time.Second, now: func() time.Time { return now }}

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("a") {
		t.Fatal("third request within the interval should be limited")
	}
	if !rl.allow("b") {
		t.Fatal("other callers have their own bucket")
	}

	now = now.Add(time.Second)
	if !rl.allow("a") {
		t.Fatal("bucket should refill after the interval")
	}
}

func TestBrotli(t *testing.T) {
	large := strings.Repeat("가나다라마바사", 400)

	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{Quality: 4, MinLength: 256}))
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	t.Run("large body is compressed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/large", nil)
		req.Header.Set("Accept-Encoding", "gzip, br;q=1.0")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Header().Get("Content-Encoding") != "br" {
			t.Fatalf("Content-Encoding = %q", w.Header().Get("Content-Encoding"))
		}
		got, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(got) != large {
			t.Error("decompressed body differs")
		}
	})

	t.Run("small body stays plain", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/small", nil)
		req.Header.Set("Accept-Encoding", "br")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
			t.Errorf("got encoding %q body %q", w.Header().Get("Content-Encoding"), w.Body.String())
		}
	})

	t.Run("client without br", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/large", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Header().Get("Content-Encoding") != "" || w.Body.String() != large {
			t.Error("response was altered for a client that does not accept br")
		}
	})
}
