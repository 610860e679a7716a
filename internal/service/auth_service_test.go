package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/semuinside/exam-backend/internal/config"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: testSecret})
	userID := uuid.New()
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name    string
		token   string
		wantErr bool
		admin   bool
	}{
		{
			name: "valid respondent",
			token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String(), ExpiresAt: future},
			}),
		},
		{
			name: "valid admin",
			token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String(), ExpiresAt: future},
				AppMetadata:      AppMetadata{Role: RoleAdmin},
			}),
			admin: true,
		},
		{
			name: "expired",
			token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String(), ExpiresAt: past},
			}),
			wantErr: true,
		},
		{
			name: "missing expiry",
			token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
			}),
			wantErr: true,
		},
		{
			name: "wrong secret",
			token: signToken(t, jwt.SigningMethodHS256, []byte("other"), Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String(), ExpiresAt: future},
			}),
			wantErr: true,
		},
		{
			name: "wrong algorithm",
			token: signToken(t, jwt.SigningMethodHS512, []byte(testSecret), Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String(), ExpiresAt: future},
			}),
			wantErr: true,
		},
		{
			name: "subject is not a uuid",
			token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "anon", ExpiresAt: future},
			}),
			wantErr: true,
		},
		{name: "garbage", token: "not.a.token", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := svc.ValidateToken(tt.token)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			id, _ := claims.UserID()
			if id != userID {
				t.Errorf("user id = %s, want %s", id, userID)
			}
			if claims.IsAdmin() != tt.admin {
				t.Errorf("IsAdmin = %v, want %v", claims.IsAdmin(), tt.admin)
			}
		})
	}
}

func TestClaimsUserID_InvalidSubject(t *testing.T) {
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: ""}}
	if _, err := c.UserID(); !errors.Is(err, ErrInvalidSubject) {
		t.Errorf("err = %v, want ErrInvalidSubject", err)
	}
}
