package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/semuinside/exam-backend/internal/model"
)

func TestRewardClient_Send(t *testing.T) {
	req := model.RewardRequest{
		SessionID:    uuid.New(),
		ExamID:       uuid.New(),
		RespondentID: uuid.New(),
		Score:        30,
		TotalPoints:  60,
		GradedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	var got model.RewardRequest
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewRewardClient(srv.URL, time.Second)
	if err := c.Send(context.Background(), req); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if key != req.SessionID.String() {
		t.Errorf("Idempotency-Key = %q, want session id", key)
	}
	if got.SessionID != req.SessionID || got.Score != 30 || got.TotalPoints != 60 {
		t.Errorf("body = %+v", got)
	}
}

func TestRewardClient_ServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewRewardClient(srv.URL, time.Second)
	if err := c.Send(context.Background(), model.RewardRequest{SessionID: uuid.New()}); err == nil {
		t.Fatal("expected error on 400")
	}
	if calls.Load() == 0 {
		t.Error("server was never called")
	}
}

func TestRewardClient_Disabled(t *testing.T) {
	c := NewRewardClient("", time.Second)
	if c.Enabled() {
		t.Fatal("client without url reports enabled")
	}
	if err := c.Send(context.Background(), model.RewardRequest{}); !errors.Is(err, ErrRewardDisabled) {
		t.Errorf("err = %v, want ErrRewardDisabled", err)
	}
}
