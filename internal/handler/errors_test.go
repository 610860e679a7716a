package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/semuinside/exam-backend/internal/model"
	"github.com/semuinside/exam-backend/internal/response"
	"github.com/semuinside/exam-backend/internal/runner"
	"github.com/semuinside/exam-backend/internal/service"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   response.ErrCode
	}{
		{"wrapped not found", fmt.Errorf("load: %w", service.ErrSessionNotFound), http.StatusNotFound, response.ErrSessionNotFound},
		{"other owner", service.ErrNotSessionOwner, http.StatusForbidden, response.ErrNotSessionOwner},
		{"locked input", runner.ErrInputLocked, http.StatusConflict, response.ErrInputLocked},
		{"second submit", runner.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
		{"bad answer shape", fmt.Errorf("%w: option 9 out of range", model.ErrAnswerShape), http.StatusBadRequest, response.ErrInvalidAnswer},
		{"unusable question", runner.ErrQuestionUnusable, http.StatusUnprocessableEntity, response.ErrQuestionUnusable},
		{"anything else", errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("classify = (%d, %s), want (%d, %s)", status, code, tt.status, tt.code)
			}
		})
	}
}
