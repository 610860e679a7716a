package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

func TestFail_UsesLocalizedMessage(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) { Fail(c, http.StatusConflict, ErrAlreadySubmitted) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == nil || body.Error.Code != ErrAlreadySubmitted {
		t.Fatalf("error = %+v", body.Error)
	}
	if body.Error.Message != GetMessage(ErrAlreadySubmitted) {
		t.Errorf("message = %q", body.Error.Message)
	}
	if body.Metadata.RequestID == "" || w.Header().Get("X-Request-ID") != body.Metadata.RequestID {
		t.Errorf("request id not propagated: header %q body %q", w.Header().Get("X-Request-ID"), body.Metadata.RequestID)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "valid uuid is kept", header: "0b8a6f3e-5f0e-4a43-9a38-4b1f2f0d9d11", keep: true},
		{name: "junk is replaced", header: "<script>", keep: false},
		{name: "missing is generated", header: "", keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestIDMiddleware())
			r.GET("/x", func(c *gin.Context) { Success(c, http.StatusOK, nil) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got == "" {
				t.Fatal("no request id")
			}
			if (got == tt.header) != tt.keep {
				t.Errorf("X-Request-ID = %q, header %q, keep %v", got, tt.header, tt.keep)
			}
		})
	}
}

func TestGetMessage_Unknown(t *testing.T) {
	if GetMessage(ErrCode("NOPE")) == "" {
		t.Error("unknown code has no fallback message")
	}
}
