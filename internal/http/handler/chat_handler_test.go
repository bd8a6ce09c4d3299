package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quantumchem/quantumchem-backend/internal/service"
)

type fakeChatService struct {
	replyFn func(ctx context.Context, message string) (string, error)
}

func (f *fakeChatService) Reply(ctx context.Context, message string) (string, error) {
	return f.replyFn(ctx, message)
}

func TestChatHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := NewChatHandler(&fakeChatService{
			replyFn: func(_ context.Context, message string) (string, error) {
				if message != "what is an ion" {
					t.Fatalf("message = %q", message)
				}
				return "An ion is a charged atom or molecule.", nil
			},
		})
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"what is an ion"}`))
		rec := httptest.NewRecorder()
		h.Reply(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["reply"] != "An ion is a charged atom or molecule." {
			t.Fatalf("unexpected reply: %q", body["reply"])
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		h := NewChatHandler(&fakeChatService{})
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{`))
		rec := httptest.NewRecorder()
		h.Reply(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	cases := []struct {
		name       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"empty message", service.ErrEmptyMessage, http.StatusBadRequest, "VALIDATION"},
		{"disabled", service.ErrChatDisabled, http.StatusServiceUnavailable, "CHAT_DISABLED"},
		{"backend down", service.ErrChatUnavailable, http.StatusBadGateway, "CHAT_UNAVAILABLE"},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewChatHandler(&fakeChatService{
				replyFn: func(context.Context, string) (string, error) { return "", tc.serviceErr },
			})
			req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi"}`))
			rec := httptest.NewRecorder()
			h.Reply(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if env := decodeErrorEnvelope(t, rec); env.Error.Code != tc.wantCode {
				t.Fatalf("error code = %q, want %q", env.Error.Code, tc.wantCode)
			}
		})
	}
}
