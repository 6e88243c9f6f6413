package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chrisrogers37/shuffify-sub000/internal/services"
)

type fakeExchanger struct {
	err error
}

func (f *fakeExchanger) Exchange(_ context.Context, code string) (*services.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.Session{RefreshToken: "refresh-for-" + code}, nil
}

func TestCallbackHandler(t *testing.T) {
	t.Run("SuccessfulExchange", func(t *testing.T) {
		handler := NewCallbackHandler(&fakeExchanger{}, "state-123")

		req := httptest.NewRequest("GET", "/callback?state=state-123&code=abc", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		result := <-handler.Result()
		if result.Error() != nil {
			t.Fatalf("unexpected error: %v", result.Error())
		}
		if result.Session.RefreshToken != "refresh-for-abc" {
			t.Errorf("unexpected session %+v", result.Session)
		}
	})

	t.Run("InvalidState", func(t *testing.T) {
		handler := NewCallbackHandler(&fakeExchanger{}, "state-123")

		req := httptest.NewRequest("GET", "/callback?state=wrong&code=abc", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if result := <-handler.Result(); result.Error() == nil {
			t.Error("expected a state mismatch error")
		}
	})

	t.Run("ProviderDenied", func(t *testing.T) {
		handler := NewCallbackHandler(&fakeExchanger{}, "state-123")

		req := httptest.NewRequest("GET", "/callback?state=state-123&error=access_denied&error_description=nope", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if result := <-handler.Result(); result.Error() == nil {
			t.Error("expected an authorization error")
		}
	})

	t.Run("ExchangeFailure", func(t *testing.T) {
		handler := NewCallbackHandler(&fakeExchanger{err: fmt.Errorf("upstream down")}, "state-123")

		req := httptest.NewRequest("GET", "/callback?state=state-123&code=abc", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("SecondCallbackRejected", func(t *testing.T) {
		handler := NewCallbackHandler(&fakeExchanger{}, "state-123")

		first := httptest.NewRequest("GET", "/callback?state=state-123&code=abc", nil)
		handler.ServeHTTP(httptest.NewRecorder(), first)

		second := httptest.NewRequest("GET", "/callback?state=state-123&code=def", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, second)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("replayed callback should be rejected, got %d", rec.Code)
		}
	})
}
