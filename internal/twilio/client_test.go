package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		AccountSID: "AC-test",
		AuthToken:  "token",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	return client
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{AuthToken: "token"}); err == nil {
		t.Fatal("expected error without account sid")
	}
	if _, err := New(Config{AccountSID: "AC-test"}); err == nil {
		t.Fatal("expected error without auth token")
	}
}

func TestListCalls(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC-test/Calls.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "AC-test" || pass != "token" {
			t.Error("missing or wrong basic auth")
		}
		if got := r.URL.Query().Get("PageSize"); got != "10" {
			t.Errorf("PageSize = %s, want 10", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"calls": []map[string]string{
				{"sid": "CA1", "from": "+15550001", "to": "+15550002", "status": "completed"},
			},
		})
	})

	calls, err := client.ListCalls(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListCalls err: %v", err)
	}
	if len(calls) != 1 || calls[0].SID != "CA1" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

func TestCompleteCall(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm err: %v", err)
		}
		if got := r.PostForm.Get("Status"); got != CallStatusCompleted {
			t.Errorf("Status = %s, want completed", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"sid": "CA1", "status": "completed"})
	})

	call, err := client.CompleteCall(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("CompleteCall err: %v", err)
	}
	if call.Status != CallStatusCompleted {
		t.Fatalf("unexpected call: %+v", call)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 20404, "message": "not found", "status": 404,
		})
	})

	_, err := client.ListCalls(context.Background(), 5)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Code != 20404 {
		t.Fatalf("unexpected code: %d", apiErr.Code)
	}
}

func TestTerminal(t *testing.T) {
	for _, status := range []string{CallStatusCompleted, CallStatusBusy, CallStatusFailed, CallStatusNoAnswer, CallStatusCanceled} {
		if !Terminal(status) {
			t.Errorf("Terminal(%s) = false, want true", status)
		}
	}
	for _, status := range []string{CallStatusQueued, CallStatusRinging, CallStatusInProgress, ""} {
		if Terminal(status) {
			t.Errorf("Terminal(%s) = true, want false", status)
		}
	}
}
