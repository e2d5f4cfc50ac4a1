package identity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   []byte
}

type apiStub struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  http.HandlerFunc
}

func newAPIStub(t *testing.T, handler http.HandlerFunc) (*apiStub, *httptest.Server) {
	t.Helper()
	stub := &apiStub{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		stub.mu.Lock()
		stub.requests = append(stub.requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			body:   body,
		})
		stub.mu.Unlock()
		stub.handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return stub, srv
}

func (s *apiStub) last(t *testing.T) recordedRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		t.Fatalf("no requests recorded")
	}
	return s.requests[len(s.requests)-1]
}

func TestGetProfile(t *testing.T) {
	stub, srv := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"userId":"alice","displayName":"Alice","partnerId":"bob","coupleId":"cp1"}`))
	})
	c := NewClient(srv.URL, WithHeaderProvider(func() map[string]string {
		return map[string]string{"Authorization": "Bearer tok"}
	}))

	p, err := c.GetProfile(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if !p.Paired() || p.CoupleID != "cp1" || p.DisplayName != "Alice" {
		t.Fatalf("profile: %+v", p)
	}
	req := stub.last(t)
	if req.method != http.MethodGet || req.path != "/internal/users/alice/profile" {
		t.Fatalf("request: %s %s", req.method, req.path)
	}
	if req.auth != "Bearer tok" {
		t.Fatalf("auth header: %q", req.auth)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	_, srv := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := NewClient(srv.URL)

	p, err := c.GetProfile(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("expected nil error for 404, got %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil profile, got %+v", p)
	}
}

func TestSetOnlineBody(t *testing.T) {
	stub, srv := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := NewClient(srv.URL)

	if err := c.SetOnline(context.Background(), "alice", true); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	req := stub.last(t)
	if req.path != "/internal/users/alice/presence" {
		t.Fatalf("path: %s", req.path)
	}
	var got struct {
		Online *bool `json:"online"`
	}
	if err := json.Unmarshal(req.body, &got); err != nil {
		t.Fatalf("body decode: %v", err)
	}
	if got.Online == nil || !*got.Online {
		t.Fatalf("body: %s", req.body)
	}
}

func TestAppendActivityBody(t *testing.T) {
	stub, srv := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	c := NewClient(srv.URL)

	act := Activity{Type: "game", Description: "Finished a game of UNO", UserID: "alice", Icon: "🃏"}
	if err := c.AppendActivity(context.Background(), "cp1", act); err != nil {
		t.Fatalf("AppendActivity: %v", err)
	}
	req := stub.last(t)
	if req.path != "/internal/couples/cp1/activities" {
		t.Fatalf("path: %s", req.path)
	}
	var got Activity
	if err := json.Unmarshal(req.body, &got); err != nil {
		t.Fatalf("body decode: %v", err)
	}
	if got.Type != "game" || got.UserID != "alice" {
		t.Fatalf("body: %+v", got)
	}
}

func TestIncrementGamesPlayedRetries(t *testing.T) {
	var calls int
	var mu sync.Mutex
	_, srv := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	c := NewClient(srv.URL, WithRetry(3))

	if err := c.IncrementGamesPlayed(context.Background(), "cp1"); err != nil {
		t.Fatalf("IncrementGamesPlayed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestServerErrorSurfaced(t *testing.T) {
	_, srv := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"bad payload"}`))
	})
	c := NewClient(srv.URL)

	err := c.SetLastSeen(context.Background(), "alice", time.Now())
	if err == nil {
		t.Fatalf("expected error for 422 response")
	}
}

func TestGetHealth(t *testing.T) {
	_, srv := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	c := NewClient(srv.URL)

	h, err := c.GetHealth(context.Background())
	if err != nil {
		t.Fatalf("GetHealth: %v", err)
	}
	if h.Status != "ok" {
		t.Fatalf("health: %+v", h)
	}
}
