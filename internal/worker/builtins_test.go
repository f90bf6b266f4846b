package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDelayHandler(t *testing.T) {
	start := time.Now()
	result, err := DelayHandler(context.Background(), nil, map[string]any{"duration_ms": float64(50)})
	if err != nil {
		t.Fatalf("DelayHandler: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("delay returned too early")
	}
	out := result.(map[string]any)
	if out["duration_ms"] != int64(50) {
		t.Errorf("duration_ms = %v, want 50", out["duration_ms"])
	}

	if _, err := DelayHandler(context.Background(), nil, nil); err == nil {
		t.Error("missing duration must be rejected")
	}
}

func TestDelayHandlerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := DelayHandler(ctx, nil, map[string]any{"duration_sec": 30})
	if err == nil {
		t.Fatal("cancelled delay must return an error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not cut the delay short")
	}
}

func TestHTTPRequestHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	result, err := HTTPRequestHandler(context.Background(), nil, map[string]any{
		"url":     server.URL,
		"headers": map[string]any{"X-Token": "secret"},
	})
	if err != nil {
		t.Fatalf("HTTPRequestHandler: %v", err)
	}

	out := result.(map[string]any)
	if out["status_code"] != http.StatusOK {
		t.Errorf("status_code = %v, want 200", out["status_code"])
	}
	body := out["body"].(map[string]any)
	if body["ok"] != true {
		t.Errorf("body = %v, want parsed JSON", body)
	}
}

func TestHTTPRequestHandlerRequiresURL(t *testing.T) {
	if _, err := HTTPRequestHandler(context.Background(), nil, nil); err == nil {
		t.Error("missing url must be rejected")
	}
}

func TestEchoHandler(t *testing.T) {
	result, err := EchoHandler(context.Background(), nil, map[string]any{"hello": "world"})
	if err != nil {
		t.Fatalf("EchoHandler: %v", err)
	}
	if result.(map[string]any)["hello"] != "world" {
		t.Errorf("echo lost kwargs: %v", result)
	}
}
