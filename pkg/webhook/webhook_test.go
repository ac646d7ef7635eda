package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/patchgate-project/patchgate/pkg/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.URL != "" {
		t.Error("default config should have no URL")
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", cfg.MaxRetries)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected Timeout 5s, got %v", cfg.Timeout)
	}
	if cfg.QueueSize != 100 {
		t.Errorf("expected QueueSize 100, got %d", cfg.QueueSize)
	}
}

func TestClientDeliver(t *testing.T) {
	received := make(chan map[string]any, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.URL = server.URL
	cfg.RetryDelay = 10 * time.Millisecond

	client := NewClient(cfg)
	defer client.Close()

	client.Deliver(model.Event{
		Type:         model.EventEditPending,
		PermissionID: "perm-1",
		FileCount:    2,
		Timestamp:    time.Now(),
	})

	select {
	case payload := <-received:
		if payload["event"] != string(model.EventEditPending) {
			t.Errorf("expected event %s, got %v", model.EventEditPending, payload["event"])
		}
		if payload["permission_id"] != "perm-1" {
			t.Errorf("expected permission_id perm-1, got %v", payload["permission_id"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not received within timeout")
	}
}

func TestClientSignature(t *testing.T) {
	type result struct {
		signature string
		body      []byte
	}
	received := make(chan result, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- result{signature: r.Header.Get("X-PatchGate-Signature"), body: body}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	secret := "test-secret-key"
	cfg := DefaultConfig()
	cfg.URL = server.URL
	cfg.Secret = secret

	client := NewClient(cfg)
	defer client.Close()

	client.Deliver(model.Event{Type: model.EventChangeAccepted, ChangeID: "c1", Status: "applied"})

	select {
	case res := <-received:
		if res.signature == "" {
			t.Fatal("expected X-PatchGate-Signature header")
		}
		if len(res.signature) < 7 || res.signature[:7] != "sha256=" {
			t.Errorf("invalid signature format: %s", res.signature)
		}
		if !Verify(res.body, secret, res.signature) {
			t.Error("signature does not verify against received body")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not received within timeout")
	}
}

func TestClientEventHeader(t *testing.T) {
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get("X-PatchGate-Event")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.URL = server.URL

	client := NewClient(cfg)
	defer client.Close()

	client.Deliver(model.Event{Type: model.EventEditRemoved, PermissionID: "perm-2"})

	select {
	case header := <-received:
		if header != string(model.EventEditRemoved) {
			t.Errorf("expected event header %s, got %s", model.EventEditRemoved, header)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not received within timeout")
	}
}

func TestClientRetry(t *testing.T) {
	attempts := make(chan int, 10)
	count := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		attempts <- count
		if count < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.URL = server.URL
	cfg.MaxRetries = 3
	cfg.RetryDelay = 10 * time.Millisecond

	client := NewClient(cfg)

	client.Deliver(model.Event{Type: model.EventChangeRejected, ChangeID: "c2", Status: "rejected"})
	client.Close()

	if count != 3 {
		t.Errorf("expected 3 attempts, got %d", count)
	}
}

func TestClientDisabled(t *testing.T) {
	client := NewClient(DefaultConfig())
	defer client.Close()

	if client.Enabled() {
		t.Error("client with no URL should be disabled")
	}

	// Deliver on a disabled client is a no-op, not a hang
	client.Deliver(model.Event{Type: model.EventEditPending})
}

func TestClientCloseDrains(t *testing.T) {
	received := make(chan struct{}, 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		received <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.URL = server.URL
	cfg.MaxRetries = 0

	client := NewClient(cfg)

	for i := 0; i < 3; i++ {
		client.Deliver(model.Event{Type: model.EventChangeResolved, ChangeID: "c3"})
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if len(received) != 3 {
		t.Errorf("expected 3 deliveries before Close returned, got %d", len(received))
	}
}

func TestSignAndVerify(t *testing.T) {
	payload := []byte(`{"event":"edit_pending"}`)
	sig := Sign(payload, "secret")

	if !Verify(payload, "secret", sig) {
		t.Error("expected signature to verify")
	}
	if Verify(payload, "wrong", sig) {
		t.Error("expected verification to fail with wrong secret")
	}
	if Verify([]byte(`{"event":"edit_removed"}`), "secret", sig) {
		t.Error("expected verification to fail with altered payload")
	}
}
