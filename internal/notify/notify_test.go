package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mediavault/internal/domain/ports"
)

func TestNotifyPostsToAllTargets(t *testing.T) {
	var mu sync.Mutex
	received := make([]payload, 0, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New([]Target{{Name: "a", URL: srv.URL}, {Name: "b", URL: srv.URL}}, nil)
	n.Notify(context.Background(), ports.ConversionNotification{
		JobID: "job1", ItemID: "item1", Succeeded: true, OutputMediaFileID: "out1",
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		count := len(received)
		mu.Unlock()
		if count >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(received))
	}
	for _, p := range received {
		if p.JobID != "job1" || !p.Succeeded || p.OutputMediaFileID != "out1" {
			t.Errorf("unexpected payload: %+v", p)
		}
	}
}

func TestNotifySkipsEmptyURL(t *testing.T) {
	n := New([]Target{{Name: "empty", URL: ""}}, nil)
	// Must not panic or block; nothing to assert beyond completion.
	n.Notify(context.Background(), ports.ConversionNotification{JobID: "j"})
	time.Sleep(10 * time.Millisecond)
}

func TestNotifyDoesNotBlockOnUnreachableTarget(t *testing.T) {
	n := New([]Target{{Name: "dead", URL: "http://127.0.0.1:1"}}, nil)
	done := make(chan struct{})
	go func() {
		n.Notify(context.Background(), ports.ConversionNotification{JobID: "j"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on unreachable target")
	}
}
