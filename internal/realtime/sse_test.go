package realtime

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func addTestClient(s *SSEServer, id string, tables map[string]bool) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	client := &SSEClient{
		id:      id,
		userID:  "u-" + id,
		tables:  tables,
		writer:  rec,
		flusher: rec,
		done:    make(chan bool),
	}
	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()
	return rec
}

func TestBroadcastSerializesClientWrites(t *testing.T) {
	s := NewSSEServer()
	defer s.Stop()
	rec := addTestClient(s, "c1", nil)

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s.Broadcast(Change{Table: "students", Event: "UPDATE", Record: map[string]interface{}{"id": "a"}})
			}
		}()
	}
	wg.Wait()

	// Every event is one complete frame; interleaved writes would corrupt
	// the frame count.
	if got := strings.Count(rec.Body.String(), "data: "); got != workers*perWorker {
		t.Errorf("got %d frames, want %d", got, workers*perWorker)
	}
}

func TestBroadcastFiltersByTable(t *testing.T) {
	s := NewSSEServer()
	defer s.Stop()
	watching := addTestClient(s, "c1", map[string]bool{"students": true})
	other := addTestClient(s, "c2", map[string]bool{"expenses": true})

	s.Broadcast(Change{Table: "students", Event: "INSERT", Record: nil})

	if !strings.Contains(watching.Body.String(), `"table":"students"`) {
		t.Error("watching client did not receive the event")
	}
	if strings.Contains(other.Body.String(), `"table":"students"`) {
		t.Error("client watching another table received the event")
	}
}
