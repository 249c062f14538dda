package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SSEClient is one open browser session waiting for change events. writeMu
// serializes writes since broadcasts and pings arrive from different
// goroutines.
type SSEClient struct {
	id      string
	userID  string
	tables  map[string]bool
	writer  http.ResponseWriter
	flusher http.Flusher
	writeMu sync.Mutex
	done    chan bool
}

// SSEServer fans change events out to connected UI sessions. The UI reacts by
// reloading the affected view, not by applying incremental updates.
type SSEServer struct {
	mu         sync.RWMutex
	clients    map[string]*SSEClient
	pingTicker *time.Ticker
	stopCh     chan struct{}
}

func NewSSEServer() *SSEServer {
	s := &SSEServer{
		clients: make(map[string]*SSEClient),
		stopCh:  make(chan struct{}),
	}
	s.pingTicker = time.NewTicker(30 * time.Second)
	go s.pingClients()
	return s
}

// HandleEvents handles GET /realtime/events?user_id=...&tables=a,b,c
func (s *SSEServer) HandleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id parameter required", http.StatusBadRequest)
		return
	}
	tables := make(map[string]bool)
	for _, t := range strings.Split(r.URL.Query().Get("tables"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tables[t] = true
		}
	}

	client := &SSEClient{
		id:      uuid.New().String(),
		userID:  userID,
		tables:  tables,
		writer:  w,
		flusher: flusher,
		done:    make(chan bool),
	}
	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()

	s.sendToClient(client, map[string]interface{}{
		"type": "connected",
		"time": time.Now().Format(time.RFC3339),
	})

	defer func() {
		s.mu.Lock()
		delete(s.clients, client.id)
		s.mu.Unlock()
	}()

	select {
	case <-client.done:
	case <-r.Context().Done():
	case <-s.stopCh:
	}
}

// Broadcast sends a change event to every client watching its table. Clients
// with no table list receive everything.
func (s *SSEServer) Broadcast(change Change) {
	payload := map[string]interface{}{
		"type":   "change",
		"table":  change.Table,
		"event":  change.Event,
		"record": change.Record,
		"time":   time.Now().Format(time.RFC3339),
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, client := range s.clients {
		if len(client.tables) > 0 && !client.tables[change.Table] {
			continue
		}
		if err := s.sendToClient(client, payload); err != nil {
			go s.dropClient(client)
		}
	}
}

func (s *SSEServer) sendToClient(client *SSEClient, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	client.writeMu.Lock()
	defer client.writeMu.Unlock()
	if _, err = fmt.Fprintf(client.writer, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	client.flusher.Flush()
	return nil
}

func (s *SSEServer) dropClient(client *SSEClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[client.id] == client {
		delete(s.clients, client.id)
		close(client.done)
	}
}

func (s *SSEServer) pingClients() {
	defer s.pingTicker.Stop()
	for {
		select {
		case <-s.pingTicker.C:
			s.mu.RLock()
			clients := make([]*SSEClient, 0, len(s.clients))
			for _, c := range s.clients {
				clients = append(clients, c)
			}
			s.mu.RUnlock()
			for _, client := range clients {
				err := s.sendToClient(client, map[string]interface{}{
					"type": "ping",
					"time": time.Now().Format(time.RFC3339),
				})
				if err != nil {
					s.dropClient(client)
				}
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *SSEServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *SSEServer) Stop() {
	close(s.stopCh)
	s.mu.Lock()
	for _, client := range s.clients {
		close(client.done)
	}
	s.clients = make(map[string]*SSEClient)
	s.mu.Unlock()
}
