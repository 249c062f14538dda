package realtime

import (
	"fmt"
	"log"
	"net/http"

	"SchoolSuite/internal/serviceiface"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tables whose triggers publish change events worth pushing to open sessions.
var watchedTables = []string{"students", "installments", "payment_records", "expenses", "receipts"}

type RealtimeService struct {
	config   map[string]interface{}
	pool     *pgxpool.Pool
	notifier *Notifier
	sse      *SSEServer
}

func NewRealtimeService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &RealtimeService{config: cfg, pool: pool}
}

func (s *RealtimeService) Name() string { return "realtime" }

func (s *RealtimeService) Start() error {
	s.notifier = NewNotifier(s.pool)
	s.sse = NewSSEServer()
	for _, table := range watchedTables {
		s.notifier.Subscribe(table, "*", nil, s.sse.Broadcast)
	}
	s.notifier.Start()

	port := 7243
	if p, ok := s.config["port"].(int); ok && p > 0 {
		port = p
	}
	router := mux.NewRouter()
	router.HandleFunc("/realtime/events", s.sse.HandleEvents).Methods("GET")
	router.HandleFunc("/realtime/subscriptions", s.handleSubscriptions).Methods("GET")

	go func() {
		log.Printf("Realtime Service started on :%d", port)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), router); err != nil {
			log.Fatalf("Realtime Service failed: %v", err)
		}
	}()
	return nil
}

func (s *RealtimeService) Stop() error {
	if s.sse != nil {
		s.sse.Stop()
	}
	if s.notifier != nil {
		s.notifier.Stop()
	}
	return nil
}

func (s *RealtimeService) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"success":true,"clients":%d,"subscriptions":%d}`, s.sse.ClientCount(), len(s.notifier.Subscriptions()))
}
