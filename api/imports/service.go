package imports

import (
	"fmt"
	"log"
	"net/http"

	"SchoolSuite/internal/serviceiface"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ImportsService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewImportsService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &ImportsService{config: cfg, pool: pool}
}

func (s *ImportsService) Name() string { return "imports" }

func (s *ImportsService) Start() error {
	port := 6243
	if p, ok := s.config["port"].(int); ok && p > 0 {
		port = p
	}
	router := mux.NewRouter()
	router.HandleFunc("/imports/analyze", AnalyzeUpload(s.pool)).Methods("POST")
	router.HandleFunc("/imports/run", RunImport(s.pool)).Methods("POST")
	router.HandleFunc("/imports/schema/apply", ApplySchema(s.pool)).Methods("POST")

	go func() {
		log.Printf("Imports Service started on :%d", port)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), router); err != nil {
			log.Fatalf("Imports Service failed: %v", err)
		}
	}()
	return nil
}

func (s *ImportsService) Stop() error {
	return nil
}
