package students

import (
	"fmt"
	"log"
	"net/http"

	"SchoolSuite/internal/serviceiface"
	"SchoolSuite/internal/storage"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StudentsService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
	store  *storage.Client
}

func NewStudentsService(cfg map[string]interface{}, pool *pgxpool.Pool, store *storage.Client) serviceiface.Service {
	return &StudentsService{config: cfg, pool: pool, store: store}
}

func (s *StudentsService) Name() string { return "students" }

func (s *StudentsService) Start() error {
	port := 4243
	if p, ok := s.config["port"].(int); ok && p > 0 {
		port = p
	}
	router := mux.NewRouter()
	router.HandleFunc("/students/list", ListStudents(s.pool)).Methods("GET")
	router.HandleFunc("/students/get", GetStudent(s.pool)).Methods("GET")
	router.HandleFunc("/students/create", CreateStudent(s.pool)).Methods("POST")
	router.HandleFunc("/students/update", UpdateStudent(s.pool)).Methods("POST")
	router.HandleFunc("/students/delete", DeleteStudent(s.pool)).Methods("POST")
	router.HandleFunc("/students/photo", GetPhoto(s.pool, s.store)).Methods("GET")
	router.HandleFunc("/students/photo", UploadPhoto(s.pool, s.store)).Methods("POST")
	router.HandleFunc("/students/photo", DeletePhoto(s.pool, s.store)).Methods("DELETE")

	go func() {
		log.Printf("Students Service started on :%d", port)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), router); err != nil {
			log.Fatalf("Students Service failed: %v", err)
		}
	}()
	return nil
}

func (s *StudentsService) Stop() error {
	return nil
}
