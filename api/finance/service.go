package finance

import (
	"fmt"
	"log"
	"net/http"

	"SchoolSuite/internal/serviceiface"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FinanceService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewFinanceService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &FinanceService{config: cfg, pool: pool}
}

func (s *FinanceService) Name() string { return "finance" }

func (s *FinanceService) Start() error {
	port := 5243
	if p, ok := s.config["port"].(int); ok && p > 0 {
		port = p
	}
	router := mux.NewRouter()
	router.HandleFunc("/finance/installments", GetInstallments(s.pool)).Methods("GET")
	router.HandleFunc("/finance/installments/generate", GenerateInstallments(s.pool)).Methods("POST")
	router.HandleFunc("/finance/installments/status", UpdateInstallmentStatus(s.pool)).Methods("POST")
	router.HandleFunc("/finance/installments/partial-payment", AddPartialInstallmentPayment(s.pool)).Methods("POST")
	router.HandleFunc("/finance/payments", GetPaymentRecords(s.pool)).Methods("GET")
	router.HandleFunc("/finance/payments", CreatePaymentRecord(s.pool)).Methods("POST")
	router.HandleFunc("/finance/expenses", GetExpenses(s.pool)).Methods("GET")
	router.HandleFunc("/finance/expenses", CreateExpense(s.pool)).Methods("POST")
	router.HandleFunc("/finance/expenses/delete", DeleteExpense(s.pool)).Methods("POST")
	router.HandleFunc("/finance/receipts", GetReceipts(s.pool)).Methods("GET")
	router.HandleFunc("/finance/receipts", CreateReceipt(s.pool)).Methods("POST")
	router.HandleFunc("/finance/reports/students.xlsx", ExportStudentsXLSX(s.pool)).Methods("GET")
	router.HandleFunc("/finance/reports/students.pdf", ExportStudentsPDF(s.pool)).Methods("GET")

	go func() {
		log.Printf("Finance Service started on :%d", port)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), router); err != nil {
			log.Fatalf("Finance Service failed: %v", err)
		}
	}()
	return nil
}

func (s *FinanceService) Stop() error {
	return nil
}
