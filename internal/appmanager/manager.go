package appmanager

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"SchoolSuite/api"
	"SchoolSuite/api/auth"
	"SchoolSuite/api/finance"
	"SchoolSuite/api/imports"
	"SchoolSuite/api/students"
	"SchoolSuite/internal/jobs"
	"SchoolSuite/internal/logger"
	"SchoolSuite/internal/realtime"
	"SchoolSuite/internal/serviceiface"
	"SchoolSuite/internal/storage"

	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

var AuthDB *sql.DB
var db *sql.DB
var pgxPool *pgxpool.Pool
var storeClient *storage.Client

func SetDB(database *sql.DB) {
	db = database
	AuthDB = database
}

func SetPgxPool(pool *pgxpool.Pool) {
	pgxPool = pool
}

func SetStorageClient(c *storage.Client) {
	storeClient = c
}

// GetDB returns the database connection
func GetDB() *sql.DB {
	return db
}

// GetPgxPool returns the pgx pool connection
func GetPgxPool() *pgxpool.Pool {
	return pgxPool
}

var serviceConstructors = map[string]func(map[string]interface{}) serviceiface.Service{
	"logger": func(cfg map[string]interface{}) serviceiface.Service {
		return logger.NewLoggerService(cfg)
	},
	"students": func(cfg map[string]interface{}) serviceiface.Service {
		return students.NewStudentsService(cfg, pgxPool, storeClient)
	},
	"finance": func(cfg map[string]interface{}) serviceiface.Service {
		return finance.NewFinanceService(cfg, pgxPool)
	},
	"imports": func(cfg map[string]interface{}) serviceiface.Service {
		return imports.NewImportsService(cfg, pgxPool)
	},
	"realtime": func(cfg map[string]interface{}) serviceiface.Service {
		return realtime.NewRealtimeService(cfg, pgxPool)
	},
	"jobs": func(cfg map[string]interface{}) serviceiface.Service {
		return jobs.NewCronService(cfg, pgxPool)
	},
	"gateway": func(cfg map[string]interface{}) serviceiface.Service {
		return api.NewGatewayService(cfg)
	},
	"auth": func(cfg map[string]interface{}) serviceiface.Service {
		toInt := func(v interface{}) int {
			switch t := v.(type) {
			case int:
				return t
			case int64:
				return int(t)
			case float64:
				return int(t)
			case string:
				var parsed int
				if _, err := fmt.Sscanf(t, "%d", &parsed); err == nil {
					return parsed
				}
			}
			return 0
		}
		var maxUsers, sessionTimeout int
		if cfg != nil {
			if v, ok := cfg["max_users"]; ok && v != nil {
				maxUsers = toInt(v)
			}
			if v, ok := cfg["session_timeout"]; ok && v != nil {
				sessionTimeout = toInt(v)
			}
		}
		return auth.NewAuthService(AuthDB, maxUsers, sessionTimeout)
	},
}

// ------------------- MANAGER -------------------

type AppManager struct {
	services []serviceiface.Service
	mu       sync.Mutex
}

func NewAppManager() *AppManager {
	return &AppManager{
		services: make([]serviceiface.Service, 0),
	}
}

func (am *AppManager) RegisterService(s serviceiface.Service) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.services = append(am.services, s)
}

func (am *AppManager) StartAll() error {
	am.mu.Lock()
	defer am.mu.Unlock()
	for _, service := range am.services {
		fmt.Println("Starting service:", service.Name())
		if err := service.Start(); err != nil {
			return fmt.Errorf("failed to start service %s: %w", service.Name(), err)
		}
	}
	return nil
}

func (am *AppManager) StopAll() error {
	am.mu.Lock()
	defer am.mu.Unlock()
	for i := len(am.services) - 1; i >= 0; i-- {
		svc := am.services[i]
		if err := svc.Stop(); err != nil {
			return fmt.Errorf("failed to stop service %s: %w", svc.Name(), err)
		}
	}
	return nil
}

// ------------------- YAML CONFIG -------------------

type ServiceSequencer struct {
	Services []ServiceConfig `yaml:"services"`
}

type ServiceConfig struct {
	Name       string                 `yaml:"name"`
	StartOrder int                    `yaml:"start_order"`
	Config     map[string]interface{} `yaml:"config"`
}

func LoadServiceSequence(path string) ([]ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seq ServiceSequencer
	if err := yaml.Unmarshal(data, &seq); err != nil {
		return nil, err
	}

	// sort by start_order
	sort.Slice(seq.Services, func(i, j int) bool {
		return seq.Services[i].StartOrder < seq.Services[j].StartOrder
	})

	return seq.Services, nil
}

func (am *AppManager) AutoRegisterServices(configs []ServiceConfig) {
	for _, svc := range configs {
		if constructor, ok := serviceConstructors[svc.Name]; ok {
			service := constructor(svc.Config)
			am.RegisterService(service)
			if svc.Name == "auth" {
				if realAuthSvc, ok := service.(*auth.AuthService); ok {
					api.SetAuthService(realAuthSvc)
				}
			}
		}
	}

	for _, svc := range am.services {
		if l, ok := svc.(*logger.LoggerService); ok {
			logger.SetGlobalLogger(l)
			break
		}
	}
}

func (am *AppManager) GetServiceByName(name string) serviceiface.Service {
	for _, svc := range am.services {
		if svc.Name() == name {
			return svc
		}
	}
	return nil
}
