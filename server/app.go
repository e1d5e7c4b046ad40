package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strand/config"
	"strand/internal/db"
	"strand/internal/health"
	"strand/internal/ipam"
	"strand/internal/lifecycle"
	"strand/internal/logs"
	"strand/internal/metrics"
	"strand/internal/middleware"
	"strand/internal/models"
	"strand/internal/radius"
	"strand/internal/repo"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type App struct {
	cfg        *config.Config
	Router     *mux.Router
	httpServer *http.Server

	db     *gorm.DB
	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	// 1) Логи
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	// 2) БД (опционально)
	if drv := a.cfg.Database.Driver; drv != "" {
		d, err := db.Open(drv, a.cfg.Database.DSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		a.db = d
	}

	// ---- DB migrations (only if DB is connected) ----
	if a.db != nil {
		if err := a.db.AutoMigrate(
			&models.IPv6Assignment{},
			&models.RadiusSession{},
			&models.PoolPrefix{},
		); err != nil {
			log.Fatalf("db migrate failed: %v", err)
		}
		if err := db.MigrateAssignmentIndexes(a.db); err != nil {
			logs.Logger.Warnf("assignment indexes migration: %v", err)
		}
	}

	// 3) Роутер + middleware
	a.Router = mux.NewRouter()
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.LoggerMW)

	a.RegisterWebUI("/ui/")

	// 4) Health + метрики
	if a.db != nil {
		health.RegisterRoutesWithDB(a.Router, a.db) // /healthz и /readyz
	} else {
		health.RegisterRoutes(a.Router) // только /healthz
	}
	a.Router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// 5) Хранилища: gorm при подключённой БД, иначе in-memory
	var store lifecycle.Store
	var sessions radius.SessionStore
	if a.db != nil {
		store = repo.NewAssignmentStore(a.db)
		sessions = radius.NewSessionRepo(a.db)
	} else {
		store = lifecycle.NewMemStore()
		sessions = radius.NewMemSessions()
	}

	// 6) IPAM backend
	var prefixes lifecycle.PrefixSource
	switch a.cfg.IPAM.Backend {
	case "netbox":
		prefixes = ipam.NewNetBox(
			a.cfg.IPAM.NetBox.URL, a.cfg.IPAM.NetBox.Token,
			a.cfg.IPAM.NetBox.ParentID, a.cfg.IPAM.PrefixLen,
		)
	case "pool":
		p, err := ipam.NewPool(a.db, a.cfg.IPAM.Pool.Root, a.cfg.IPAM.PrefixLen)
		if err != nil {
			log.Fatalf("ipam pool: %v", err)
		}
		prefixes = p
	default:
		log.Fatalf("unknown ipam backend: %q", a.cfg.IPAM.Backend)
	}

	// 7) Менеджер жизненного цикла + HTTP-ручки
	coa := radius.NewCoAClient(a.cfg.RADIUS.Secret, a.cfg.RADIUS.CoAPort, a.cfg.RADIUS.Timeout)
	mgr := lifecycle.NewManagerWithTimeout(store, prefixes, sessions, coa, a.cfg.IPAM.Timeout)
	lifecycle.NewHTTP(mgr).RegisterRoutes(a.Router)
	radius.NewHTTP(sessions).RegisterRoutes(a.Router)

	a.Router.Walk(func(rt *mux.Route, r *mux.Router, ancestors []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return ErrNotInitialized
	}
	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigs; a.cancel() }()

	a.httpServer = &http.Server{
		Addr:         bind,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.httpServer.Shutdown(ctx)
	return nil
}

var ErrNotInitialized = &initError{"server not initialized (call Initialize(cfg) first)"}

type initError struct{ s string }

func (e *initError) Error() string { return e.s }
