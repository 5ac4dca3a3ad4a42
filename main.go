package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/api"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/auth"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/batch"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/cache"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/config"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/finance"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/logging"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/middleware"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/migrate"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/seed"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/series"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/session"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.Env)
	defer logging.Sync()

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		gormCfg := &gorm.Config{}
		if cfg.Env == "production" {
			gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
		}
		var err error
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
		if err != nil {
			logging.L.Fatalw("conexão postgres", "error", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			logging.L.Fatalw("pool postgres", "error", err)
		}
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
		if err := sqlDB.Ping(); err != nil {
			logging.L.Fatalw("ping postgres", "error", err)
		}
		if err := migrate.Run(context.Background(), db, "migrations"); err != nil {
			logging.L.Fatalw("migrations", "error", err)
		}
		if cfg.Env != "production" {
			if err := seed.Run(context.Background(), db); err != nil {
				logging.L.Warnw("seed (ignorado se já aplicado)", "error", err)
			}
		}
	}

	summaryCache := cache.New(cfg.CacheTTL)
	defer summaryCache.Stop()

	bookings := repo.NewBookingRepo(db)
	sessions := repo.NewSessionRepo(db)
	ledger := repo.NewLedgerRepo(db)
	therapists := repo.NewTherapistRepo(db)
	financeRepo := repo.NewFinanceRepo(db)

	sync := session.New(sessions)
	seriesMgr := series.NewManager(bookings, sync)
	seriesMgr.ChunkSize = cfg.SyncChunkSize
	batchProc := batch.NewProcessor(bookings, sync)
	aggregator := finance.NewAggregator(finance.RepoStore{Finance: financeRepo, Ledger: ledger}, summaryCache)

	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"no database"}`))
			return
		}
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"db unhealthy"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	h := &api.Handler{
		DB:         db,
		Cfg:        cfg,
		Cache:      summaryCache,
		Bookings:   bookings,
		Sessions:   sessions,
		Ledger:     ledger,
		Therapists: therapists,
		Series:     seriesMgr,
		Batch:      batchProc,
		Finance:    aggregator,
		Sync:       sync,
	}

	anyStaff := middleware.RequireRole(auth.RoleAdmin, auth.RoleProfessional, auth.RoleAssistant)
	adminOnly := middleware.RequireRole(auth.RoleAdmin)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(middleware.RequireAuthMiddleware(cfg.JWTSecret))
	protected.Handle("/bookings", anyStaff(http.HandlerFunc(h.ListBookings))).Methods(http.MethodGet)
	protected.Handle("/bookings/batch", anyStaff(http.HandlerFunc(h.BatchBookings))).Methods(http.MethodPost)
	protected.Handle("/bookings/series", anyStaff(http.HandlerFunc(h.CreateBookingSeries))).Methods(http.MethodPost)
	protected.Handle("/bookings/series/{recurrenceId}", anyStaff(http.HandlerFunc(h.PatchBookingSeries))).Methods(http.MethodPatch)
	protected.Handle("/bookings/series/{recurrenceId}", anyStaff(http.HandlerFunc(h.DeleteBookingSeries))).Methods(http.MethodDelete)
	protected.Handle("/bookings/{id}", anyStaff(http.HandlerFunc(h.GetBooking))).Methods(http.MethodGet)
	protected.Handle("/bookings/{id}", anyStaff(http.HandlerFunc(h.PatchBooking))).Methods(http.MethodPatch)
	protected.Handle("/bookings/{id}", anyStaff(http.HandlerFunc(h.DeleteBooking))).Methods(http.MethodDelete)
	protected.Handle("/sessions/by-booking/{bookingId}", anyStaff(http.HandlerFunc(h.GetSessionByBooking))).Methods(http.MethodGet)
	protected.Handle("/sessions/by-booking/{bookingId}", adminOnly(http.HandlerFunc(h.PatchSessionByBooking))).Methods(http.MethodPatch)
	protected.Handle("/therapists", anyStaff(http.HandlerFunc(h.ListTherapists))).Methods(http.MethodGet)
	protected.Handle("/therapists/{id}/share", adminOnly(http.HandlerFunc(h.GetTherapistShare))).Methods(http.MethodGet)
	protected.Handle("/finance/summary", adminOnly(http.HandlerFunc(h.GetFinanceSummary))).Methods(http.MethodGet)
	protected.Handle("/finance/history", adminOnly(http.HandlerFunc(h.GetFinanceHistory))).Methods(http.MethodGet)
	protected.Handle("/finance/yearly", adminOnly(http.HandlerFunc(h.GetFinanceYearly))).Methods(http.MethodGet)
	protected.Handle("/finance/ledger", adminOnly(http.HandlerFunc(h.ListLedgerEntries))).Methods(http.MethodGet)
	protected.Handle("/finance/ledger", adminOnly(http.HandlerFunc(h.CreateLedgerEntry))).Methods(http.MethodPost)

	chain := middleware.Recover(middleware.RequestID(middleware.Timeout(cfg.RequestTimeoutSec)(middleware.CORS(cfg.CORSOrigins)(middleware.Gzip(r)))))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      chain,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logging.L.Infow("backend listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L.Fatalw("listen", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.L.Warnw("shutdown", "error", err)
	}
	logging.L.Info("backend stopped")
}
