package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	api "github.com/mind-engage/mindengage-authoring/internal/api/http"
	auth "github.com/mind-engage/mindengage-authoring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-authoring/internal/config"
	"github.com/mind-engage/mindengage-authoring/internal/db"
	"github.com/mind-engage/mindengage-authoring/internal/drafts"
	"github.com/mind-engage/mindengage-authoring/internal/eventlog"
	"github.com/mind-engage/mindengage-authoring/internal/lms"
	"github.com/mind-engage/mindengage-authoring/internal/logging"
	"github.com/mind-engage/mindengage-authoring/internal/notify"
	"github.com/mind-engage/mindengage-authoring/internal/rbac"
	"github.com/mind-engage/mindengage-authoring/internal/sessions"
	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

const (
	idleSession = 30 * time.Minute
	sweepEvery  = 5 * time.Minute
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("builderd stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()
	events := eventlog.NewRepo(dbh, cfg.SiteID)

	// --- Drafts ---
	var store drafts.Store
	switch cfg.DraftStore {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(openCtx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		store = drafts.NewRedisStore(rdb, cfg.DraftTTL)
	case "sql":
		sqlStore := drafts.NewSQLStore(dbh, cfg.DraftTTL)
		go purgeDrafts(ctx, sqlStore, log)
		store = sqlStore
	default:
		store = drafts.NewMemoryStore(cfg.DraftTTL)
	}

	// --- LMS + sessions ---
	client := lms.New(lms.Config{
		BaseURL:      cfg.LMSBaseURL,
		WSToken:      cfg.LMSWSToken,
		TokenURL:     cfg.LMSTokenURL,
		ClientID:     cfg.LMSClientID,
		ClientSecret: cfg.LMSClientSecret,
		Timeout:      cfg.LMSTimeout,
		Logger:       log.Named("lms"),
	})
	hub := notify.NewHub(log.Named("notify"))
	lmsBase := strings.TrimSuffix(cfg.LMSBaseURL, "/")
	reg := sessions.NewRegistry(sessions.Config{
		Backend: client,
		Drafts:  store,
		Events:  events,
		Hub:     hub,
		Logger:  log.Named("sessions"),
		Defaults: sessions.Defaults{
			SearchDebounce: cfg.SearchDebounce,
			RedirectDelay:  cfg.RedirectDelay,
			EditPolicy:     wizard.EditPolicy(cfg.BuilderEditPolicy),
			ListingURL: func(courseID int) string {
				return lmsBase + "/course/view.php?id=" + strconv.Itoa(courseID)
			},
		},
	})
	go sweepSessions(ctx, reg)

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	origins := cfg.CORSOrigins()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, auth.Credentials{
			AdminUser:     cfg.AdminUser,
			AdminPassHash: cfg.AdminPassHash,
			DevTeachers:   cfg.Mode == config.ModeOffline,
		}))
	}

	r.Get("/kinds", api.KindsHandler())
	r.Get("/commands", api.CommandsHandler())

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// the notice stream is long-lived and stays outside the request timeout
		pr.With(rbac.Require("session:view")).
			Get("/sessions/{sessionID}/notices", api.NoticesHandler(reg, hub, originChecker(origins)))

		pr.Group(func(tr chi.Router) {
			tr.Use(middleware.Timeout(60 * time.Second))

			tr.With(rbac.Require("session:create")).Post("/sessions", api.CreateSessionHandler(reg))
			tr.With(rbac.Require("session:view")).Get("/sessions/{sessionID}", api.GetSessionHandler(reg))
			tr.With(rbac.Require("session:view")).Get("/sessions/{sessionID}/snapshot", api.SnapshotHandler(reg))
			tr.With(rbac.Require("session:command")).
				Post("/sessions/{sessionID}/commands/{command}", api.DispatchHandler(reg, log.Named("api")))
			tr.With(rbac.Require("session:close")).Delete("/sessions/{sessionID}", api.CloseSessionHandler(reg))

			tr.With(rbac.Require("draft:list")).Get("/drafts", api.ListDraftsHandler(reg))
			tr.With(rbac.Require("draft:resume")).Post("/drafts/{sessionID}/resume", api.ResumeDraftHandler(reg))
			tr.With(rbac.Require("draft:delete")).Delete("/drafts/{sessionID}", api.CloseSessionHandler(reg))

			tr.With(rbac.Require("events:view")).Get("/events", api.EventsHandler(events))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("mode", string(cfg.Mode)),
			zap.String("db", cfg.DBDriver), zap.String("drafts", cfg.DraftStore))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	log.Info("shutting down", zap.Int("liveSessions", reg.Live()))
	return srv.Shutdown(shutdownCtx)
}

func sweepSessions(ctx context.Context, reg *sessions.Registry) {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			reg.Sweep(idleSession)
		}
	}
}

func purgeDrafts(ctx context.Context, s *drafts.SQLStore, log *zap.Logger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := s.Purge(ctx); err != nil {
				log.Warn("purge drafts", zap.Error(err))
			} else if n > 0 {
				log.Info("expired drafts purged", zap.Int64("count", n))
			}
		}
	}
}

// originChecker accepts WebSocket upgrades from the configured CORS origins
// and from same-host pages without an Origin header.
func originChecker(origins []string) func(*http.Request) bool {
	allowed := map[string]bool{}
	for _, o := range origins {
		allowed[strings.TrimSuffix(o, "/")] = true
	}
	return func(r *http.Request) bool {
		o := r.Header.Get("Origin")
		return o == "" || allowed["*"] || allowed[o]
	}
}
