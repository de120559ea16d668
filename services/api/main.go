package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agora/internal/broker"
	"github.com/agora/internal/comments"
	"github.com/agora/internal/config"
	"github.com/agora/internal/counter"
	"github.com/agora/internal/handler"
	"github.com/agora/internal/logger"
	"github.com/agora/internal/middleware"
	"github.com/agora/internal/notify"
	"github.com/agora/internal/presence"
	"github.com/agora/internal/push"
	"github.com/agora/internal/repository"
	"github.com/agora/internal/service"
	"github.com/agora/internal/startup"
	"github.com/agora/internal/storage"
	memorystorage "github.com/agora/internal/storage/memory"
	"github.com/agora/internal/ws"
	"github.com/agora/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory presence (no external services required)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second)
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	// Presence lives in Redis in production; -dev keeps it in memory so the
	// service comes up with no external dependencies.
	var presenceStore storage.PresenceStore
	var announcer *broker.Announcer
	if *dev {
		presenceStore = memorystorage.New()
	} else {
		redisClient := startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second)
		defer redisClient.Close()
		presenceStore = redisClient
		announcer = broker.NewAnnouncer(redisClient.Redis())
	}

	msgRepo := repository.NewMessageRepository(pool)
	contentRepo := repository.NewContentRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	notifRepo := repository.NewNotificationRepository(pool)
	subRepo := repository.NewSubscriptionRepository(pool)

	vapidKeys, err := push.EnsureVAPIDKeys("")
	if err != nil {
		logger.Errorf("vapid keys: %v", err)
		os.Exit(1)
	}
	pusher := push.NewSender(subRepo, vapidKeys, cfg.PushSubject)

	fanout := notify.New(notifRepo, pusher)
	counters := counter.New(contentRepo, commentRepo)
	graph := comments.New(commentRepo, counters)
	core := service.NewCore(msgRepo, announcer, fanout)
	defer core.Close()
	tracker := presence.New(presenceStore, cfg.PresenceWindow, cfg.PresenceSweepEvery)
	defer tracker.Close()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	var bgWg sync.WaitGroup
	bgWg.Add(1)
	go func() {
		defer bgWg.Done()
		tracker.Run(bgCtx)
	}()
	if announcer != nil {
		bgWg.Add(1)
		go func() {
			defer bgWg.Done()
			announcer.Run(bgCtx, func(topic string) { core.Rebroadcast(bgCtx, topic) })
		}()
	}

	hub := ws.NewHub(core, tracker, cfg.MaxWSConnections)
	bgWg.Add(1)
	go func() {
		defer bgWg.Done()
		hub.Run(bgCtx)
	}()

	msgH := handler.NewMessageHandler(core)
	presenceH := handler.NewPresenceHandler(tracker)
	commentH := handler.NewCommentHandler(graph, counters)
	notifH := handler.NewNotificationHandler(fanout)
	pushH := handler.NewPushHandler(subRepo, vapidKeys)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Do not compress WebSocket traffic: the wrapped ResponseWriter would
	// lose http.Hijacker and the upgrade fails with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.Identity)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-Id", "X-User-Name", "X-User-Role"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })

	r.Get("/api/rooms/{roomId}/messages", msgH.GetHistory)
	r.Post("/api/rooms/{roomId}/messages", msgH.Send)
	r.Put("/api/messages/{messageId}", msgH.Edit)
	r.Delete("/api/messages/{messageId}", msgH.Delete)
	r.Post("/api/direct/{peerId}", msgH.OpenDirect)
	r.Get("/api/threads", msgH.ListThreads)

	r.Post("/api/presence/heartbeat", presenceH.Heartbeat)
	r.Post("/api/presence/leave", presenceH.Leave)
	r.Get("/api/presence/online", presenceH.ListOnline)

	r.Get("/api/content/{kind}/{id}/comments", commentH.List)
	r.Post("/api/content/{kind}/{id}/comments", commentH.Create)
	r.Post("/api/comments/{commentId}/replies", commentH.Reply)
	r.Delete("/api/comments/{commentId}", commentH.Delete)
	r.Post("/api/content/{kind}/{id}/like", commentH.ToggleLike)
	r.Get("/api/content/{kind}/{id}/counters", commentH.GetCounters)
	r.Post("/api/content/{kind}/{id}/counters/repair", commentH.RepairCounter)

	r.Get("/api/notifications", notifH.List)
	r.Post("/api/notifications/{id}/read", notifH.MarkRead)
	r.Post("/api/notifications/read-all", notifH.MarkAllRead)

	r.Get("/api/push/public-key", pushH.PublicKey)
	r.Post("/api/push/subscribe", pushH.Subscribe)
	r.Delete("/api/push/subscribe", pushH.Unsubscribe)

	r.Get("/ws", wsH.ServeWS)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	bgCancel()
	bgWg.Wait()
	logger.Info("background workers stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		logger.Errorf("list migrations: %v", err)
		os.Exit(1)
	}
	sort.Strings(entries)
	for _, name := range entries {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "agora"
		password = "agora_secret"
		database = "agora"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
