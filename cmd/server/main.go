package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"booktrack/internal/core"
	"booktrack/internal/platform/catalog"
	"booktrack/internal/platform/openai"
	grpcProtocol "booktrack/internal/protocols/grpc"
	httpProtocol "booktrack/internal/protocols/http"
	udpProtocol "booktrack/internal/protocols/udp"
	wsProtocol "booktrack/internal/protocols/websocket"
	"booktrack/internal/repository"
	"booktrack/pkg/config"
	"booktrack/pkg/database"
	"booktrack/pkg/logger"
)

func configPath() string {
	if p := os.Getenv("BOOKTRACK_CONFIG"); p != "" {
		return p
	}
	return "./configs/development.yaml"
}

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging)
	logger.Infof("Starting %s server (%s)...", cfg.App.Name, cfg.App.Env)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("Invalid timezone: %v", err)
	}

	// Schema first, over lib/pq
	db, err := database.NewDB(cfg.DatabaseConfig())
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	applied, err := db.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if len(applied) > 0 {
		logger.Infof("Applied migrations: %v", applied)
	}

	pool, err := database.NewPGXPool(cfg.DatabaseConfig())
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	logger.Info("Connected to PostgreSQL database")

	// Optional infrastructure. Interfaces stay nil unless configured.
	var cache redis.Cmdable
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warnf("Redis unavailable at %s, running without cache: %v", cfg.Redis.Addr, err)
			rdb.Close()
		} else {
			defer rdb.Close()
			cache = rdb
			logger.Infof("Connected to Redis at %s", cfg.Redis.Addr)
		}
	}

	var completer core.Completer
	if c := openai.New(openai.Config{
		BaseURL: cfg.Classifier.BaseURL,
		APIKey:  cfg.Classifier.APIKey,
		Model:   cfg.Classifier.Model,
		Timeout: cfg.Classifier.Timeout,
	}); c != nil {
		completer = c
	} else {
		logger.Info("No classifier API key, unclassified books default to beginner")
	}

	// Upstream first; the snapshot records upstream hits and answers when
	// the upstream is down
	var snapshot *catalog.SQLiteSource
	if cfg.Catalog.SQLitePath != "" {
		snapshot, err = catalog.OpenSQLite(cfg.Catalog.SQLitePath)
		if err != nil {
			logger.Warnf("Catalog snapshot unavailable: %v", err)
			snapshot = nil
		} else {
			defer snapshot.Close()
		}
	}

	var sources catalog.Chain
	if cfg.Catalog.TTBKey != "" {
		var upstream catalog.Source = catalog.NewHTTPSource(cfg.Catalog.BaseURL, cfg.Catalog.TTBKey, cfg.Catalog.Timeout, nil)
		if snapshot != nil {
			upstream = catalog.Record(upstream, snapshot)
		}
		sources = append(sources, upstream)
	}
	if snapshot != nil {
		sources = append(sources, snapshot)
	}
	if len(sources) == 0 {
		logger.Warn("No catalog source configured, only books already stored can be planned")
	}

	// Repositories
	userRepo := repository.NewUserRepository(pool)
	bookRepo := repository.NewBookRepository(pool)
	planRepo := repository.NewPlanRepository(pool)
	timeRepo := repository.NewTimeRecordRepository(pool)
	logRepo := repository.NewReadingLogRepository(pool)
	badgeRepo := repository.NewBadgeRepository(pool)
	rankingRepo := repository.NewRankingRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	tx := repository.NewTransactor(pool)

	logger.Info("Initialized all repositories")

	// Notification fan-out: live WebSocket feed plus the UDP push gateway
	hub := wsProtocol.NewHub()
	notifiers := core.Notifiers{hub}

	var udpServer *udpProtocol.Server
	if cfg.UDP.Enabled {
		udpServer = udpProtocol.NewServer(cfg.UDP.GatewayAddr, notificationRepo, userRepo, udpProtocol.Options{
			QueueSize: cfg.UDP.BufferSize,
			Rate:      cfg.UDP.RateLimit,
			Burst:     cfg.UDP.RateBurst,
		})
		if err := udpServer.Start(); err != nil {
			logger.Errorf("UDP dispatcher error (non-fatal): %v", err)
			udpServer = nil
		} else {
			notifiers = append(notifiers, udpServer)
		}
	} else {
		logger.Info("UDP dispatcher disabled")
	}

	// Core services
	verifier := core.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration)
	books := core.NewBookService(bookRepo, sources)
	classifier := core.NewDifficultyClassifier(completer, bookRepo, cfg.Classifier.Timeout)
	rankings := core.NewRankingService(rankingRepo, userRepo, core.RankingOptions{
		Cache:    cache,
		CacheTTL: cfg.Ranking.CacheTTL,
		Limit:    cfg.Ranking.Limit,
		Location: loc,
	})
	evaluator := core.NewAchievementEvaluator(badgeRepo, planRepo, logRepo, timeRepo, userRepo, notifiers, rankings)
	plans := core.NewPlanService(planRepo, bookRepo, tx, books, classifier, loc)
	timer := core.NewTimerService(timeRepo, planRepo, bookRepo, tx, evaluator, loc)
	readingLogs := core.NewReadingLogService(logRepo, planRepo, tx, evaluator)
	badges := core.NewBadgeService(badgeRepo, userRepo)
	users := core.NewUserService(userRepo)
	statistics := core.NewStatisticsService(timeRepo, loc)

	logger.Info("Initialized all core services")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.Reminder.Enabled {
		templates, err := core.LoadReminderTemplates(cfg.Reminder.TemplatesFile)
		if err != nil {
			logger.Fatalf("Failed to load reminder templates: %v", err)
		}
		hour, minute, _ := cfg.Reminder.SendTime()
		scheduler := core.NewReminderScheduler(planRepo, notifiers, templates, core.ReminderOptions{
			Hour:     hour,
			Minute:   minute,
			Interval: cfg.Reminder.CheckInterval,
			Location: loc,
			Dedupe:   cache,
		})
		go scheduler.Run(ctx)
	}

	// Protocol servers
	wsHandler := wsProtocol.NewHandler(hub, verifier, cfg.Server.AllowedOrigins)
	httpServer := httpProtocol.NewServer(cfg, httpProtocol.Deps{
		Plans:         plans,
		Timer:         timer,
		ReadingLogs:   readingLogs,
		Badges:        badges,
		Rankings:      rankings,
		Books:         books,
		Users:         users,
		Statistics:    statistics,
		Verifier:      verifier,
		Notifications: wsHandler.HandleWebSocket,
		Ping:          db.HealthCheck,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := httpServer.HTTPServer(httpAddr)
	go func() {
		logger.Infof("Starting HTTP server on %s", httpAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	grpcAddr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	grpcServer := grpcProtocol.NewServer(grpcAddr, rankings, verifier)
	if err := grpcServer.Start(); err != nil {
		logger.Errorf("gRPC server error (non-fatal): %v", err)
		grpcServer = nil
	}

	logger.Info("All protocol servers started successfully")
	logger.Info("Press Ctrl+C to shutdown")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Infof("Received signal: %v", sig)
	logger.Info("Shutting down servers...")

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}
	logger.Info("HTTP server stopped")

	if grpcServer != nil {
		grpcServer.Stop()
	}
	hub.Stop()
	logger.Infof("WebSocket hub stopped (%d connections served)", wsHandler.TotalConnections())
	if udpServer != nil {
		udpServer.Stop()
		queued, dropped, sent := udpServer.GetStats()
		logger.Infof("UDP dispatcher stopped (queued=%d dropped=%d sent=%d)", queued, dropped, sent)
	}

	logger.Info("Shutdown complete")
}
