// Command reminder runs the daily reading reminder sweep on its own, for
// deployments that keep it out of the API process. Set reminder.enabled to
// false on the API servers when running this.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"booktrack/internal/core"
	udpProtocol "booktrack/internal/protocols/udp"
	"booktrack/internal/repository"
	"booktrack/pkg/config"
	"booktrack/pkg/database"
	"booktrack/pkg/logger"
	"booktrack/pkg/utils"
)

func main() {
	configPath := flag.String("config", "./configs/development.yaml", "server config file")
	once := flag.Bool("once", false, "sweep today and exit, ignoring the send time")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Logging)

	loc, _ := cfg.Location()
	hour, minute, _ := cfg.Reminder.SendTime()

	templates, err := core.LoadReminderTemplates(cfg.Reminder.TemplatesFile)
	if err != nil {
		logger.Fatalf("Failed to load reminder templates: %v", err)
	}

	pool, err := database.NewPGXPool(cfg.DatabaseConfig())
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Shares the dedupe keys with any API process that also sweeps
	var dedupe redis.Cmdable
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		dedupe = rdb
	}

	dispatcher := udpProtocol.NewServer(cfg.UDP.GatewayAddr,
		repository.NewNotificationRepository(pool),
		repository.NewUserRepository(pool),
		udpProtocol.Options{QueueSize: cfg.UDP.BufferSize, Rate: cfg.UDP.RateLimit, Burst: cfg.UDP.RateBurst},
	)
	if err := dispatcher.Start(); err != nil {
		logger.Fatalf("Failed to start UDP dispatcher: %v", err)
	}
	defer dispatcher.Stop()

	scheduler := core.NewReminderScheduler(repository.NewPlanRepository(pool), dispatcher, templates, core.ReminderOptions{
		Hour:     hour,
		Minute:   minute,
		Interval: cfg.Reminder.CheckInterval,
		Location: loc,
		Dedupe:   dedupe,
	})

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		n, err := scheduler.Sweep(ctx, utils.Today(time.Now(), loc))
		if err != nil {
			logger.Errorf("Reminder sweep failed: %v", err)
		}
		logger.Infof("Sent %d reminders", n)
		// let the dispatcher drain
		time.Sleep(time.Second)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("Reminder worker started, gateway %s", cfg.UDP.GatewayAddr)
	scheduler.Run(ctx)
	logger.Info("Reminder worker stopped.")
}
