package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"booktrack/internal/repository"
	"booktrack/pkg/logger"
	"booktrack/pkg/models"
	"booktrack/pkg/utils"
)

const reminderDedupeTTL = 26 * time.Hour

// ReminderTemplates is the YAML file of reminder texts. "{{title}}" in a
// template is replaced by the book title.
type ReminderTemplates struct {
	Title     string   `yaml:"title"`
	Templates []string `yaml:"templates"`
}

// LoadReminderTemplates reads and validates a template file
func LoadReminderTemplates(path string) (*ReminderTemplates, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reminder templates: %w", err)
	}
	var t ReminderTemplates
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to parse reminder templates: %w", err)
	}
	if len(t.Templates) == 0 {
		return nil, fmt.Errorf("reminder templates file %s has no templates", path)
	}
	if t.Title == "" {
		t.Title = "Today's reading"
	}
	return &t, nil
}

// Render fills template i with the book title
func (t *ReminderTemplates) Render(i int, bookTitle string) string {
	return strings.ReplaceAll(t.Templates[i%len(t.Templates)], "{{title}}", bookTitle)
}

// ReminderOptions configures the scheduler. A nil Dedupe keeps the sent set
// in memory.
type ReminderOptions struct {
	Hour     int
	Minute   int
	Interval time.Duration
	Location *time.Location
	Dedupe   redis.Cmdable
}

// ReminderScheduler sends one daily reading reminder per user with a plan
// scheduled today, once the local send time has passed.
type ReminderScheduler struct {
	planRepo  repository.PlanRepository
	notifier  Notifier
	templates *ReminderTemplates
	opts      ReminderOptions
	now       func() time.Time
	pick      func(n int) int

	mu        sync.Mutex
	lastSweep time.Time
	sent      map[string]struct{}
	sentDay   time.Time
}

// NewReminderScheduler creates a scheduler
func NewReminderScheduler(planRepo repository.PlanRepository, notifier Notifier, templates *ReminderTemplates, opts ReminderOptions) *ReminderScheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &ReminderScheduler{
		planRepo:  planRepo,
		notifier:  notifier,
		templates: templates,
		opts:      opts,
		now:       time.Now,
		pick:      rand.IntN,
		sent:      map[string]struct{}{},
	}
}

// Run checks on every tick until ctx is cancelled
func (r *ReminderScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	logger.Infof("reminder scheduler started, sending at %02d:%02d %s", r.opts.Hour, r.opts.Minute, r.opts.Location)

	for {
		select {
		case <-ctx.Done():
			logger.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			if _, err := r.Tick(ctx); err != nil && !utils.IsContextError(err) {
				logger.Errorf("reminder sweep failed: %v", err)
			}
		}
	}
}

// Tick runs a sweep if the send time has passed and today was not swept yet.
// It returns the number of reminders sent.
func (r *ReminderScheduler) Tick(ctx context.Context) (int, error) {
	now := r.now().In(r.opts.Location)
	today := utils.Today(now, r.opts.Location)
	sendAt := time.Date(now.Year(), now.Month(), now.Day(), r.opts.Hour, r.opts.Minute, 0, 0, r.opts.Location)

	r.mu.Lock()
	due := !now.Before(sendAt) && !r.lastSweep.Equal(today)
	r.mu.Unlock()
	if !due {
		return 0, nil
	}

	n, err := r.Sweep(ctx, today)
	if err != nil {
		return n, err
	}

	r.mu.Lock()
	r.lastSweep = today
	r.mu.Unlock()
	return n, nil
}

// Sweep reminds every push-enabled user with a READING plan on day. Users
// already reminded for day are skipped.
func (r *ReminderScheduler) Sweep(ctx context.Context, day time.Time) (int, error) {
	targets, err := r.planRepo.ListReminderTargets(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("failed to list reminder targets: %w", err)
	}

	sent := 0
	seen := map[string]struct{}{}
	for _, t := range targets {
		if _, dup := seen[t.UserID]; dup {
			continue
		}
		seen[t.UserID] = struct{}{}

		claimed, err := r.claim(ctx, day, t.UserID)
		if err != nil {
			logger.WithFields(map[string]interface{}{"user_id": t.UserID}).WithError(err).Warn("reminder dedupe failed")
			continue
		}
		if !claimed {
			continue
		}

		r.notifier.Notify(ctx, models.Notification{
			UserID:  t.UserID,
			Kind:    models.NotificationReminder,
			Title:   r.templates.Title,
			Body:    r.templates.Render(r.pick(len(r.templates.Templates)), t.BookTitle),
			TraceID: utils.NewTraceID(),
		})
		sent++
	}

	logger.WithFields(map[string]interface{}{
		"day":     day.Format(models.DateLayout),
		"targets": len(seen),
		"sent":    sent,
	}).Info("reading reminders sent")
	return sent, nil
}

// claim reports whether this process should send userID's reminder for day
func (r *ReminderScheduler) claim(ctx context.Context, day time.Time, userID string) (bool, error) {
	key := fmt.Sprintf("reminder:%s:%s", day.Format(models.DateLayout), userID)
	if r.opts.Dedupe != nil {
		return r.opts.Dedupe.SetNX(ctx, key, 1, reminderDedupeTTL).Result()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sentDay.Equal(day) {
		r.sent = map[string]struct{}{}
		r.sentDay = day
	}
	if _, ok := r.sent[key]; ok {
		return false, nil
	}
	r.sent[key] = struct{}{}
	return true, nil
}
