package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/apryandito/taskrelay/internal/auth"
	"github.com/apryandito/taskrelay/internal/bot"
	"github.com/apryandito/taskrelay/internal/config"
	"github.com/apryandito/taskrelay/internal/httpapi"
	"github.com/apryandito/taskrelay/internal/intake"
	"github.com/apryandito/taskrelay/internal/lifecycle"
	"github.com/apryandito/taskrelay/internal/notify"
	"github.com/apryandito/taskrelay/internal/observability"
	"github.com/apryandito/taskrelay/internal/reminder"
	"github.com/apryandito/taskrelay/internal/store"
)

// BuildResult bundles everything main needs to run and tear down the service.
type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Arena     *intake.Arena
	Scheduler *reminder.Scheduler
	Metrics   *observability.Metrics
	StoreMode string

	// Cleanup releases external resources (DB pool) on shutdown.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}
	storeMode := "in-memory"
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		storeMode = "postgres"
	}

	var dispatcher notify.Dispatcher
	if strings.TrimSpace(cfg.BotToken) != "" {
		dispatcher = notify.NewTelegramSender(cfg.TelegramAPIBase, cfg.BotToken)
		log.Printf("notify: telegram sender active")
	} else {
		dispatcher = notify.NewLogSender()
		log.Printf("notify: no BOT_TOKEN set, using log sender")
	}

	guard := auth.NewGuard(cfg.OwnerID, st)

	arena := intake.NewArena(cfg.IntakeIdleLimit)
	arena.SetEvictHook(func(s *intake.Session) {
		log.Printf("intake: session for %d evicted after idling", s.UserID)
		metrics.IntakeSessions.WithLabelValues("expired").Inc()
		metrics.ActiveIntakeSessions.Set(float64(arena.ActiveCount()))
	})

	machine := intake.NewMachine(arena, st, guard, dispatcher, intake.Policy{
		IncludeCreator:              cfg.IncludeCreator,
		RequireRegisteredRecipients: cfg.RequireRegisteredRecipients,
	}, metrics)

	lc := lifecycle.NewManager(st, guard, dispatcher, metrics)
	engine := bot.NewEngine(st, guard, machine, lc, metrics)
	scheduler := reminder.NewScheduler(st, dispatcher, cfg.SweepInterval, cfg.OverdueGrace, metrics)
	api := httpapi.New(cfg, engine, dispatcher, metrics, storeMode)

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Arena:     arena,
		Scheduler: scheduler,
		Metrics:   metrics,
		StoreMode: storeMode,
		Cleanup:   st.Close,
	}, nil
}
