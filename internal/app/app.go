// Package app wires configuration, collaborators and the CLI together.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskradar/internal/classify"
	"taskradar/internal/config"
	"taskradar/internal/httpx"
	"taskradar/internal/integrations/llm"
	"taskradar/internal/integrations/pushplus"
	"taskradar/internal/integrations/reddit"
	slackbot "taskradar/internal/integrations/slack"
	"taskradar/internal/integrations/telegram"
	"taskradar/internal/ledger"
	"taskradar/internal/notify"
	"taskradar/internal/patterns"
	"taskradar/internal/scan"
	"taskradar/internal/scheduler"
)

// Main runs the CLI and exits non-zero on failure.
func Main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime holds every long-lived collaborator built from Config.
type runtime struct {
	cfg         config.Config
	patterns    *patterns.Store
	ledger      *ledger.Ledger
	coordinator *notify.Coordinator
	service     *scan.Service
	scheduler   *scheduler.Scheduler
}

func configureLogging(cfg config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func buildRuntime(cfg config.Config) (*runtime, error) {
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)

	store, err := patterns.NewStore(cfg.PatternsPath)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}

	notified, err := ledger.Open()
	if err != nil {
		return nil, fmt.Errorf("open notified ledger: %w", err)
	}

	provider, err := llm.NewProvider(llm.ProviderConfig{
		Provider:        cfg.LLMProvider,
		Model:           cfg.LLMModel,
		APIURL:          cfg.LLMAPIURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
	})
	if err != nil {
		_ = notified.Close()
		return nil, err
	}
	enricher := llm.NewEnricher(provider,
		llm.WithMaxAnalyze(cfg.LLMMaxAnalyze),
		llm.WithRequestsPerMinute(cfg.LLMRequestsPerMinute),
		llm.WithSkillProfile(cfg.LLMSkillProfile),
	)

	coordinator := notify.NewCoordinator(notified, channels(cfg)...)

	service := scan.NewService(
		reddit.NewClient(cfg.RedditUserAgent),
		classify.NewNeedClassifier(store),
		classify.NewTaskClassifier(store, classify.WithTagBonus(*cfg.TaskTagBonus)),
		enricher,
		coordinator,
		scan.Options{
			TaskSubreddits:  cfg.TaskSubreddits,
			TaskKeyword:     cfg.TaskKeyword,
			CycleTimeFilter: cfg.ScanTimeFilter,
			CycleLimit:      cfg.ScanLimit,
		},
	)

	sched, err := scheduler.New(func(ctx context.Context) error {
		res, err := service.ScanAndNotify(ctx)
		log.Printf("scheduled scan: %s", scan.FormatCycleSummary(res))
		return err
	}, time.Duration(cfg.ScanIntervalMinutes)*time.Minute, cfg.ScanSchedule)
	if err != nil {
		_ = notified.Close()
		return nil, err
	}

	log.Printf(
		"Config loaded. Subreddits=%v TimeFilter=%s Interval=%dm Schedule=%q LLMProvider=%s LLMEnabled=%t Channels=%v Patterns=%d ExternalHTTPTimeout=%s",
		cfg.TaskSubreddits,
		cfg.ScanTimeFilter,
		cfg.ScanIntervalMinutes,
		cfg.ScanSchedule,
		cfg.LLMProvider,
		enricher.Enabled(),
		coordinator.Channels(),
		store.Current().Size(),
		appliedHTTPTimeout,
	)

	return &runtime{
		cfg:         cfg,
		patterns:    store,
		ledger:      notified,
		coordinator: coordinator,
		service:     service,
		scheduler:   sched,
	}, nil
}

// channels returns the configured transports. Unconfigured ones are left
// out rather than passed as typed nils.
func channels(cfg config.Config) []notify.Channel {
	var out []notify.Channel
	if ch := slackbot.New(cfg.SlackBotToken, cfg.SlackChannelID); ch != nil {
		out = append(out, ch)
	}
	if ch := telegram.New(cfg.TelegramBotToken, cfg.TelegramChatID); ch != nil {
		out = append(out, ch)
	}
	if ch := pushplus.New(cfg.PushPlusToken); ch != nil {
		out = append(out, ch)
	}
	return out
}

func (r *runtime) Close() {
	r.scheduler.Stop()
	if err := r.ledger.Close(); err != nil {
		log.Printf("close ledger: %v", err)
	}
}

// NewRootCmd builds the taskradar command tree.
func NewRootCmd() *cobra.Command {
	var cfg config.Config
	root := &cobra.Command{
		Use:           "taskradar",
		Short:         "Scan Reddit for actionable requests and notify on new matches",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.LoadConfig()
			configureLogging(cfg)
		},
	}
	loadRuntime := func() (*runtime, error) { return buildRuntime(cfg) }

	root.AddCommand(
		newServeCmd(loadRuntime),
		newScanCmd(loadRuntime),
		newTasksCmd(loadRuntime),
		newNotifyCmd(loadRuntime),
	)
	return root
}
