package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "automod",
		Usage:   "chat moderation decision daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "violation and schedule storage: memory, sqlite://<path>, postgres://..., or pebble://<dir>",
			Value:   "sqlite://data/automod/automod.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.StringFlag{
			Name:    "guild-config",
			Usage:   "path to YAML file with per-guild moderation policy",
			EnvVars: []string{"AUTOMOD_GUILD_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "sets-json-path",
			Usage:   "file path of JSON file containing global sets (url-shorteners, blocked-domains)",
			EnvVars: []string{"AUTOMOD_SETS_FILE_JSON"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL, for counters and config cache",
			EnvVars: []string{"AUTOMOD_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "perspective-api-key",
			Usage:   "API key for Perspective toxicity scoring; toxicity filter is degraded without it",
			EnvVars: []string{"PERSPECTIVE_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"AUTOMOD_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		replayCmd,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cctx.String("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3999",
			EnvVars: []string{"AUTOMOD_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3998",
			EnvVars: []string{"AUTOMOD_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "reversal-webhook-url",
			Usage:   "URL which expired timeouts and temporary bans are POSTed to, for the platform adapter to reverse",
			EnvVars: []string{"AUTOMOD_REVERSAL_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "notify-min-action",
			Usage:   "least severe action which triggers a slack notification",
			Value:   "kick",
			EnvVars: []string{"AUTOMOD_NOTIFY_MIN_ACTION"},
		},
		&cli.IntFlag{
			Name:    "notify-hourly-limit",
			Usage:   "max slack notifications per hour (0 for no limit)",
			Value:   60,
			EnvVars: []string{"AUTOMOD_NOTIFY_HOURLY_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    "schedule-retry-delay",
			Usage:   "delay before retrying a reversal whose state could not be persisted",
			Value:   30 * time.Second,
			EnvVars: []string{"AUTOMOD_SCHEDULE_RETRY_DELAY"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		logger := configLogger(cctx)

		shutdownOTEL := configOTEL("automod")
		defer shutdownOTEL()

		srv, err := NewServer(Config{
			DatabaseURL:        cctx.String("database-url"),
			MaxDBConnections:   cctx.Int("max-db-connections"),
			GuildConfigPath:    cctx.String("guild-config"),
			SetsFileJSON:       cctx.String("sets-json-path"),
			RedisURL:           cctx.String("redis-url"),
			PerspectiveAPIKey:  cctx.String("perspective-api-key"),
			ReversalWebhookURL: cctx.String("reversal-webhook-url"),
			SlackWebhookURL:    cctx.String("slack-webhook-url"),
			NotifyMinAction:    cctx.String("notify-min-action"),
			NotifyHourlyLimit:  cctx.Int64("notify-hourly-limit"),
			ScheduleRetryDelay: cctx.Duration("schedule-retry-delay"),
			Logger:             logger,
		})
		if err != nil {
			return err
		}
		defer srv.Close()

		if err := srv.Run(ctx, cctx.String("bind"), cctx.String("metrics-listen")); err != nil {
			return fmt.Errorf("failed to run automod service: %w", err)
		}
		return nil
	},
}
