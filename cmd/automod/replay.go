package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/engine"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/event"

	cli "github.com/urfave/cli/v2"
)

var replayCmd = &cli.Command{
	Name:      "replay",
	Usage:     "evaluate captured events from a JSON lines file, printing one decision per line",
	ArgsUsage: "<events.jsonl>",
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("expected exactly one events file argument")
		}
		// decisions go to stdout; keep logs out of the way
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		slog.SetDefault(logger)

		dburl := cctx.String("database-url")
		if !cctx.IsSet("database-url") {
			dburl = "memory"
		}
		srv, err := NewServer(Config{
			DatabaseURL:       dburl,
			MaxDBConnections:  cctx.Int("max-db-connections"),
			GuildConfigPath:   cctx.String("guild-config"),
			SetsFileJSON:      cctx.String("sets-json-path"),
			PerspectiveAPIKey: cctx.String("perspective-api-key"),
			Logger:            logger,
		})
		if err != nil {
			return err
		}
		defer srv.Close()

		f, err := os.Open(cctx.Args().First())
		if err != nil {
			return err
		}
		defer f.Close()
		return replayEvents(cctx.Context, srv.engine, f, os.Stdout)
	},
}

type ReplayResult struct {
	Line     int              `json:"line"`
	EventID  string           `json:"event_id,omitempty"`
	GuildID  string           `json:"guild_id"`
	UserID   string           `json:"user_id"`
	Decision *engine.Decision `json:"decision,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func replayEvents(ctx context.Context, eng *engine.Engine, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(w)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var msg event.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			if err := enc.Encode(ReplayResult{Line: line, Error: err.Error()}); err != nil {
				return err
			}
			continue
		}
		res := ReplayResult{Line: line, EventID: msg.ID, GuildID: msg.GuildID, UserID: msg.AuthorID}
		if err := msg.Validate(); err != nil {
			res.Error = err.Error()
		} else {
			d := eng.Evaluate(ctx, &msg)
			res.Decision = &d
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return scanner.Err()
}
