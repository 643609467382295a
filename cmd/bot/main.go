// Command bot plays Cheese Pants automatically. It connects a number of
// players to one game over the websocket endpoint, has the first one start
// the game once everyone has joined, and plays words until the sentence is
// complete. It is useful for smoke testing a deployment and for generating
// stored games.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/cheese-pants/game/engine"
)

// Config controls a bot run
type Config struct {
	ServerURL string
	GameID    string
	Players   int
	Options   GameOptions
	Strategy  Strategy
	Delay     time.Duration
	Logger    zerolog.Logger
}

// Run connects cfg.Players bots and plays one game to completion, returning
// the finished sentence.
func Run(ctx context.Context, cfg Config) ([]string, error) {
	if cfg.Players < 1 {
		return nil, errors.New("at least one player is required")
	}
	if cfg.GameID == "" {
		cfg.GameID = uuid.NewString()
	}

	bots := make([]*Bot, 0, cfg.Players)
	defer func() {
		for _, b := range bots {
			b.Close()
		}
	}()

	for i := range cfg.Players {
		id := fmt.Sprintf("bot-%d", i+1)
		b, err := Dial(ctx, cfg.ServerURL, cfg.GameID, id, fmt.Sprintf("Bot %d", i+1), cfg.Options)
		if err != nil {
			return nil, err
		}
		b.strategy = cfg.Strategy
		b.delay = cfg.Delay
		b.logger = cfg.Logger.With().Str("player", id).Logger()
		bots = append(bots, b)
	}
	cfg.Logger.Info().Str("game", cfg.GameID).Int("players", len(bots)).Msg("Bots connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		sentence []string
		err      error
	}
	results := make(chan result, len(bots))
	var wg sync.WaitGroup
	for i, b := range bots {
		startWith := 0
		if i == 0 {
			startWith = len(bots)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sentence, err := b.Play(ctx, startWith)
			results <- result{sentence, err}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Every bot sees the same game-complete; the first answer wins.
	var firstErr error
	for r := range results {
		if r.err == nil {
			cancel()
			return r.sentence, nil
		}
		if firstErr == nil {
			firstErr = r.err
			cancel()
		}
	}
	return nil, firstErr
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "bot",
		Usage: "Play a Cheese Pants game with automated players",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "game server URL"},
			&cli.StringFlag{Name: "game", Usage: "game ID (default: random)"},
			&cli.IntFlag{Name: "players", Value: 2, Usage: "number of bots"},
			&cli.StringFlag{Name: "required-words", Value: strings.Join(engine.DefaultRequiredWords, ","), Usage: "comma-separated required words for a new game"},
			&cli.IntFlag{Name: "turn-time-limit", Usage: "turn time limit in seconds for a new game"},
			&cli.IntFlag{Name: "every", Value: 3, Usage: "play a required word every N words"},
			&cli.DurationFlag{Name: "delay", Usage: "pause before each word"},
			&cli.DurationFlag{Name: "timeout", Value: time.Minute, Usage: "give up after this long"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log every message"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level := zerolog.InfoLevel
			if cmd.Bool("verbose") {
				level = zerolog.DebugLevel
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(level).With().Timestamp().Logger()

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()

			sentence, err := Run(ctx, Config{
				ServerURL: cmd.String("url"),
				GameID:    cmd.String("game"),
				Players:   cmd.Int("players"),
				Options: GameOptions{
					RequiredWords: engine.ParseRequiredWords(cmd.String("required-words")),
					TurnTimeLimit: cmd.Int("turn-time-limit"),
				},
				Strategy: Strategy{Filler: DefaultFiller, Every: cmd.Int("every")},
				Delay:    cmd.Duration("delay"),
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "🧀 %s\n", strings.Join(sentence, " "))
			return nil
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
