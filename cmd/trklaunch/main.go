package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/trklaunch/internal/config"
	"github.com/danmuck/trklaunch/internal/launcher"
	"github.com/danmuck/trklaunch/internal/logging"
	"github.com/danmuck/trklaunch/internal/observability"
	"github.com/danmuck/trklaunch/internal/transport"
	"github.com/danmuck/trklaunch/internal/watch"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "trklaunch: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseArgs(args, os.Stderr)
	if err != nil {
		return err
	}
	if opts.WriteConfig != "" {
		if err := config.WriteTemplate(opts.WriteConfig, opts.Force); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote config template to %s\n", opts.WriteConfig)
		return nil
	}
	logging.ConfigureRuntime()
	logging.SetVerbosity(opts.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observability.RegisterMetrics()
	board := &observability.Board{}
	if opts.StatusAddr != "" {
		srv := observability.NewStatusServer(opts.StatusAddr, board, log.Logger)
		go func() {
			if err := srv.Serve(ctx); err != nil {
				log.Error().Err(err).Str("addr", opts.StatusAddr).Msg("status server stopped")
			}
		}()
		log.Info().Str("addr", opts.StatusAddr).Msg("status server listening")
	}

	var w *watch.Watcher
	if opts.Watch {
		w, err = watch.New(opts.CopySource, 0, log.Logger)
		if err != nil {
			return err
		}
		defer w.Close()
	}

	for {
		err := launchOnce(ctx, opts, board)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		if w == nil {
			return nil
		}
		log.Info().Str("file", w.Path()).Msg("waiting for change")
		if err := w.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// launchOnce runs the whole workflow on a fresh connection.
func launchOnce(ctx context.Context, opts options, board *observability.Board) error {
	if opts.CopySource != "" {
		if _, err := os.Stat(opts.CopySource); err != nil {
			return fmt.Errorf("copy source: %w", err)
		}
	}

	runID := uuid.NewString()
	logger := logging.ForRun(runID)

	conn, err := transport.Open(opts.Port, opts.transportConfig(), logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	cfg := opts.launcherConfig()
	cfg.Framing = conn.Mode()
	started := time.Now()
	hooks := launcher.Hooks{
		ApplicationOutput: func(text []byte) {
			os.Stdout.Write(text)
		},
		CopyingStarted: func() {
			logger.Info().Str("src", opts.CopySource).Str("dst", opts.CopyDestination).Msg("copying")
		},
		InstallingStarted: func() {
			logger.Info().Str("package", opts.Install).Msg("installing")
		},
		StartingApplication: func() {
			logger.Info().Str("file", opts.File).Msg("starting application")
		},
		ApplicationRunning: func(pid uint32) {
			logger.Info().Uint32("pid", pid).Msg("application running")
		},
		Finished: func() {
			logger.Info().Dur("elapsed", time.Since(started)).Msg("finished")
		},
		StateChanged: func(s launcher.Snapshot) {
			board.Publish(s)
		},
	}
	l, err := launcher.New(cfg, conn, logger, hooks)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.Session.WithDefaults().PollInterval)
	defer ticker.Stop()
	return l.Run(ctx, conn.Replies(), ticker.C)
}
