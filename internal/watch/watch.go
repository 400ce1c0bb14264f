// Package watch waits for a local file to change so a finished launch can be
// repeated against the new build.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const DefaultSettle = 250 * time.Millisecond

var ErrClosed = errors.New("watch: watcher closed")

// Watcher follows one file. The parent directory is watched so that editors
// and build tools that replace the file by rename are still seen.
type Watcher struct {
	w      *fsnotify.Watcher
	target string
	settle time.Duration
	log    zerolog.Logger
}

// New watches path. settle is how long the file must stay quiet after a
// change before Wait returns; zero selects DefaultSettle.
func New(path string, settle time.Duration, logger zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: %s: %w", path, err)
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch: %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		w:      fw,
		target: abs,
		settle: settle,
		log:    logger.With().Str("watch", abs).Logger(),
	}, nil
}

func (w *Watcher) Path() string {
	return w.target
}

// Wait blocks until the watched file was written, created or renamed into
// place and then stayed unchanged for the settle period.
func (w *Watcher) Wait(ctx context.Context) error {
	var settled <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.w.Events:
			if !ok {
				return ErrClosed
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug().Stringer("op", ev.Op).Msg("change")
			settled = time.After(w.settle)
		case err, ok := <-w.w.Errors:
			if !ok {
				return ErrClosed
			}
			w.log.Warn().Err(err).Msg("watch error")
		case <-settled:
			w.log.Info().Msg("file changed")
			return nil
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.target {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) Close() error {
	return w.w.Close()
}
