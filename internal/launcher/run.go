package launcher

import (
	"context"
	"time"

	"github.com/danmuck/trklaunch/internal/protocol/frame"
)

// Run starts the workflow and processes ticks and replies on the calling
// goroutine until the workflow finishes. On cancellation a running process is
// terminated first, bounded by Config.TerminateGrace, and ctx.Err() is
// returned either way.
func (l *Launcher) Run(ctx context.Context, replies <-chan frame.Reply, ticks <-chan time.Time) error {
	l.Start()
	l.publish()

	done := ctx.Done()
	canceled := false
	var grace <-chan time.Time
	for !l.finished {
		select {
		case <-done:
			if l.device.PID == 0 || l.phase == PhaseTerminating {
				return ctx.Err()
			}
			l.log.Info().Uint32("pid", l.device.PID).Msg("terminating on cancel")
			l.Terminate()
			canceled = true
			done = nil
			grace = time.After(l.cfg.TerminateGrace)
		case <-grace:
			l.log.Warn().Msg("device did not confirm terminate")
			return ctx.Err()
		case <-ticks:
			l.Pump()
		case r, ok := <-replies:
			if !ok {
				return ErrTransportClosed
			}
			l.HandleReply(r)
		}
		l.publish()
	}
	if canceled {
		return ctx.Err()
	}
	return nil
}
