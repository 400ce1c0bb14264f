package launcher

import (
	"os"
	"time"

	"github.com/danmuck/trklaunch/internal/protocol/frame"
	"github.com/danmuck/trklaunch/internal/protocol/session"
)

const DefaultTerminateGrace = 2 * time.Second

// Config selects what the workflow does after the handshake.
type Config struct {
	// Executable is the device-side path of the program to start. Empty runs a
	// connectivity probe only.
	Executable string
	// CopySource and CopyDestination, when both set, push a local file to the
	// device before installing or starting.
	CopySource      string
	CopyDestination string
	// InstallPackage is a device-side package installed before start.
	InstallPackage string

	Framing frame.Mode
	Session session.Config

	// ProtocolConstraint is an optional semver constraint checked against the
	// protocol version the device reports.
	ProtocolConstraint string

	// TerminateGrace bounds how long Run waits for the device to confirm a
	// terminate issued on cancellation.
	TerminateGrace time.Duration

	ReadFile func(name string) ([]byte, error)
	Now      func() time.Time
}

func (c Config) WithDefaults() Config {
	c.Session = c.Session.WithDefaults()
	if c.TerminateGrace <= 0 {
		c.TerminateGrace = DefaultTerminateGrace
	}
	if c.ReadFile == nil {
		c.ReadFile = os.ReadFile
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Hooks observe workflow milestones. All hooks are optional and run on the
// event loop goroutine.
type Hooks struct {
	ApplicationOutput   func(text []byte)
	CopyingStarted      func()
	InstallingStarted   func()
	StartingApplication func()
	ApplicationRunning  func(pid uint32)
	Finished            func()
	StateChanged        func(Snapshot)
}

func mergeHooks(user Hooks) Hooks {
	out := user
	if out.ApplicationOutput == nil {
		out.ApplicationOutput = func([]byte) {}
	}
	if out.CopyingStarted == nil {
		out.CopyingStarted = func() {}
	}
	if out.InstallingStarted == nil {
		out.InstallingStarted = func() {}
	}
	if out.StartingApplication == nil {
		out.StartingApplication = func() {}
	}
	if out.ApplicationRunning == nil {
		out.ApplicationRunning = func(uint32) {}
	}
	if out.Finished == nil {
		out.Finished = func() {}
	}
	if out.StateChanged == nil {
		out.StateChanged = func(Snapshot) {}
	}
	return out
}
