package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/trklaunch/internal/config"
	"github.com/danmuck/trklaunch/internal/transport"
)

func TestLoadConfigExampleFile(t *testing.T) {
	opts, err := loadConfig("trklaunch.example.toml", defaultOptions())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if opts.Port != "tcp://127.0.0.1:6789" {
		t.Fatalf("unexpected port: %q", opts.Port)
	}
	if opts.Framing != transport.FramingAuto {
		t.Fatalf("unexpected framing: %q", opts.Framing)
	}
	if opts.File != `C:\sys\bin\hello.exe` {
		t.Fatalf("unexpected file: %q", opts.File)
	}
	if opts.CopySource != "build/hello.sis" || opts.CopyDestination != `C:\Data\hello.sis` {
		t.Fatalf("unexpected copy pair: %q -> %q", opts.CopySource, opts.CopyDestination)
	}
	if opts.PollInterval != 50*time.Millisecond {
		t.Fatalf("unexpected poll interval: %v", opts.PollInterval)
	}
	if opts.ProtocolConstraint != ">= 3.0, < 5" {
		t.Fatalf("unexpected constraint: %q", opts.ProtocolConstraint)
	}
	if opts.StatusAddr != "127.0.0.1:7070" || !opts.Watch || opts.Verbose != 1 {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestLoadConfigKeepsDefaultsForMissingKeys(t *testing.T) {
	path := writeConfig(t, `port = "/dev/ttyUSB0"`)
	opts, err := loadConfig(path, defaultOptions())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if opts.Port != "/dev/ttyUSB0" {
		t.Fatalf("unexpected port: %q", opts.Port)
	}
	if opts.BaudRate != transport.DefaultBaudRate || opts.Framing != transport.FramingAuto {
		t.Fatalf("defaults lost: %+v", opts)
	}
	if opts.PollInterval != 100*time.Millisecond {
		t.Fatalf("unexpected poll interval: %v", opts.PollInterval)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"framing":  `framing = "slip"`,
		"duration": `poll_interval = "soon"`,
		"syntax":   `port = `,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := loadConfig(writeConfig(t, body), defaultOptions()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseArgsFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
port = "tcp://10.0.0.2:6789"
framing = "serial"
poll_interval = "200ms"
`)
	opts, err := parseArgs([]string{"-config", path, "-framing", "raw", "-v", "2"}, io.Discard)
	if err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if opts.Port != "tcp://10.0.0.2:6789" {
		t.Fatalf("file value lost: %q", opts.Port)
	}
	if opts.Framing != transport.FramingRaw {
		t.Fatalf("flag did not override framing: %q", opts.Framing)
	}
	if opts.PollInterval != 200*time.Millisecond {
		t.Fatalf("unset flag clobbered file value: %v", opts.PollInterval)
	}
	if opts.Verbose != 2 {
		t.Fatalf("unexpected verbosity %d", opts.Verbose)
	}
}

func TestParseArgsValidation(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want error
	}{
		{name: "no port", args: nil, want: errNoPort},
		{name: "half copy", args: []string{"-port", "/dev/ttyS0", "-copy-src", "a.sis"}, want: errHalfCopy},
		{name: "watch without copy", args: []string{"-port", "/dev/ttyS0", "-watch"}, want: errWatchNoCopy},
		{name: "zero poll", args: []string{"-port", "/dev/ttyS0", "-poll", "0s"}, want: errBadPollValue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseArgs(tc.args, io.Discard); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if _, err := parseArgs([]string{"-port", "x", "-framing", "slip"}, io.Discard); !errors.Is(err, transport.ErrUnknownFraming) {
		t.Fatalf("expected ErrUnknownFraming, got %v", err)
	}
}

func TestParseArgsWriteConfigSkipsValidation(t *testing.T) {
	opts, err := parseArgs([]string{"-write-config", "out.toml", "-force"}, io.Discard)
	if err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if opts.WriteConfig != "out.toml" || !opts.Force {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestStarterTemplateLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trklaunch.toml")
	if err := config.WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	opts, err := loadConfig(path, defaultOptions())
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if err := opts.validate(); err != nil {
		t.Fatalf("template does not validate: %v", err)
	}
}

func TestLauncherConfigMapping(t *testing.T) {
	opts := defaultOptions()
	opts.File = "app.exe"
	opts.CopySource = "app.sis"
	opts.CopyDestination = `C:\app.sis`
	opts.Install = `C:\app.sis`
	opts.PollInterval = 25 * time.Millisecond

	cfg := opts.launcherConfig()
	if cfg.Executable != "app.exe" || cfg.CopySource != "app.sis" || cfg.CopyDestination != `C:\app.sis` || cfg.InstallPackage != `C:\app.sis` {
		t.Fatalf("unexpected launcher config: %+v", cfg)
	}
	if cfg.Session.PollInterval != 25*time.Millisecond {
		t.Fatalf("unexpected poll interval: %v", cfg.Session.PollInterval)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trklaunch.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
