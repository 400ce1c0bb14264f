package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/trklaunch/internal/launcher"
	"github.com/danmuck/trklaunch/internal/protocol/session"
	"github.com/danmuck/trklaunch/internal/transport"
)

var (
	errNoPort       = errors.New("no device port given")
	errHalfCopy     = errors.New("copy_src and copy_dst must be given together")
	errWatchNoCopy  = errors.New("watch needs copy_src")
	errBadPollValue = errors.New("poll_interval must be positive")
)

type options struct {
	ConfigPath         string
	WriteConfig        string
	Force              bool
	Port               string
	Framing            transport.Framing
	BaudRate           int
	File               string
	CopySource         string
	CopyDestination    string
	Install            string
	Verbose            int
	PollInterval       time.Duration
	ProtocolConstraint string
	StatusAddr         string
	Watch              bool
}

type fileConfig struct {
	Port               string `toml:"port"`
	Framing            string `toml:"framing"`
	BaudRate           int    `toml:"baud_rate"`
	File               string `toml:"file"`
	CopySource         string `toml:"copy_src"`
	CopyDestination    string `toml:"copy_dst"`
	Install            string `toml:"install"`
	Verbose            int    `toml:"verbose"`
	PollInterval       string `toml:"poll_interval"`
	ProtocolConstraint string `toml:"protocol_constraint"`
	StatusAddr         string `toml:"status_addr"`
	Watch              bool   `toml:"watch"`
}

func defaultOptions() options {
	return options{
		Framing:      transport.FramingAuto,
		BaudRate:     transport.DefaultBaudRate,
		PollInterval: session.DefaultPollInterval,
	}
}

// loadConfig overlays the keys present in the TOML file at path onto opts.
func loadConfig(path string, opts options) (options, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return options{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("port") {
		opts.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("framing") {
		f, err := transport.ParseFraming(raw.Framing)
		if err != nil {
			return options{}, fmt.Errorf("parse framing: %w", err)
		}
		opts.Framing = f
	}
	if meta.IsDefined("baud_rate") {
		opts.BaudRate = raw.BaudRate
	}
	if meta.IsDefined("file") {
		opts.File = strings.TrimSpace(raw.File)
	}
	if meta.IsDefined("copy_src") {
		opts.CopySource = strings.TrimSpace(raw.CopySource)
	}
	if meta.IsDefined("copy_dst") {
		opts.CopyDestination = strings.TrimSpace(raw.CopyDestination)
	}
	if meta.IsDefined("install") {
		opts.Install = strings.TrimSpace(raw.Install)
	}
	if meta.IsDefined("verbose") {
		opts.Verbose = raw.Verbose
	}
	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return options{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		opts.PollInterval = d
	}
	if meta.IsDefined("protocol_constraint") {
		opts.ProtocolConstraint = strings.TrimSpace(raw.ProtocolConstraint)
	}
	if meta.IsDefined("status_addr") {
		opts.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}
	if meta.IsDefined("watch") {
		opts.Watch = raw.Watch
	}
	return opts, nil
}

// parseArgs resolves defaults, then the optional config file, then flags the
// user set explicitly.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("trklaunch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath    = fs.String("config", "", "TOML config file")
		writeCfg   = fs.String("write-config", "", "write a starter config file to this path and exit")
		force      = fs.Bool("force", false, "let -write-config overwrite an existing file")
		port       = fs.String("port", "", "serial port, tcp://host:port or unix:///path")
		framing    = fs.String("framing", string(transport.FramingAuto), "auto, serial or raw")
		baud       = fs.Int("baud", transport.DefaultBaudRate, "serial baud rate")
		file       = fs.String("file", "", "device-side executable to start; empty probes the device")
		copySrc    = fs.String("copy-src", "", "local file to push to the device")
		copyDst    = fs.String("copy-dst", "", "device-side destination for -copy-src")
		install    = fs.String("install", "", "device-side package to install before start")
		verbose    = fs.Int("v", 0, "verbosity: 1 protocol narrative, 2 wire dumps")
		poll       = fs.Duration("poll", session.DefaultPollInterval, "queue pump interval")
		constraint = fs.String("protocol", "", "semver constraint for the device protocol version")
		statusAddr = fs.String("status-addr", "", "serve /health, /status and /metrics on this address")
		watchFlag  = fs.Bool("watch", false, "rerun when -copy-src changes")
	)
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := defaultOptions()
	if *writeCfg != "" {
		opts.WriteConfig = *writeCfg
		opts.Force = *force
		return opts, nil
	}
	if *cfgPath != "" {
		var err error
		opts, err = loadConfig(*cfgPath, opts)
		if err != nil {
			return options{}, err
		}
		opts.ConfigPath = *cfgPath
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			opts.Port = strings.TrimSpace(*port)
		case "framing":
			fr, err := transport.ParseFraming(*framing)
			if err != nil {
				flagErr = err
				return
			}
			opts.Framing = fr
		case "baud":
			opts.BaudRate = *baud
		case "file":
			opts.File = strings.TrimSpace(*file)
		case "copy-src":
			opts.CopySource = strings.TrimSpace(*copySrc)
		case "copy-dst":
			opts.CopyDestination = strings.TrimSpace(*copyDst)
		case "install":
			opts.Install = strings.TrimSpace(*install)
		case "v":
			opts.Verbose = *verbose
		case "poll":
			opts.PollInterval = *poll
		case "protocol":
			opts.ProtocolConstraint = strings.TrimSpace(*constraint)
		case "status-addr":
			opts.StatusAddr = strings.TrimSpace(*statusAddr)
		case "watch":
			opts.Watch = *watchFlag
		}
	})
	if flagErr != nil {
		return options{}, flagErr
	}
	if err := opts.validate(); err != nil {
		return options{}, err
	}
	return opts, nil
}

func (o options) validate() error {
	if o.Port == "" {
		return errNoPort
	}
	if (o.CopySource == "") != (o.CopyDestination == "") {
		return errHalfCopy
	}
	if o.Watch && o.CopySource == "" {
		return errWatchNoCopy
	}
	if o.PollInterval <= 0 {
		return errBadPollValue
	}
	return nil
}

func (o options) launcherConfig() launcher.Config {
	return launcher.Config{
		Executable:         o.File,
		CopySource:         o.CopySource,
		CopyDestination:    o.CopyDestination,
		InstallPackage:     o.Install,
		ProtocolConstraint: o.ProtocolConstraint,
		Session: session.Config{
			PollInterval: o.PollInterval,
		},
	}
}

func (o options) transportConfig() transport.Config {
	return transport.Config{
		Framing:  o.Framing,
		BaudRate: o.BaudRate,
	}
}
