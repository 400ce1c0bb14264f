// Package config holds the starter configuration file written by
// trklaunch -write-config.
package config

import (
	"errors"
	"fmt"
	"os"
)

var ErrExists = errors.New("config: file already exists")

func Template() string {
	return launchTemplate
}

// WriteTemplate writes the starter config to path. An existing file is kept
// unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	return os.WriteFile(path, []byte(launchTemplate), 0o600)
}

const launchTemplate = `# Device monitor: serial port path, tcp://host:port or unix:///path.
port = "/dev/ttyUSB0"

# auto picks the serial envelope on serial ports and bare frames on sockets.
framing = "auto"
baud_rate = 115200

# Device-side executable to start. Leave empty to only probe the device.
file = ""

# Optional local file pushed to the device before install and start.
copy_src = ""
copy_dst = ""

# Optional device-side package installed before start.
install = ""

verbose = 0
poll_interval = "100ms"
protocol_constraint = ""
status_addr = ""
watch = false
`
