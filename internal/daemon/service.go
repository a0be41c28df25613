package daemon

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// ServiceLabel names the per-user service on both platforms
const ServiceLabel = "com.muse.daemon"

const plistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.BinaryPath}}</string>
		<string>daemon</string>{{if .ConfigPath}}
		<string>--config</string>
		<string>{{.ConfigPath}}</string>{{end}}
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<dict>
		<key>SuccessfulExit</key>
		<false/>
	</dict>
	<key>WorkingDirectory</key>
	<string>{{.WorkDir}}</string>
	<key>EnvironmentVariables</key>
	<dict>
		<key>PATH</key>
		<string>/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin</string>
	</dict>
</dict>
</plist>
`

const systemdTemplate = `[Unit]
Description=muse audio daemon
After=sound.target

[Service]
Type=simple
ExecStart={{.BinaryPath}} daemon{{if .ConfigPath}} --config {{.ConfigPath}}{{end}}
WorkingDirectory={{.WorkDir}}
Restart=on-failure
RestartSec=2

[Install]
WantedBy=default.target
`

// ServiceConfig holds the values substituted into a service file
type ServiceConfig struct {
	Label      string
	BinaryPath string
	ConfigPath string
	WorkDir    string
}

// GenerateServiceFile renders the launchd plist (darwin) or systemd user unit
// (everything else) for goos.
func GenerateServiceFile(goos string, config ServiceConfig) (string, error) {
	if config.Label == "" {
		config.Label = ServiceLabel
	}

	text := systemdTemplate
	if goos == "darwin" {
		text = plistTemplate
	}

	tmpl, err := template.New("service").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse service template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return "", fmt.Errorf("failed to execute service template: %w", err)
	}

	return buf.String(), nil
}

// ServicePath returns where the service file for goos is installed
func ServicePath(goos string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	if goos == "darwin" {
		return filepath.Join(home, "Library", "LaunchAgents", ServiceLabel+".plist"), nil
	}
	return filepath.Join(home, ".config", "systemd", "user", "muse.service"), nil
}
