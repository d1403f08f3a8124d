package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "wsdpi":
		return wsdpiTemplate, nil
	case "replay":
		return replayTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const wsdpiTemplate = `name = "wsdpi"
addr = ":9300"
cors_origins = ["http://localhost:3000"]
attempt_budget = 10
defer_short_segments = false
max_flows = 65536
log_level = "info"
disabled_dissectors = []

[[guess]]
port = 80
protocol = "HTTP"

[[guess]]
port = 8080
protocol = "HTTP"
`

const replayTemplate = `name = "wsdpi-replay"
addr = "127.0.0.1:0"
attempt_budget = 10
defer_short_segments = true
max_flows = 4096
log_level = "debug"
`
