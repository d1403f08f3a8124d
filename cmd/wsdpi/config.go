package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/wsdpi/internal/config"
)

// loadServiceConfig overlays the keys present in path on config.Default. A
// missing file yields the defaults.
func loadServiceConfig(path string) (config.Config, error) {
	cfg := config.Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw config.Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return config.Config{}, fmt.Errorf("load wsdpi config: %w", err)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}

	if meta.IsDefined("attempt_budget") {
		cfg.AttemptBudget = raw.AttemptBudget
	}

	if meta.IsDefined("defer_short_segments") {
		cfg.DeferShortSegments = raw.DeferShortSegments
	}

	if meta.IsDefined("max_flows") {
		cfg.MaxFlows = raw.MaxFlows
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("disabled_dissectors") {
		cfg.DisabledDissectors = normalizeList(raw.DisabledDissectors)
	}

	if meta.IsDefined("guess") {
		cfg.Guesses = raw.Guesses
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config.Config{}, fmt.Errorf("load wsdpi config: unknown key %q", undecoded[0].String())
	}

	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
