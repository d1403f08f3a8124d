package main

import (
	"flag"
	"fmt"

	"github.com/danmuck/wsdpi/internal/config"
	"github.com/danmuck/wsdpi/internal/logging"
	"github.com/rs/zerolog/log"
)

func defaultPath(kind string) (string, error) {
	switch kind {
	case "wsdpi":
		return "cmd/wsdpi/config.toml", nil
	case "replay":
		return "cmd/wsdpi/replay.config.toml", nil
	default:
		return "", fmt.Errorf("unknown kind: %s", kind)
	}
}

func main() {
	kind := flag.String("kind", "wsdpi", "config kind: wsdpi|replay")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	logging.ConfigureRuntime()

	if *validate {
		path := *input
		if path == "" {
			p, err := defaultPath(*kind)
			if err != nil {
				log.Fatal().Err(err).Msg("configgen")
			}
			path = p
		}
		if _, err := config.Load(path); err != nil {
			for _, problem := range config.Problems(err) {
				log.Error().Err(problem).Str("path", path).Msg("config problem")
			}
			log.Fatal().Str("path", path).Msg("config invalid")
		}
		log.Info().Str("kind", *kind).Str("path", path).Msg("validated config")
		return
	}

	target := *output
	if target == "" {
		p, err := defaultPath(*kind)
		if err != nil {
			log.Fatal().Err(err).Msg("configgen")
		}
		target = p
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal().Err(err).Msg("write template")
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("wrote config template")
}
