package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/danmuck/wsdpi/internal/engine"
	"github.com/danmuck/wsdpi/internal/logging"
	"github.com/danmuck/wsdpi/internal/observability"
	"github.com/danmuck/wsdpi/internal/server"
)

const defaultConfigPath = "cmd/wsdpi/config.toml"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "wsdpi: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fset := flag.NewFlagSet("wsdpi", flag.ContinueOnError)
	configPath := fset.String("config", defaultConfigPath, "path to wsdpi TOML config")
	if err := fset.Parse(args); err != nil {
		return err
	}

	logging.ConfigureRuntime()
	cfg, err := loadServiceConfig(*configPath)
	if err != nil {
		return err
	}
	logging.SetLevel(cfg.LogLevel)

	eng, err := engine.New(cfg, observability.Component("engine"))
	if err != nil {
		return err
	}

	rest := fset.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: wsdpi [-config path] serve | replay <file|-> | classify <hex> [attempt]")
	}

	switch rest[0] {
	case "serve":
		srv := server.New(cfg.Name, cfg.Addr, cfg.CorsOrigins, eng, observability.Component("server"))
		return srv.Run()
	case "replay":
		in := stdin
		if len(rest) > 1 && rest[1] != "-" {
			f, err := os.Open(rest[1])
			if err != nil {
				return fmt.Errorf("open replay input: %w", err)
			}
			defer f.Close()
			in = f
		}
		return replay(eng, in, stdout)
	case "classify":
		if len(rest) < 2 {
			return fmt.Errorf("classify: missing hex payload")
		}
		payload, err := hex.DecodeString(strings.ReplaceAll(rest[1], " ", ""))
		if err != nil {
			return fmt.Errorf("classify: %w", err)
		}
		attempt := 1
		if len(rest) > 2 {
			n, err := strconv.Atoi(rest[2])
			if err != nil {
				return fmt.Errorf("classify: attempt: %w", err)
			}
			attempt = n
		}
		v := eng.Classify(payload, attempt)
		fmt.Fprintln(stdout, v.String())
		return nil
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}
}
