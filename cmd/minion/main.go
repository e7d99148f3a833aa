// Command minion runs a single Sphinx mix node: it loads a TOML
// configuration, constructs the supervisor, and blocks until an
// interrupt or terminate signal triggers an orderly shutdown.
//
// Grounded on the katzenpost server binaries' CLI contract (spec §6
// CLI): a mandatory -f/-config-file flag, a nonzero exit with a
// stderr message on any load or startup failure.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/katzenpost/katzenpost/minion/config"
	"github.com/katzenpost/katzenpost/minion/supervisor"
)

func main() {
	configFile := flag.String("f", "", "path to the node's TOML configuration file")
	flag.StringVar(configFile, "config-file", "", "path to the node's TOML configuration file")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "minion: -f/-config-file is required")
		os.Exit(1)
	}

	raw, err := os.ReadFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "minion: failed to read config file: %s\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "minion: failed to load config: %s\n", err)
		os.Exit(1)
	}

	deps, err := newProductionDeps(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "minion: failed to initialize collaborators: %s\n", err)
		os.Exit(1)
	}

	sv, err := supervisor.New(cfg, deps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "minion: failed to start: %s\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	sv.Halt()
}
