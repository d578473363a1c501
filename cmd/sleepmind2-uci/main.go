// Command sleepmind2-uci runs the engine as a UCI protocol process,
// reading commands from stdin and writing replies to stdout.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/sebhofmann/sleepmind2/internal/config"
	"github.com/sebhofmann/sleepmind2/internal/engine"
	"github.com/sebhofmann/sleepmind2/internal/selfplay"
	"github.com/sebhofmann/sleepmind2/internal/uci"
)

// defaultNet is the standard NNUE weights filename looked up in a handful of
// conventional locations at startup; "setoption name EvalFile" overrides it.
const defaultNet = "sleepmind2.nnue"

var (
	configPath   = flag.String("config", "", "TOML config file path (defaults + search params)")
	selfplayFlag = flag.String("selfplay", "", "record (fen, score) training samples to this JSONL file")
)

func main() {
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("component", "main").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	eng := engine.NewEngine(cfg.HashMB)
	eng.SetLogger(log)
	eng.SetParams(cfg.SearchParams())

	nnuePath := cfg.NNUEFile
	if nnuePath == "" {
		nnuePath = findDefaultNNUE()
	}
	if nnuePath != "" {
		if err := eng.LoadNNUE(nnuePath); err != nil {
			log.Warn().Err(err).Msg("NNUE not loaded, using classical evaluation")
		} else {
			eng.SetUseNNUE(true)
		}
	}

	selfplayPath := *selfplayFlag
	if selfplayPath == "" {
		selfplayPath = cfg.SelfPlay
	}
	if selfplayPath != "" {
		rec, err := selfplay.NewRecorder(selfplayPath)
		if err != nil {
			log.Warn().Err(err).Str("path", selfplayPath).Msg("failed to open self-play recorder")
		} else {
			defer rec.Close()
			eng.OnSearchComplete = func(fen string, scoreCP int) {
				if err := rec.Record(fen, scoreCP); err != nil {
					log.Warn().Err(err).Msg("self-play recorder write failed")
				}
			}
		}
	}

	protocol := uci.New(eng)
	protocol.Run()
}

// findDefaultNNUE looks for the standard NNUE weights file in a handful of
// conventional locations, returning "" if none is found (classical
// evaluation is the fallback per spec.md §7's resource-error handling).
func findDefaultNNUE() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	candidates := []string{
		filepath.Join(home, ".sleepmind2", defaultNet),
		filepath.Join(".", "nnue", defaultNet),
		filepath.Join(".", defaultNet),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
