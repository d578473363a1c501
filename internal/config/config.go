// Package config loads engine defaults from an optional TOML file, applied
// before UCI setoption overrides take effect.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/sebhofmann/sleepmind2/internal/engine"
)

// EngineConfig holds everything the engine needs at startup: TT size, the
// NNUE weights path, the logging level, and every search knob spec.md §6
// exposes as a UCI option. A TOML file overrides these defaults; UCI
// setoption then overrides the TOML file, matching SPEC_FULL.md §3's layering
// order (defaults -> TOML -> setoption).
type EngineConfig struct {
	HashMB   int    `toml:"hash_mb"`
	NNUEFile string `toml:"nnue_file"`
	LogLevel string `toml:"log_level"`
	SelfPlay string `toml:"selfplay"`

	UseLMR          bool `toml:"use_lmr"`
	UseNullMove     bool `toml:"use_null_move"`
	UseFutility     bool `toml:"use_futility"`
	UseRFP          bool `toml:"use_rfp"`
	UseDeltaPruning bool `toml:"use_delta_pruning"`
	UseAspiration   bool `toml:"use_aspiration"`

	LMRFullDepthMoves int `toml:"lmr_full_depth_moves"`
	LMRReductionLimit int `toml:"lmr_reduction_limit"`
	NullMoveReduction int `toml:"null_move_reduction"`
	NullMoveMinDepth  int `toml:"null_move_min_depth"`
	FutilityMargin    int `toml:"futility_margin"`
	FutilityMarginD2  int `toml:"futility_margin_d2"`
	FutilityMarginD3  int `toml:"futility_margin_d3"`
	RFPMargin         int `toml:"rfp_margin"`
	RFPMaxDepth       int `toml:"rfp_max_depth"`
	DeltaMargin       int `toml:"delta_margin"`
	AspirationWindow  int `toml:"aspiration_window"`
}

// Default returns the built-in configuration: 64MB hash, no NNUE file (falls
// back to classical evaluation), info-level logging, and the teacher's
// hand-tuned search parameters.
func Default() EngineConfig {
	p := engine.DefaultSearchParams()
	return EngineConfig{
		HashMB:   64,
		LogLevel: "info",

		UseLMR:          p.UseLMR,
		UseNullMove:     p.UseNullMove,
		UseFutility:     p.UseFutility,
		UseRFP:          p.UseRFP,
		UseDeltaPruning: p.UseDeltaPruning,
		UseAspiration:   p.UseAspiration,

		LMRFullDepthMoves: p.LMRFullDepthMoves,
		LMRReductionLimit: p.LMRReductionLimit,
		NullMoveReduction: p.NullMoveReduction,
		NullMoveMinDepth:  p.NullMoveMinDepth,
		FutilityMargin:    p.FutilityMargin,
		FutilityMarginD2:  p.FutilityMarginD2,
		FutilityMarginD3:  p.FutilityMarginD3,
		RFPMargin:         p.RFPMargin,
		RFPMaxDepth:       p.RFPMaxDepth,
		DeltaMargin:       p.DeltaMargin,
		AspirationWindow:  p.AspirationWindow,
	}
}

// Load reads path as TOML over the built-in defaults. A missing or empty
// path is not an error: it just returns the defaults unchanged.
func Load(path string) (EngineConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return cfg, nil
}

// SearchParams projects the search-tuning fields of cfg into an
// engine.SearchParams, ready for Engine.SetParams.
func (cfg EngineConfig) SearchParams() engine.SearchParams {
	return engine.SearchParams{
		UseLMR:          cfg.UseLMR,
		UseNullMove:     cfg.UseNullMove,
		UseFutility:     cfg.UseFutility,
		UseRFP:          cfg.UseRFP,
		UseDeltaPruning: cfg.UseDeltaPruning,
		UseAspiration:   cfg.UseAspiration,

		LMRFullDepthMoves: cfg.LMRFullDepthMoves,
		LMRReductionLimit: cfg.LMRReductionLimit,
		NullMoveReduction: cfg.NullMoveReduction,
		NullMoveMinDepth:  cfg.NullMoveMinDepth,
		FutilityMargin:    cfg.FutilityMargin,
		FutilityMarginD2:  cfg.FutilityMarginD2,
		FutilityMarginD3:  cfg.FutilityMarginD3,
		RFPMargin:         cfg.RFPMargin,
		RFPMaxDepth:       cfg.RFPMaxDepth,
		DeltaMargin:       cfg.DeltaMargin,
		AspirationWindow:  cfg.AspirationWindow,
	}
}
