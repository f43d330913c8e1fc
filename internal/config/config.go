// Package config loads the peer's TOML configuration, following the
// load-with-compiled-in-defaults pattern used by
// Tutu-Engine-tutuengine/internal/daemon/config.go. A peer runs with
// sensible defaults even if no config file is given or found.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Discovery holds the multicast membership parameters of spec.md §6.
type Discovery struct {
	Group             string        `toml:"group"`
	Port              int           `toml:"port"`
	HelloPeriod       time.Duration `toml:"hello_period"`
	GossipEnabled     bool          `toml:"gossip_enabled"`
	GossipStaleness   time.Duration `toml:"gossip_staleness"`
	CleanerThreshold  time.Duration `toml:"cleaner_threshold"`
	CleanerPeriod     time.Duration `toml:"cleaner_period"`
}

// Peer holds the Peer core's own timers.
type Peer struct {
	MatchmakingInitialDelay time.Duration `toml:"matchmaking_initial_delay"`
	MatchmakingPeriod       time.Duration `toml:"matchmaking_period"`
	LivenessPeriod          time.Duration `toml:"liveness_period"`
}

// Status holds the diagnostics HTTP surface's settings.
type Status struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"` // empty means "RPC port + 1"
}

// UI selects which interaction.Adapter implementation the launcher wires.
type UI struct {
	Mode string `toml:"mode"` // "stdin" or "termbox"
}

// Config is the full set of peer-process knobs.
type Config struct {
	Discovery Discovery `toml:"discovery"`
	Peer      Peer      `toml:"peer"`
	Status    Status    `toml:"status"`
	UI        UI        `toml:"ui"`
}

// Default returns the compiled-in defaults from spec.md §4.1/§4.3/§4.4/§6.
func Default() *Config {
	return &Config{
		Discovery: Discovery{
			Group:            "239.0.0.1",
			Port:             50000,
			HelloPeriod:      2 * time.Second,
			GossipEnabled:    true,
			GossipStaleness:  15 * time.Second,
			CleanerThreshold: 60 * time.Second,
			CleanerPeriod:    5 * time.Second,
		},
		Peer: Peer{
			MatchmakingInitialDelay: 1 * time.Second,
			MatchmakingPeriod:       1500 * time.Millisecond,
			LivenessPeriod:          2 * time.Second,
		},
		Status: Status{
			Enabled: true,
			Addr:    "",
		},
		UI: UI{
			Mode: "stdin",
		},
	}
}

// Load reads path and overlays it onto Default(). A missing path is not an
// error: the peer simply runs with defaults. A malformed file is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}
