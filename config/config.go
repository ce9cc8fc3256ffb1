// Package config holds the indexer's settings as a single struct, with
// defaults and environment-variable overrides layered the way
// chainparams-aware daemons in this codebase do it.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/ordsuite/ordinex/chainparams"
)

// Config is the indexer's full set of recognized options. No package
// holds a hidden mutable global; every component that needs settings
// takes a Config by value or pointer.
type Config struct {
	Chain   string `envconfig:"CHAIN" default:"mainnet"`
	DataDir string `envconfig:"DATA_DIR"`

	IndexSats        bool `envconfig:"INDEX_SATS"`
	IndexRunes       bool `envconfig:"INDEX_RUNES"`
	IndexSpentSats   bool `envconfig:"INDEX_SPENT_SATS"`
	IndexTxs         bool `envconfig:"INDEX_TRANSACTIONS"`
	NoIndexInscripts bool `envconfig:"NO_INDEX_INSCRIPTIONS"`

	CommitInterval    uint32 `envconfig:"COMMIT_INTERVAL" default:"5000"`
	IndexCacheSize    uint64 `envconfig:"INDEX_CACHE_SIZE"`
	FirstInscription  *uint32 `envconfig:"FIRST_INSCRIPTION_HEIGHT"`
	FirstRune         *uint32 `envconfig:"FIRST_RUNE_HEIGHT"`
	HeightLimit       *uint32 `envconfig:"HEIGHT_LIMIT"`
	Hidden            []string `envconfig:"HIDDEN"`

	RPCURL      string `envconfig:"RPC_URL"`
	RPCCookie   string `envconfig:"RPC_COOKIE_FILE"`
	RPCUser     string `envconfig:"RPC_USER"`
	RPCPassword string `envconfig:"RPC_PASSWORD"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Default returns a Config with the settings documented as defaults:
// mainnet, every indexing toggle off except none explicitly required,
// a 5000-block commit interval, and an index cache sized to a quarter
// of system memory.
func Default() Config {
	return Config{
		Chain:          "mainnet",
		DataDir:        defaultDataDir(),
		CommitInterval: 5000,
		IndexCacheSize: defaultCacheSize(),
		LogLevel:       "info",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".ordinex"
	}
	return home + "/.ordinex"
}

// defaultCacheSize approximates a quarter of system memory on platforms
// where that's cheap to read; elsewhere it falls back to a conservative
// fixed size rather than guessing.
func defaultCacheSize() uint64 {
	if runtime.GOOS == "linux" {
		if b, err := os.ReadFile("/proc/meminfo"); err == nil {
			for _, line := range strings.Split(string(b), "\n") {
				if strings.HasPrefix(line, "MemTotal:") {
					fields := strings.Fields(line)
					if len(fields) >= 2 {
						var kb uint64
						if _, err := fmt.Sscanf(fields[1], "%d", &kb); err == nil {
							return kb * 1024 / 4
						}
					}
				}
			}
		}
	}
	return 256 << 20
}

// Load starts from Default and applies ORDINEX_-prefixed environment
// variable overrides, then validates the result.
func Load() (Config, error) {
	cfg := Default()
	if err := envconfig.Process("ordinex", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks structural invariants Load can't express through
// envconfig tags alone: a resolvable chain name, a non-empty data
// directory, and at most one RPC auth method supplied.
func Validate(cfg Config) error {
	if _, err := chainparams.Parse(cfg.Chain); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if cfg.RPCCookie != "" && (cfg.RPCUser != "" || cfg.RPCPassword != "") {
		return fmt.Errorf("config: rpc auth must be cookie file or user/password, not both")
	}
	if cfg.CommitInterval == 0 {
		return fmt.Errorf("config: commit_interval must be > 0")
	}
	return nil
}

// ResolvedChain parses Chain, assuming Validate has already succeeded.
func (c Config) ResolvedChain() chainparams.Chain {
	chain, _ := chainparams.Parse(c.Chain)
	return chain
}

// FirstInscriptionHeight resolves the configured override or the
// chain's default.
func (c Config) FirstInscriptionHeight() uint32 {
	if c.FirstInscription != nil {
		return *c.FirstInscription
	}
	return c.ResolvedChain().FirstInscriptionHeight()
}

// FirstRuneHeight resolves the configured override or the chain's
// default.
func (c Config) FirstRuneHeight() uint32 {
	if c.FirstRune != nil {
		return *c.FirstRune
	}
	return c.ResolvedChain().FirstRuneHeight()
}

// HiddenSet turns the configured hidden-inscription-id list into a
// lookup set.
func (c Config) HiddenSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Hidden))
	for _, id := range c.Hidden {
		set[id] = struct{}{}
	}
	return set
}
