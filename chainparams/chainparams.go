// Package chainparams holds the per-chain constants the indexer needs:
// halving/difficulty schedule, the height at which inscriptions and runes
// become indexable, and the jubilee height at which cursed numbering stops.
package chainparams

import "fmt"

// Chain selects which Bitcoin-family network the indexer is tracking.
type Chain int

const (
	Mainnet Chain = iota
	Testnet
	Signet
	Regtest
	Testnet4
)

// Consensus-wide constants, independent of chain.
const (
	SubsidyHalvingInterval = 210_000
	DifficultyChangeInterval = 2_016
	CycleEpochs              = 6
	CoinValue                = 100_000_000
	Supply                   = 2_099_999_997_690_000
)

func (c Chain) String() string {
	switch c {
	case Mainnet:
		return "mainnet"
	case Testnet:
		return "testnet"
	case Signet:
		return "signet"
	case Regtest:
		return "regtest"
	case Testnet4:
		return "testnet4"
	default:
		return fmt.Sprintf("chain(%d)", int(c))
	}
}

// Parse accepts the canonical lowercase chain names used in config files.
func Parse(s string) (Chain, error) {
	switch s {
	case "mainnet":
		return Mainnet, nil
	case "testnet":
		return Testnet, nil
	case "signet":
		return Signet, nil
	case "regtest":
		return Regtest, nil
	case "testnet4":
		return Testnet4, nil
	default:
		return 0, fmt.Errorf("invalid chain %q", s)
	}
}

// FirstInscriptionHeight is the height at which envelope scanning begins.
func (c Chain) FirstInscriptionHeight() uint32 {
	switch c {
	case Mainnet:
		return 767430
	case Signet:
		return 112402
	case Testnet:
		return 2413343
	case Regtest, Testnet4:
		return 0
	default:
		return 0
	}
}

// FirstRuneHeight is the height at which runestones become indexable.
func (c Chain) FirstRuneHeight() uint32 {
	var epochs uint32
	switch c {
	case Mainnet:
		epochs = 4
	case Testnet:
		epochs = 12
	case Signet, Regtest, Testnet4:
		epochs = 0
	}
	return SubsidyHalvingInterval * epochs
}

// JubileeHeight is the height at which curse conditions stop applying.
func (c Chain) JubileeHeight() uint32 {
	switch c {
	case Mainnet:
		return 824544
	case Regtest:
		return 110
	case Signet:
		return 175392
	case Testnet:
		return 2544192
	case Testnet4:
		return 0
	default:
		return 0
	}
}

// DefaultRPCPort is the node's default JSON-RPC port for this chain.
func (c Chain) DefaultRPCPort() uint16 {
	switch c {
	case Mainnet:
		return 8332
	case Regtest:
		return 18443
	case Signet:
		return 38332
	case Testnet:
		return 18332
	case Testnet4:
		return 28322
	default:
		return 8332
	}
}

// DataDirSuffix is the subdirectory a node-style layout nests non-mainnet
// chain data under (mainnet uses the data dir root).
func (c Chain) DataDirSuffix() string {
	switch c {
	case Testnet:
		return "testnet3"
	case Signet:
		return "signet"
	case Regtest:
		return "regtest"
	case Testnet4:
		return "testnet4"
	default:
		return ""
	}
}
