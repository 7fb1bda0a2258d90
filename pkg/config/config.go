// Package config loads engine tuning parameters, adapted from the
// teacher's params.Config (Default + LoadFromEnv via godotenv, consensus
// timing fields replaced with the engine's fee/deadline/checkpoint knobs).
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Fees holds the hard-coded skim rates named in spec.md §4.9 open
// questions. They are not governance-tunable in the original; exposed here
// as config so a devnet can experiment without recompiling.
type Fees struct {
	// MetaDexFeeDivisor: fee = n_could_buy / MetaDexFeeDivisor (2000 == 0.05%).
	MetaDexFeeDivisor int64
	// ContractInstantTradeBps and OracleInstantTradeBps are flat per-side
	// fees on channel-replayed derivatives fills, in basis points.
	ContractInstantTradeBps int64
	OracleInstantTradeBps   int64
}

// Channel holds the channel sub-ledger's timing knobs.
type Channel struct {
	WithdrawalDeadlineBlocks int64
	// DayBlocks bounds how far a single InstantTrade can push a channel's
	// expiry forward, approximating one day at the base chain's block
	// target.
	DayBlocks int64
}

// Persistence holds the snapshot/checkpoint cadence.
type Persistence struct {
	SnapshotEveryBlocks int64
	// Checkpoints maps a block height to its expected consensus hash hex
	// string. Empty by default. Neither the engine nor cmd/ledgerd compares
	// consensus hashes against it, so a mismatch is not detected.
	Checkpoints map[int64]string
	// AllowCheckpointOverride is loaded from the environment; since no
	// checkpoint comparison runs, it has no effect.
	AllowCheckpointOverride bool
}

// Wire holds the transaction decoder's size limits.
type Wire struct {
	MarkerBytes   string
	MaxPackets    int
	PacketSize    int
}

// Margin holds the derivatives margin-sweep thresholds spec.md §4.5.4
// names only by example value (0.8 liquidation, 0.2 warning).
type Margin struct {
	LiquidationFactorBps int64
	WarningFactorBps     int64
}

type Config struct {
	Fees        Fees
	Channel     Channel
	Persistence Persistence
	Wire        Wire
	Margin      Margin
}

func Default() Config {
	return Config{
		Fees: Fees{
			MetaDexFeeDivisor:       2000,
			ContractInstantTradeBps: 50,
			OracleInstantTradeBps:   125,
		},
		Channel: Channel{
			WithdrawalDeadlineBlocks: 7,
			DayBlocks:                144,
		},
		Persistence: Persistence{
			SnapshotEveryBlocks: 1000,
			Checkpoints:         map[int64]string{},
		},
		Wire: Wire{
			MarkerBytes: "tl",
			MaxPackets:  255,
			PacketSize:  31,
		},
		Margin: Margin{
			LiquidationFactorBps: 8000,
			WarningFactorBps:     2000,
		},
	}
}

// LoadFromEnv loads an optional .env file then applies environment
// overrides on top of Default(), mirroring the teacher's
// params.LoadFromEnv precedence (ENV > .env file > defaults).
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("METADEX_FEE_DIVISOR"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Fees.MetaDexFeeDivisor = n
		}
	}
	if v := os.Getenv("CONTRACT_INSTANT_TRADE_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.Fees.ContractInstantTradeBps = n
		}
	}
	if v := os.Getenv("ORACLE_INSTANT_TRADE_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.Fees.OracleInstantTradeBps = n
		}
	}
	if v := os.Getenv("WITHDRAWAL_DEADLINE_BLOCKS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Channel.WithdrawalDeadlineBlocks = n
		}
	}
	if v := os.Getenv("SNAPSHOT_EVERY_BLOCKS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Persistence.SnapshotEveryBlocks = n
		}
	}
	if v := os.Getenv("ALLOW_CHECKPOINT_OVERRIDE"); v != "" {
		cfg.Persistence.AllowCheckpointOverride = v == "true"
	}
	if v := os.Getenv("MARGIN_LIQUIDATION_FACTOR_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Margin.LiquidationFactorBps = n
		}
	}
	if v := os.Getenv("MARGIN_WARNING_FACTOR_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Margin.WarningFactorBps = n
		}
	}
	if v := os.Getenv("WIRE_MARKER_BYTES"); v != "" {
		cfg.Wire.MarkerBytes = v
	}

	return cfg
}
