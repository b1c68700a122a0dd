// Package pairs holds the static table of supported bridge pairs.
package pairs

import (
	"math/big"
	"sort"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type pairKey struct {
	source      types.Network
	destination types.Network
}

// Registry is the read-only lookup of bridge pair configs, built once at startup.
type Registry struct {
	pairs map[pairKey]types.BridgePairConfig
}

// NewRegistry validates configs and builds the registry.
//
// Parameters:
// - configs: the pair table; each ordered pair may appear once.
//
// Returns:
// - *Registry: the registry.
// - error: an error wrapping ErrInvalidConfig if a row is invalid or duplicated.
func NewRegistry(configs []types.BridgePairConfig) (*Registry, error) {
	r := &Registry{pairs: make(map[pairKey]types.BridgePairConfig, len(configs))}

	for _, cfg := range configs {
		if err := Validate(cfg); err != nil {
			return nil, err
		}

		key := pairKey{source: cfg.SourceNetwork, destination: cfg.DestinationNetwork}
		if _, exists := r.pairs[key]; exists {
			return nil, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "duplicate pair %s", cfg.Direction())
		}
		r.pairs[key] = cfg.Clone()
	}

	return r, nil
}

// GetConfig returns the config of the ordered pair.
//
// Returns:
// - types.BridgePairConfig: a copy of the config.
// - error: an error wrapping ErrUnsupportedPair if the pair is not configured.
func (r *Registry) GetConfig(source, destination types.Network) (types.BridgePairConfig, error) {
	cfg, ok := r.pairs[pairKey{source: source, destination: destination}]
	if !ok {
		return types.BridgePairConfig{}, errors.Wrapf(bridgeerrors.ErrUnsupportedPair, "%s -> %s", source, destination)
	}
	return cfg.Clone(), nil
}

// Resolve returns the config for a direction.
func (r *Registry) Resolve(direction types.Direction) (types.BridgePairConfig, error) {
	source, destination, ok := direction.Networks()
	if !ok {
		return types.BridgePairConfig{}, errors.Wrapf(bridgeerrors.ErrUnsupportedPair, "unknown direction %q", direction)
	}
	return r.GetConfig(source, destination)
}

// Pairs lists every configured pair ordered by direction.
func (r *Registry) Pairs() []types.BridgePairConfig {
	out := make([]types.BridgePairConfig, 0, len(r.pairs))
	for _, cfg := range r.pairs {
		out = append(out, cfg.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Direction() < out[j].Direction() })
	return out
}

// Validate checks a single pair row.
func Validate(cfg types.BridgePairConfig) error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "pair %s: "+format, append([]interface{}{cfg.Direction()}, args...)...)
	}

	switch {
	case !cfg.SourceNetwork.Valid():
		return invalid("unknown source network %q", cfg.SourceNetwork)
	case !cfg.DestinationNetwork.Valid():
		return invalid("unknown destination network %q", cfg.DestinationNetwork)
	case cfg.SourceNetwork == cfg.DestinationNetwork:
		return invalid("source and destination are the same network")
	case !cfg.ConversionRate.IsPositive():
		return invalid("conversion rate must be positive")
	case cfg.BridgeFeePercent.IsNegative() || cfg.BridgeFeePercent.GreaterThan(hundred):
		return invalid("fee percent %s outside 0-100", cfg.BridgeFeePercent)
	case cfg.MinTransactionAmount == nil || cfg.MaxTransactionAmount == nil:
		return invalid("min and max amounts are required")
	case cfg.MinTransactionAmount.Sign() < 0:
		return invalid("min amount must not be negative")
	case cfg.MaxTransactionAmount.Sign() <= 0:
		return invalid("max amount must be positive")
	case cfg.MinTransactionAmount.Cmp(cfg.MaxTransactionAmount) > 0:
		return invalid("min amount %s exceeds max amount %s", cfg.MinTransactionAmount, cfg.MaxTransactionAmount)
	}

	return nil
}

// tokens returns n whole tokens expressed in minor units of the given decimals.
func tokens(n int64, decimals int64) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil)
	return scale.Mul(scale, big.NewInt(n))
}
