package config

import (
	"math/big"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/pairs"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PairConfig is the file form of a bridge pair. Amounts are whole-token
// decimal strings scaled by Decimals, the precision of the source token.
type PairConfig struct {
	Source                string `yaml:"source"`
	Destination           string `yaml:"destination"`
	ConversionRate        string `yaml:"conversion_rate"`
	FeePercent            string `yaml:"fee_percent"`
	MinAmount             string `yaml:"min_amount"`
	MaxAmount             string `yaml:"max_amount"`
	Decimals              int32  `yaml:"decimals"`
	RequiredConfirmations uint64 `yaml:"required_confirmations"`
}

// PairTable returns the configured pairs, or the built-in table when the
// pairs section is empty.
func (c *Config) PairTable() ([]types.BridgePairConfig, error) {
	if len(c.Pairs) == 0 {
		return pairs.DefaultTable(), nil
	}

	out := make([]types.BridgePairConfig, 0, len(c.Pairs))
	for i, p := range c.Pairs {
		pair, err := p.toPair()
		if err != nil {
			return nil, errors.Wrapf(err, "pairs[%d]", i)
		}
		if err := pairs.Validate(pair); err != nil {
			return nil, err
		}
		out = append(out, pair)
	}
	return out, nil
}

func (p PairConfig) toPair() (types.BridgePairConfig, error) {
	var pair types.BridgePairConfig

	source, ok := types.ParseNetwork(p.Source)
	if !ok {
		return pair, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "unknown source network %q", p.Source)
	}
	destination, ok := types.ParseNetwork(p.Destination)
	if !ok {
		return pair, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "unknown destination network %q", p.Destination)
	}
	if p.Decimals < 0 || p.Decimals > 36 {
		return pair, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "decimals %d outside 0-36", p.Decimals)
	}

	rate, err := parseDecimal("conversion_rate", p.ConversionRate)
	if err != nil {
		return pair, err
	}
	fee, err := parseDecimal("fee_percent", p.FeePercent)
	if err != nil {
		return pair, err
	}
	minAmount, err := minorUnits("min_amount", p.MinAmount, p.Decimals)
	if err != nil {
		return pair, err
	}
	maxAmount, err := minorUnits("max_amount", p.MaxAmount, p.Decimals)
	if err != nil {
		return pair, err
	}

	return types.BridgePairConfig{
		SourceNetwork:         source,
		DestinationNetwork:    destination,
		ConversionRate:        rate,
		BridgeFeePercent:      fee,
		MinTransactionAmount:  minAmount,
		MaxTransactionAmount:  maxAmount,
		RequiredConfirmations: p.RequiredConfirmations,
	}, nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "%s %q: %v", field, s, err)
	}
	return d, nil
}

// minorUnits converts a whole-token amount to minor units. Amounts finer than
// the token precision are rejected.
func minorUnits(field, s string, decimals int32) (*big.Int, error) {
	d, err := parseDecimal(field, s)
	if err != nil {
		return nil, err
	}

	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "%s %s has more than %d decimals", field, s, decimals)
	}
	return scaled.BigInt(), nil
}
