package config

import (
	"os"
	"strings"
	"time"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/pkg/errors"
)

// NetworkConfig is the file form of types.NetworkConfig. Private keys never
// live in the file: PrivateKeyEnv names the variable holding the key.
type NetworkConfig struct {
	Network             string        `yaml:"network"`
	ChainType           string        `yaml:"chain_type"`
	ChainID             uint64        `yaml:"chain_id"`
	RpcUrl              string        `yaml:"rpc_url"`
	TxType              uint64        `yaml:"tx_type"`
	PrivateKeyEnv       string        `yaml:"private_key_env"`
	TokenAddress        string        `yaml:"token_address"`
	VaultAddress        string        `yaml:"vault_address"`
	Mintable            bool          `yaml:"mintable"`
	DepositLookback     uint64        `yaml:"deposit_lookback"`
	ComputeUnitPrice    uint64        `yaml:"compute_unit_price"`
	CallTimeout         time.Duration `yaml:"call_timeout"`
	RateLimit           float64       `yaml:"rate_limit"`
	RateBurst           int           `yaml:"rate_burst"`
	BreakerFailures     uint32        `yaml:"breaker_failures"`
	BreakerTimeout      time.Duration `yaml:"breaker_timeout"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

func (n NetworkConfig) chainType(network types.Network) types.ChainType {
	if n.ChainType == "" {
		return network.ChainType()
	}
	return types.ParseChainType(strings.ToUpper(n.ChainType))
}

func (n NetworkConfig) validate() (types.Network, error) {
	network, ok := types.ParseNetwork(n.Network)
	if !ok {
		return network, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "unknown network %q", n.Network)
	}

	chainType := n.chainType(network)
	switch {
	case chainType == types.UNKNOWN:
		return network, errors.Wrapf(bridgeerrors.ErrInvalidChainType, "%q for network %s", n.ChainType, network)
	case chainType != types.MOCK && chainType != network.ChainType():
		return network, errors.Wrapf(bridgeerrors.ErrInvalidChainType, "%s cannot serve network %s", chainType, network)
	case chainType != types.MOCK && n.RpcUrl == "":
		return network, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "network %s: rpc_url is required", network)
	case chainType != types.MOCK && n.PrivateKeyEnv == "":
		return network, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "network %s: private_key_env is required", network)
	case n.RateLimit < 0 || n.RateBurst < 0:
		return network, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "network %s: rate limit must not be negative", network)
	}

	return network, nil
}

// NetworkConfigs resolves the networks section into adapter configs, reading
// each private key from the environment.
//
// Returns:
// - []*types.NetworkConfig: one config per configured network.
// - error: an error wrapping ErrInvalidConfig if a named key variable is unset.
func (c *Config) NetworkConfigs() ([]*types.NetworkConfig, error) {
	out := make([]*types.NetworkConfig, 0, len(c.Networks))
	for _, n := range c.Networks {
		network, err := n.validate()
		if err != nil {
			return nil, err
		}

		var privateKey string
		if n.PrivateKeyEnv != "" {
			privateKey = strings.TrimSpace(os.Getenv(n.PrivateKeyEnv))
			if privateKey == "" {
				return nil, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "network %s: %s is not set", network, n.PrivateKeyEnv)
			}
		}

		out = append(out, &types.NetworkConfig{
			Network:             network,
			ChainType:           n.chainType(network),
			ChainID:             n.ChainID,
			RpcUrl:              n.RpcUrl,
			TxType:              n.TxType,
			PrivateKey:          privateKey,
			TokenAddress:        n.TokenAddress,
			VaultAddress:        n.VaultAddress,
			Mintable:            n.Mintable,
			DepositLookback:     n.DepositLookback,
			ComputeUnitPrice:    n.ComputeUnitPrice,
			CallTimeout:         n.CallTimeout,
			RateLimit:           n.RateLimit,
			RateBurst:           n.RateBurst,
			BreakerFailures:     n.BreakerFailures,
			BreakerTimeout:      n.BreakerTimeout,
			HealthCheckInterval: n.HealthCheckInterval,
		})
	}
	return out, nil
}
