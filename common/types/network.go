package types

import (
	"sort"
	"strings"
)

// Network identifies a blockchain network the bridge can move value across.
type Network string

const (
	NetworkEthereum Network = "ETHEREUM"
	NetworkBSC      Network = "BSC"
	NetworkSolana   Network = "SOLANA"
)

// networkChainTypes maps every supported network to its chain family.
// Adding a network starts here.
var networkChainTypes = map[Network]ChainType{
	NetworkEthereum: EVM,
	NetworkBSC:      EVM,
	NetworkSolana:   SOLANA,
}

func (n Network) String() string {
	return string(n)
}

// Valid reports whether n is one of the supported networks.
func (n Network) Valid() bool {
	_, ok := networkChainTypes[n]
	return ok
}

// ChainType returns the chain family of the network, UNKNOWN for unsupported networks.
func (n Network) ChainType() ChainType {
	if t, ok := networkChainTypes[n]; ok {
		return t
	}
	return UNKNOWN
}

// ParseNetwork converts a case-insensitive name to a supported Network.
func ParseNetwork(s string) (Network, bool) {
	n := Network(strings.ToUpper(strings.TrimSpace(s)))
	return n, n.Valid()
}

// Networks returns all supported networks in lexical order.
func Networks() []Network {
	out := make([]Network, 0, len(networkChainTypes))
	for n := range networkChainTypes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
