package types

import "strings"

const directionSeparator = "_TO_"

// Direction identifies an ordered (source, destination) network pair,
// encoded as "<SOURCE>_TO_<DESTINATION>", e.g. "ETHEREUM_TO_BSC".
type Direction string

// NewDirection builds the direction for an ordered network pair.
func NewDirection(source, destination Network) Direction {
	return Direction(source.String() + directionSeparator + destination.String())
}

func (d Direction) String() string {
	return string(d)
}

// Networks decodes the direction into its source and destination networks.
// ok is false unless both networks are supported and distinct.
func (d Direction) Networks() (source Network, destination Network, ok bool) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(string(d))), directionSeparator)
	if len(parts) != 2 {
		return "", "", false
	}

	source, destination = Network(parts[0]), Network(parts[1])
	if !source.Valid() || !destination.Valid() || source == destination {
		return "", "", false
	}

	return source, destination, true
}

// Directions returns every direction between supported networks.
func Directions() []Direction {
	networks := Networks()
	out := make([]Direction, 0, len(networks)*(len(networks)-1))
	for _, src := range networks {
		for _, dst := range networks {
			if src != dst {
				out = append(out, NewDirection(src, dst))
			}
		}
	}
	return out
}
