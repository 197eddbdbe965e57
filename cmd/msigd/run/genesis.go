// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	stdjson "encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/luxfi/ids"

	"github.com/luxfi/msig/utils/json"
)

var errNoGenesis = errors.New("genesis file is required")

// Genesis is the JSON file describing one wallet deployment: who controls
// it, where it lives, and what it starts out holding.
type Genesis struct {
	NetworkID json.Uint32 `json:"networkID"`
	ChainID   string      `json:"chainID"`
	FeeToken  string      `json:"feeToken"`
	Admin     string      `json:"admin"`

	Threshold json.Uint32 `json:"threshold"`
	Owners    []string    `json:"owners"`

	AllowedChains []string `json:"allowedChains"`

	NativeBalance json.Uint64            `json:"nativeBalance"`
	TokenBalances map[string]json.Uint64 `json:"tokenBalances"`
}

func ParseGenesis(path string) (*Genesis, error) {
	if path == "" {
		return nil, errNoGenesis
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't read genesis: %w", err)
	}
	genesis := &Genesis{}
	if err := stdjson.Unmarshal(bytes, genesis); err != nil {
		return nil, fmt.Errorf("couldn't parse genesis: %w", err)
	}
	return genesis, nil
}

func (g *Genesis) ownerAddrs() ([]ids.ShortID, error) {
	addrs := make([]ids.ShortID, len(g.Owners))
	for i, addrStr := range g.Owners {
		addr, err := ids.ShortFromString(addrStr)
		if err != nil {
			return nil, fmt.Errorf("couldn't parse owner %q: %w", addrStr, err)
		}
		addrs[i] = addr
	}
	return addrs, nil
}
