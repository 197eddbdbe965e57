// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"github.com/spf13/pflag"
)

const (
	GenesisKey  = "genesis"
	HTTPAddrKey = "http-addr"
	DBDirKey    = "db-dir"
	FlatFeeKey  = "flat-fee"
)

func AddFlags(flags *pflag.FlagSet) {
	flags.String(GenesisKey, "", "Path to the wallet genesis file (required)")
	flags.String(HTTPAddrKey, ":9650", "Address the JSON-RPC server listens on")
	flags.String(DBDirKey, "", "Directory for the wallet database; empty runs in memory")
	flags.Uint64(FlatFeeKey, 1, "Delivery fee quoted by the stub bridge router")
}

type Config struct {
	GenesisPath string
	HTTPAddr    string
	DBDir       string
	FlatFee     uint64
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	genesisPath, err := flags.GetString(GenesisKey)
	if err != nil {
		return nil, err
	}

	httpAddr, err := flags.GetString(HTTPAddrKey)
	if err != nil {
		return nil, err
	}

	dbDir, err := flags.GetString(DBDirKey)
	if err != nil {
		return nil, err
	}

	flatFee, err := flags.GetUint64(FlatFeeKey)
	if err != nil {
		return nil, err
	}

	return &Config{
		GenesisPath: genesisPath,
		HTTPAddr:    httpAddr,
		DBDir:       dbDir,
		FlatFee:     flatFee,
	}, nil
}
