// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package run wires a wallet, its relay and its inbox together from a
// genesis file and serves the msig API over HTTP.
package run

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/msig/api"
	"github.com/luxfi/msig/events"
	"github.com/luxfi/msig/inbox"
	"github.com/luxfi/msig/owners"
	"github.com/luxfi/msig/relay"
	"github.com/luxfi/msig/wallet"
)

var (
	eventsPrefix     = []byte("events")
	vaultPrefix      = []byte("vault")
	allowlistPrefix  = []byte("allowlist")
	walletPrefix     = []byte("wallet")
	quarantinePrefix = []byte("quarantine")

	initializedKey = []byte("initialized")
)

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs a wallet daemon from a genesis file",
		RunE:  runFunc,
	}
	AddFlags(cmd.Flags())
	return cmd
}

func runFunc(cmd *cobra.Command, args []string) error {
	config, err := ParseFlags(cmd.Flags(), args)
	if err != nil {
		return err
	}
	genesis, err := ParseGenesis(config.GenesisPath)
	if err != nil {
		return err
	}

	logger := log.NewLogger("msigd")

	var db database.Database
	if config.DBDir == "" {
		db = memdb.New()
	} else {
		db, err = badgerdb.New(config.DBDir, nil, "msigd", nil)
		if err != nil {
			return fmt.Errorf("couldn't open database: %w", err)
		}
	}
	defer db.Close()

	chainID, err := parseOptionalID(genesis.ChainID)
	if err != nil {
		return fmt.Errorf("couldn't parse chainID: %w", err)
	}
	feeToken, err := parseOptionalID(genesis.FeeToken)
	if err != nil {
		return fmt.Errorf("couldn't parse feeToken: %w", err)
	}
	admin, err := ids.ShortFromString(genesis.Admin)
	if err != nil {
		return fmt.Errorf("couldn't parse admin: %w", err)
	}
	ownerAddrs, err := genesis.ownerAddrs()
	if err != nil {
		return err
	}
	ownerSet, err := owners.New(uint32(genesis.Threshold), ownerAddrs)
	if err != nil {
		return err
	}

	eventLog, err := events.NewLog(prefixdb.New(eventsPrefix, db))
	if err != nil {
		return err
	}

	vault := relay.NewLedgerVault(logger, prefixdb.New(vaultPrefix, db))
	if err := seedVault(db, vault, genesis); err != nil {
		return err
	}

	allowlist, err := relay.NewAllowlist(prefixdb.New(allowlistPrefix, db), admin, logger)
	if err != nil {
		return err
	}
	for _, chainStr := range genesis.AllowedChains {
		chain, err := ids.FromString(chainStr)
		if err != nil {
			return fmt.Errorf("couldn't parse allowed chain %q: %w", chainStr, err)
		}
		if err := allowlist.SetAllowed(chain, true, admin); err != nil {
			return err
		}
	}

	settler := relay.New(relay.Config{
		Log:       logger,
		NetworkID: uint32(genesis.NetworkID),
		ChainID:   chainID,
		FeeToken:  feeToken,
		Router:    newStubRouter(logger, config.FlatFee),
		Vault:     vault,
		Allowlist: allowlist,
	})

	w, err := wallet.New(wallet.Config{
		Log:              logger,
		DB:               prefixdb.New(walletPrefix, db),
		Owners:           ownerSet,
		Settler:          settler,
		Events:           eventLog,
		ChainID:          chainID,
		MetricsNamespace: "msig_wallet",
	})
	if err != nil {
		return err
	}

	dispatcher := inbox.New(inbox.Config{
		Log:              logger,
		Owners:           ownerSet,
		Ledger:           w,
		Vault:            vault,
		Quarantine:       inbox.NewQuarantine(prefixdb.New(quarantinePrefix, db)),
		Events:           eventLog,
		MetricsNamespace: "msig_inbox",
	})

	handler, err := api.NewService(api.Config{
		Log:        logger,
		Wallet:     w,
		Dispatcher: dispatcher,
		Allowlist:  allowlist,
	})
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	router.Handle("/rpc", handler).Methods(http.MethodPost)
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("serving msig API",
		log.String("addr", config.HTTPAddr),
		log.Stringer("chainID", chainID),
		log.Uint32("threshold", ownerSet.Threshold),
		log.Int("owners", ownerSet.Len()),
	)
	return server.ListenAndServe()
}

// seedVault credits the genesis balances exactly once per database.
func seedVault(db database.Database, vault *relay.LedgerVault, genesis *Genesis) error {
	initialized, err := db.Has(initializedKey)
	if err != nil {
		return err
	}
	if initialized {
		return nil
	}

	if genesis.NativeBalance > 0 {
		if err := vault.Deposit(uint64(genesis.NativeBalance)); err != nil {
			return err
		}
	}
	for tokenStr, amount := range genesis.TokenBalances {
		token, err := ids.FromString(tokenStr)
		if err != nil {
			return fmt.Errorf("couldn't parse token %q: %w", tokenStr, err)
		}
		if err := vault.DepositToken(token, uint64(amount)); err != nil {
			return err
		}
	}
	return db.Put(initializedKey, []byte{1})
}

func parseOptionalID(s string) (ids.ID, error) {
	if s == "" {
		return ids.Empty, nil
	}
	return ids.FromString(s)
}
