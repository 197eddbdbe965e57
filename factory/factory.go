// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package factory deploys wallet instances and indexes them by owner.
package factory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/msig/events"
	"github.com/luxfi/msig/owners"
	"github.com/luxfi/msig/wallet"
)

var (
	ErrDuplicateWallet = errors.New("wallet already exists for owner set")

	walletPrefix   = []byte("wl:")
	registryPrefix = []byte("rg:")
)

// walletRecord is the persisted registry entry a wallet is rebuilt from.
type walletRecord struct {
	Threshold uint32        `serialize:"true"`
	Addrs     []ids.ShortID `serialize:"true"`
}

// Config carries the collaborators shared by every wallet the factory
// creates. Each wallet gets its own prefixed slice of DB.
type Config struct {
	Log     log.Logger
	DB      database.Database
	Settler wallet.Settler
	Events  *events.Log
	ChainID ids.ID
}

// Factory is an append-only registry of wallet instances. A wallet's id is
// derived from its owner set, so each owner list maps to at most one wallet.
// Registry entries persist, so reopening over the same database restores
// every deployed wallet.
type Factory struct {
	log      log.Logger
	walletDB database.Database
	registry database.Database
	settler  wallet.Settler
	events   *events.Log
	chainID  ids.ID

	mu      sync.RWMutex
	wallets map[ids.ID]*wallet.Wallet
	byOwner map[ids.ShortID][]ids.ID
}

// New opens the factory and rebuilds every wallet recorded in the registry.
func New(config Config) (*Factory, error) {
	f := &Factory{
		log:      config.Log,
		walletDB: prefixdb.New(walletPrefix, config.DB),
		registry: prefixdb.New(registryPrefix, config.DB),
		settler:  config.Settler,
		events:   config.Events,
		chainID:  config.ChainID,
		wallets:  make(map[ids.ID]*wallet.Wallet),
		byOwner:  make(map[ids.ShortID][]ids.ID),
	}
	if f.log == nil {
		f.log = log.NoLog{}
	}

	iter := f.registry.NewIterator()
	defer iter.Release()
	for iter.Next() {
		record := &walletRecord{}
		if _, err := Codec.Unmarshal(iter.Value(), record); err != nil {
			return nil, fmt.Errorf("failed to decode registry record: %w", err)
		}
		o, err := owners.New(record.Threshold, record.Addrs)
		if err != nil {
			return nil, fmt.Errorf("corrupt registry record: %w", err)
		}
		if _, err := f.open(o); err != nil {
			return nil, err
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return f, nil
}

// Create deploys a wallet controlled by the given owner set, records it in
// the registry and registers it under each owner. Creating a second wallet
// with the same threshold and membership fails with ErrDuplicateWallet.
func (f *Factory) Create(threshold uint32, addrs []ids.ShortID) (ids.ID, *wallet.Wallet, error) {
	o, err := owners.New(threshold, addrs)
	if err != nil {
		return ids.Empty, nil, err
	}
	id := WalletID(o)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.wallets[id]; ok {
		return ids.Empty, nil, fmt.Errorf("%w: %s", ErrDuplicateWallet, id)
	}

	record := &walletRecord{
		Threshold: o.Threshold,
		Addrs:     o.List(),
	}
	bytes, err := Codec.Marshal(codecVersion, record)
	if err != nil {
		return ids.Empty, nil, err
	}
	if err := f.registry.Put(id[:], bytes); err != nil {
		return ids.Empty, nil, err
	}

	w, err := f.open(o)
	if err != nil {
		return ids.Empty, nil, err
	}

	f.log.Info("wallet created",
		log.Stringer("walletID", id),
		log.Uint32("threshold", threshold),
		log.Int("owners", len(addrs)),
	)
	return id, w, nil
}

// open instantiates the wallet for o and indexes it. The caller holds the
// lock, or is the constructor.
func (f *Factory) open(o *owners.Owners) (*wallet.Wallet, error) {
	id := WalletID(o)
	w, err := wallet.New(wallet.Config{
		Log:     f.log,
		DB:      prefixdb.New(id[:], f.walletDB),
		Owners:  o,
		Settler: f.settler,
		Events:  f.events,
		ChainID: f.chainID,
	})
	if err != nil {
		return nil, err
	}

	f.wallets[id] = w
	for _, addr := range o.List() {
		f.byOwner[addr] = append(f.byOwner[addr], id)
	}
	return w, nil
}

// Wallet returns the wallet registered under id, or nil.
func (f *Factory) Wallet(id ids.ID) *wallet.Wallet {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.wallets[id]
}

// WalletsOf lists the ids of the wallets addr co-owns.
func (f *Factory) WalletsOf(addr ids.ShortID) []ids.ID {
	f.mu.RLock()
	defer f.mu.RUnlock()

	walletIDs := f.byOwner[addr]
	cp := make([]ids.ID, len(walletIDs))
	copy(cp, walletIDs)
	return cp
}

// Count returns the number of wallets created.
func (f *Factory) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.wallets)
}

// WalletID derives the deterministic id of the wallet controlled by o: the
// hash of the threshold and the sorted owner addresses.
func WalletID(o *owners.Owners) ids.ID {
	buf := make([]byte, 0, 4+20*len(o.Addrs))
	buf = binary.BigEndian.AppendUint32(buf, o.Threshold)
	for _, addr := range o.List() {
		buf = append(buf, addr[:]...)
	}
	return hash.ComputeHash256Array(buf)
}
