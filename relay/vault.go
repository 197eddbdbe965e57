// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math"
)

var (
	ErrInsufficientBalance = errors.New("insufficient vault balance")

	_ Vault = (*LedgerVault)(nil)

	nativeBalanceKey = []byte("native")
)

// LedgerVault is a database-backed Vault holding the wallet's own funds.
// Recipients are external accounts, so an outbound transfer only debits the
// vault. Fee authorization is modeled as an immediate debit in favor of the
// bridge.
type LedgerVault struct {
	log log.Logger

	mu sync.Mutex
	db database.Database
}

func NewLedgerVault(logger log.Logger, db database.Database) *LedgerVault {
	if logger == nil {
		logger = log.NoLog{}
	}
	return &LedgerVault{
		log: logger,
		db:  db,
	}
}

func (v *LedgerVault) Balance() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance(nativeBalanceKey)
}

func (v *LedgerVault) TokenBalance(token ids.ID) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance(token[:])
}

// Deposit credits the vault's native balance.
func (v *LedgerVault) Deposit(amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.credit(nativeBalanceKey, amount)
}

// DepositToken credits the vault's balance of token.
func (v *LedgerVault) DepositToken(token ids.ID, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.credit(token[:], amount)
}

func (v *LedgerVault) Transfer(to ids.ShortID, amount uint64, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.debit(nativeBalanceKey, amount); err != nil {
		return err
	}
	v.log.Debug("native transfer",
		log.Stringer("to", to),
		log.Uint64("amount", amount),
		log.Int("dataLen", len(data)),
	)
	return nil
}

func (v *LedgerVault) TransferToken(token ids.ID, to ids.ShortID, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.debit(token[:], amount); err != nil {
		return err
	}
	v.log.Debug("token transfer",
		log.Stringer("token", token),
		log.Stringer("to", to),
		log.Uint64("amount", amount),
	)
	return nil
}

func (v *LedgerVault) AuthorizeFee(token ids.ID, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := nativeBalanceKey
	if token != ids.Empty {
		key = token[:]
	}
	return v.debit(key, amount)
}

func (v *LedgerVault) balance(key []byte) uint64 {
	balance, err := database.GetUInt64(v.db, key)
	if err != nil {
		return 0
	}
	return balance
}

func (v *LedgerVault) credit(key []byte, amount uint64) error {
	balance, err := math.Add64(v.balance(key), amount)
	if err != nil {
		return err
	}
	return database.PutUInt64(v.db, key, balance)
}

func (v *LedgerVault) debit(key []byte, amount uint64) error {
	balance := v.balance(key)
	if balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, balance, amount)
	}
	return database.PutUInt64(v.db, key, balance-amount)
}
