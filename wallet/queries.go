// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wallet

import (
	"fmt"
	"sort"

	"github.com/luxfi/ids"
)

// GetTransaction returns a copy of the transaction with the given id.
func (w *Wallet) GetTransaction(txID uint64) (*Transaction, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	tx, ok := w.txs[txID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTx, txID)
	}
	cp := *tx
	return &cp, nil
}

// Transactions returns copies of all transactions in submission order.
func (w *Wallet) Transactions() []*Transaction {
	w.mu.RLock()
	defer w.mu.RUnlock()

	txs := make([]*Transaction, 0, len(w.txs))
	for _, tx := range w.txs {
		cp := *tx
		txs = append(txs, &cp)
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].ID < txs[j].ID
	})
	return txs
}

// ConfirmationCount returns the number of distinct owner confirmations
// currently held by txID.
func (w *Wallet) ConfirmationCount(txID uint64) (uint32, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	tx, ok := w.txs[txID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownTx, txID)
	}
	return tx.Confirmations, nil
}

// IsConfirmedBy reports whether owner has an outstanding confirmation on txID.
func (w *Wallet) IsConfirmedBy(txID uint64, owner ids.ShortID) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if _, ok := w.txs[txID]; !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownTx, txID)
	}
	return w.confs[txID].Contains(owner), nil
}

// Owners returns the wallet's owner addresses.
func (w *Wallet) Owners() []ids.ShortID {
	return w.owners.List()
}

// Threshold returns the confirmation quorum threshold.
func (w *Wallet) Threshold() uint32 {
	return w.owners.Threshold
}

// IsOwner reports whether addr is a wallet owner.
func (w *Wallet) IsOwner(addr ids.ShortID) bool {
	return w.owners.Contains(addr)
}

// ChainID returns the wallet's home chain id.
func (w *Wallet) ChainID() ids.ID {
	return w.chainID
}
