// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wallet implements the threshold-authorized transaction ledger of a
// multi-party wallet. Every externally triggered operation runs to completion
// as one serialized step under the wallet lock: it either fully commits its
// ledger mutation, settlement and audit records, or changes nothing.
package wallet

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/msig/events"
	"github.com/luxfi/msig/message"
	"github.com/luxfi/msig/owners"
	"github.com/luxfi/msig/utils/timer/mockable"
)

var (
	ErrNotOwner         = errors.New("caller is not a wallet owner")
	ErrUnknownTx        = errors.New("unknown transaction")
	ErrAlreadyExecuted  = errors.New("transaction already executed")
	ErrAlreadyConfirmed = errors.New("transaction already confirmed by owner")
	ErrNotConfirmed     = errors.New("transaction not confirmed by owner")
	ErrQuorumNotMet     = errors.New("confirmation quorum not met")

	txPrefix   = []byte("tx:")
	confPrefix = []byte("cf:")
)

// Settler performs the value/payload transfer of a decided transaction,
// either locally or through the messaging bridge. It reports the bridge
// message id (ids.Empty for local settlement) and the delivery fee paid.
type Settler interface {
	Settle(ctx context.Context, tx *Transaction) (ids.ID, uint64, error)
}

// Config carries the collaborators of one wallet instance.
type Config struct {
	Log     log.Logger
	DB      database.Database
	Owners  *owners.Owners
	Settler Settler
	Events  *events.Log

	// ChainID identifies the home chain; transactions whose destination
	// equals it (or is empty) settle locally.
	ChainID ids.ID

	// MetricsNamespace prefixes the wallet's counters. Empty disables them.
	MetricsNamespace string
}

// Wallet owns the transaction ledger and its state machine.
type Wallet struct {
	log     log.Logger
	clock   mockable.Clock
	owners  *owners.Owners
	settler Settler
	events  *events.Log
	chainID ids.ID
	metrics *metrics

	txDB   database.Database
	confDB database.Database

	mu     sync.RWMutex
	txs    map[uint64]*Transaction
	confs  map[uint64]set.Set[ids.ShortID]
	nextID uint64
}

// New constructs a wallet and reloads any persisted ledger state.
func New(config Config) (*Wallet, error) {
	if config.Owners == nil {
		return nil, owners.ErrNilOwners
	}
	if err := config.Owners.Verify(); err != nil {
		return nil, err
	}

	w := &Wallet{
		log:     config.Log,
		owners:  config.Owners,
		settler: config.Settler,
		events:  config.Events,
		chainID: config.ChainID,
		txDB:    prefixdb.New(txPrefix, config.DB),
		confDB:  prefixdb.New(confPrefix, config.DB),
		txs:     make(map[uint64]*Transaction),
		confs:   make(map[uint64]set.Set[ids.ShortID]),
	}
	if w.log == nil {
		w.log = log.NoLog{}
	}
	if config.MetricsNamespace != "" {
		w.metrics = newMetrics(config.MetricsNamespace)
	}

	if err := w.load(); err != nil {
		return nil, fmt.Errorf("failed to load ledger state: %w", err)
	}
	return w, nil
}

func (w *Wallet) load() error {
	iter := w.txDB.NewIterator()
	defer iter.Release()
	for iter.Next() {
		tx := &Transaction{}
		if _, err := Codec.Unmarshal(iter.Value(), tx); err != nil {
			return err
		}
		w.txs[tx.ID] = tx
		if tx.ID >= w.nextID {
			w.nextID = tx.ID + 1
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}

	confIter := w.confDB.NewIterator()
	defer confIter.Release()
	for confIter.Next() {
		key := confIter.Key()
		if len(key) != 8 {
			continue
		}
		var addrs []ids.ShortID
		if _, err := Codec.Unmarshal(confIter.Value(), &addrs); err != nil {
			return err
		}
		w.confs[binary.BigEndian.Uint64(key)] = set.Of(addrs...)
	}
	return confIter.Error()
}

// Submit appends a new open transaction proposed by intent.Sender and
// returns its assigned id.
func (w *Wallet) Submit(intent *message.Submit) (uint64, error) {
	if err := intent.Verify(); err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.owners.Contains(intent.Sender) {
		return 0, fmt.Errorf("%w: %s", ErrNotOwner, intent.Sender)
	}

	tx := &Transaction{
		ID:          w.nextID,
		To:          intent.To,
		Token:       intent.Token,
		Chain:       intent.Chain,
		Amount:      intent.Amount,
		Data:        intent.Data,
		AutoExecute: intent.AutoExecute,
		FeeCurrency: intent.FeeCurrency,
		GasLimit:    intent.GasLimit,
		Proposer:    intent.Sender,
		CreatedAt:   w.clock.Time().Unix(),
	}

	if err := w.putTx(tx); err != nil {
		return 0, err
	}
	w.txs[tx.ID] = tx
	w.nextID++

	w.appendEvent(&events.Event{
		Type:   events.TxSubmitted,
		Time:   tx.CreatedAt,
		TxID:   tx.ID,
		Actor:  tx.Proposer,
		To:     tx.To,
		Chain:  tx.Chain,
		Token:  tx.Token,
		Amount: tx.Amount,
	})
	if w.metrics != nil {
		w.metrics.txsSubmitted.Inc()
	}
	w.log.Info("transaction submitted",
		log.Uint64("txID", tx.ID),
		log.Stringer("proposer", tx.Proposer),
		log.Stringer("to", tx.To),
		log.Uint64("amount", tx.Amount),
		log.Bool("autoExecute", tx.AutoExecute),
	)
	return tx.ID, nil
}

// Confirm records caller's approval of txID. If the transaction is marked
// auto-execute and this confirmation reaches the quorum threshold, the
// settlement runs inside the same step; a settlement failure discards the
// confirmation along with everything else.
func (w *Wallet) Confirm(ctx context.Context, txID uint64, caller ids.ShortID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.openTx(txID, caller)
	if err != nil {
		return err
	}
	confs := w.confs[txID]
	if confs.Contains(caller) {
		return fmt.Errorf("%w: tx %d, owner %s", ErrAlreadyConfirmed, txID, caller)
	}

	updated := *tx
	updated.Confirmations = tx.Confirmations + 1

	var (
		msgID ids.ID
		fee   uint64
	)
	autoExec := tx.AutoExecute && updated.Confirmations >= w.owners.Threshold
	if autoExec {
		msgID, fee, err = w.settler.Settle(ctx, &updated)
		if err != nil {
			return err
		}
		updated.Executed = true
		updated.ExecutedAt = w.clock.Time().Unix()
	}

	// Stage the mutated confirmation set; the maps and *tx are untouched
	// until both records are persisted.
	staged := set.Of(confs.List()...)
	staged.Add(caller)
	if err := w.putConfs(txID, staged); err != nil {
		return err
	}
	if err := w.putTx(&updated); err != nil {
		if rbErr := w.putConfs(txID, confs); rbErr != nil {
			w.log.Error("failed to restore confirmation record",
				log.Uint64("txID", txID),
				log.String("error", rbErr.Error()),
			)
		}
		return err
	}
	w.confs[txID] = staged
	*tx = updated

	now := w.clock.Time().Unix()
	w.appendEvent(&events.Event{
		Type:  events.TxConfirmed,
		Time:  now,
		TxID:  txID,
		Actor: caller,
	})
	if w.metrics != nil {
		w.metrics.txsConfirmed.Inc()
	}
	w.log.Info("transaction confirmed",
		log.Uint64("txID", txID),
		log.Stringer("owner", caller),
		log.Uint32("confirmations", tx.Confirmations),
		log.Uint32("threshold", w.owners.Threshold),
	)

	if autoExec {
		w.recordExecution(tx, msgID, fee)
	}
	return nil
}

// Revoke withdraws caller's prior approval of txID. Revoking never triggers
// execution.
func (w *Wallet) Revoke(txID uint64, caller ids.ShortID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.openTx(txID, caller)
	if err != nil {
		return err
	}
	confs := w.confs[txID]
	if !confs.Contains(caller) {
		return fmt.Errorf("%w: tx %d, owner %s", ErrNotConfirmed, txID, caller)
	}

	staged := set.Of(confs.List()...)
	staged.Remove(caller)
	if err := w.putConfs(txID, staged); err != nil {
		return err
	}
	updated := *tx
	updated.Confirmations = tx.Confirmations - 1
	if err := w.putTx(&updated); err != nil {
		if rbErr := w.putConfs(txID, confs); rbErr != nil {
			w.log.Error("failed to restore confirmation record",
				log.Uint64("txID", txID),
				log.String("error", rbErr.Error()),
			)
		}
		return err
	}
	w.confs[txID] = staged
	*tx = updated

	w.appendEvent(&events.Event{
		Type:  events.TxRevoked,
		Time:  w.clock.Time().Unix(),
		TxID:  txID,
		Actor: caller,
	})
	if w.metrics != nil {
		w.metrics.txsRevoked.Inc()
	}
	w.log.Info("confirmation revoked",
		log.Uint64("txID", txID),
		log.Stringer("owner", caller),
		log.Uint32("confirmations", tx.Confirmations),
	)
	return nil
}

// Execute settles txID once it has reached quorum. A settlement failure
// leaves the ledger untouched.
func (w *Wallet) Execute(ctx context.Context, txID uint64, caller ids.ShortID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.openTx(txID, caller)
	if err != nil {
		return err
	}
	if tx.Confirmations < w.owners.Threshold {
		return fmt.Errorf("%w: tx %d has %d of %d",
			ErrQuorumNotMet, txID, tx.Confirmations, w.owners.Threshold)
	}

	updated := *tx
	msgID, fee, err := w.settler.Settle(ctx, &updated)
	if err != nil {
		return err
	}
	updated.Executed = true
	updated.ExecutedAt = w.clock.Time().Unix()
	if err := w.putTx(&updated); err != nil {
		return err
	}
	*tx = updated

	w.recordExecution(tx, msgID, fee)
	return nil
}

// openTx authorizes caller and fetches a transaction that is still open.
func (w *Wallet) openTx(txID uint64, caller ids.ShortID) (*Transaction, error) {
	if !w.owners.Contains(caller) {
		return nil, fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	tx, ok := w.txs[txID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTx, txID)
	}
	if tx.Executed {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyExecuted, txID)
	}
	return tx, nil
}

func (w *Wallet) recordExecution(tx *Transaction, msgID ids.ID, fee uint64) {
	w.appendEvent(&events.Event{
		Type:      events.TxExecuted,
		Time:      tx.ExecutedAt,
		TxID:      tx.ID,
		MessageID: msgID,
		To:        tx.To,
		Chain:     tx.Chain,
		Token:     tx.Token,
		Amount:    tx.Amount,
		Fee:       fee,
	})
	if w.metrics != nil {
		w.metrics.txsExecuted.Inc()
	}
	w.log.Info("transaction executed",
		log.Uint64("txID", tx.ID),
		log.Stringer("chain", tx.Chain),
		log.Stringer("messageID", msgID),
		log.Uint64("fee", fee),
	)
}

func (w *Wallet) putTx(tx *Transaction) error {
	bytes, err := Codec.Marshal(codecVersion, tx)
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, tx.ID)
	return w.txDB.Put(key, bytes)
}

func (w *Wallet) putConfs(txID uint64, confs set.Set[ids.ShortID]) error {
	addrs := confs.List()
	bytes, err := Codec.Marshal(codecVersion, &addrs)
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, txID)
	return w.confDB.Put(key, bytes)
}

func (w *Wallet) appendEvent(e *events.Event) {
	if w.events == nil {
		return
	}
	if err := w.events.Append(e); err != nil {
		w.log.Error("failed to append audit event",
			log.Stringer("type", e.Type),
			log.String("error", err.Error()),
		)
	}
}
