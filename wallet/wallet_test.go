// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"

	"github.com/luxfi/msig/message"
	"github.com/luxfi/msig/owners"
)

var (
	owner1   = ids.ShortID{1}
	owner2   = ids.ShortID{2}
	owner3   = ids.ShortID{3}
	outsider = ids.ShortID{0xff}

	recipient = ids.ShortID{0xaa}
)

// testSettler records every settlement it performs and fails while err is
// set.
type testSettler struct {
	err     error
	msgID   ids.ID
	fee     uint64
	settled []Transaction
}

func (s *testSettler) Settle(_ context.Context, tx *Transaction) (ids.ID, uint64, error) {
	if s.err != nil {
		return ids.Empty, 0, s.err
	}
	s.settled = append(s.settled, *tx)
	return s.msgID, s.fee, nil
}

// flakyDB fails exactly one Put, identified by its ordinal, and works
// normally otherwise.
type flakyDB struct {
	database.Database
	puts    int
	failPut int
	err     error
}

func (db *flakyDB) Put(key, value []byte) error {
	db.puts++
	if db.puts == db.failPut {
		return db.err
	}
	return db.Database.Put(key, value)
}

func newTestWallet(t *testing.T, settler Settler) *Wallet {
	t.Helper()
	require := require.New(t)

	o, err := owners.New(2, []ids.ShortID{owner1, owner2, owner3})
	require.NoError(err)

	w, err := New(Config{
		DB:      memdb.New(),
		Owners:  o,
		Settler: settler,
	})
	require.NoError(err)
	return w
}

func submitIntent(t *testing.T, autoExecute bool) *message.Submit {
	t.Helper()

	intent, err := message.NewSubmit(
		owner1,
		recipient,
		ids.Empty,
		ids.Empty,
		1000,
		nil,
		autoExecute,
		message.FeeNative,
		0,
	)
	require.NoError(t, err)
	return intent
}

func TestSubmit(t *testing.T) {
	require := require.New(t)

	w := newTestWallet(t, &testSettler{})

	txID, err := w.Submit(submitIntent(t, false))
	require.NoError(err)
	require.Equal(uint64(0), txID)

	tx, err := w.GetTransaction(txID)
	require.NoError(err)
	require.Equal(owner1, tx.Proposer)
	require.Equal(recipient, tx.To)
	require.Equal(uint64(1000), tx.Amount)
	require.Zero(tx.Confirmations)
	require.False(tx.Executed)

	// IDs are assigned in submission order and never reused.
	txID2, err := w.Submit(submitIntent(t, false))
	require.NoError(err)
	require.Equal(uint64(1), txID2)
}

func TestSubmitNotOwner(t *testing.T) {
	require := require.New(t)

	w := newTestWallet(t, &testSettler{})

	intent, err := message.NewSubmit(
		outsider,
		recipient,
		ids.Empty,
		ids.Empty,
		1,
		nil,
		false,
		message.FeeNative,
		0,
	)
	require.NoError(err)

	_, err = w.Submit(intent)
	require.ErrorIs(err, ErrNotOwner)
}

func TestConfirmAutoExecutes(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	settler := &testSettler{msgID: ids.ID{7}, fee: 3}
	w := newTestWallet(t, settler)

	txID, err := w.Submit(submitIntent(t, true))
	require.NoError(err)

	// First confirmation is below the 2-of-3 threshold.
	require.NoError(w.Confirm(ctx, txID, owner1))
	tx, err := w.GetTransaction(txID)
	require.NoError(err)
	require.Equal(uint32(1), tx.Confirmations)
	require.False(tx.Executed)
	require.Empty(settler.settled)

	// The same owner cannot confirm twice.
	err = w.Confirm(ctx, txID, owner1)
	require.ErrorIs(err, ErrAlreadyConfirmed)

	// The second confirmation reaches quorum and settles in the same step.
	require.NoError(w.Confirm(ctx, txID, owner2))
	tx, err = w.GetTransaction(txID)
	require.NoError(err)
	require.Equal(uint32(2), tx.Confirmations)
	require.True(tx.Executed)
	require.Len(settler.settled, 1)
	require.Equal(uint32(2), settler.settled[0].Confirmations)

	// Executed transactions are terminal.
	err = w.Confirm(ctx, txID, owner3)
	require.ErrorIs(err, ErrAlreadyExecuted)
	err = w.Revoke(txID, owner1)
	require.ErrorIs(err, ErrAlreadyExecuted)
	err = w.Execute(ctx, txID, owner1)
	require.ErrorIs(err, ErrAlreadyExecuted)
}

func TestConfirmWithoutAutoExecute(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	settler := &testSettler{}
	w := newTestWallet(t, settler)

	txID, err := w.Submit(submitIntent(t, false))
	require.NoError(err)

	require.NoError(w.Confirm(ctx, txID, owner1))
	require.NoError(w.Confirm(ctx, txID, owner2))

	// Quorum alone does not execute; an explicit call does.
	tx, err := w.GetTransaction(txID)
	require.NoError(err)
	require.False(tx.Executed)
	require.Empty(settler.settled)

	require.NoError(w.Execute(ctx, txID, owner3))
	tx, err = w.GetTransaction(txID)
	require.NoError(err)
	require.True(tx.Executed)
	require.Len(settler.settled, 1)
}

func TestExecuteBelowQuorum(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	w := newTestWallet(t, &testSettler{})

	txID, err := w.Submit(submitIntent(t, false))
	require.NoError(err)
	require.NoError(w.Confirm(ctx, txID, owner1))

	err = w.Execute(ctx, txID, owner1)
	require.ErrorIs(err, ErrQuorumNotMet)
}

func TestRevoke(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	w := newTestWallet(t, &testSettler{})

	txID, err := w.Submit(submitIntent(t, false))
	require.NoError(err)

	// Revoking before confirming fails.
	err = w.Revoke(txID, owner1)
	require.ErrorIs(err, ErrNotConfirmed)

	require.NoError(w.Confirm(ctx, txID, owner1))
	require.NoError(w.Revoke(txID, owner1))

	count, err := w.ConfirmationCount(txID)
	require.NoError(err)
	require.Zero(count)

	confirmed, err := w.IsConfirmedBy(txID, owner1)
	require.NoError(err)
	require.False(confirmed)

	// A revoked approval can be granted again.
	require.NoError(w.Confirm(ctx, txID, owner1))
	count, err = w.ConfirmationCount(txID)
	require.NoError(err)
	require.Equal(uint32(1), count)
}

func TestSettleFailureDiscardsConfirmation(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	errSettle := errors.New("bridge unavailable")
	settler := &testSettler{err: errSettle}
	w := newTestWallet(t, settler)

	txID, err := w.Submit(submitIntent(t, true))
	require.NoError(err)
	require.NoError(w.Confirm(ctx, txID, owner1))

	// The confirmation that would trip auto-execution fails with the
	// settlement and leaves no trace.
	err = w.Confirm(ctx, txID, owner2)
	require.ErrorIs(err, errSettle)

	tx, err := w.GetTransaction(txID)
	require.NoError(err)
	require.Equal(uint32(1), tx.Confirmations)
	require.False(tx.Executed)

	confirmed, err := w.IsConfirmedBy(txID, owner2)
	require.NoError(err)
	require.False(confirmed)

	// Once the settler recovers, the same owner can confirm again.
	settler.err = nil
	require.NoError(w.Confirm(ctx, txID, owner2))
	tx, err = w.GetTransaction(txID)
	require.NoError(err)
	require.True(tx.Executed)
}

func TestConfirmStorageFailureLeavesNoTrace(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	errPut := errors.New("disk full")
	db := &flakyDB{Database: memdb.New(), failPut: 3, err: errPut}
	o, err := owners.New(2, []ids.ShortID{owner1, owner2, owner3})
	require.NoError(err)
	w, err := New(Config{DB: db, Owners: o, Settler: &testSettler{}})
	require.NoError(err)

	txID, err := w.Submit(submitIntent(t, false))
	require.NoError(err)

	// The confirmation record lands but the transaction record does not;
	// the approval must not stick anywhere.
	err = w.Confirm(ctx, txID, owner1)
	require.ErrorIs(err, errPut)

	confirmed, err := w.IsConfirmedBy(txID, owner1)
	require.NoError(err)
	require.False(confirmed)
	count, err := w.ConfirmationCount(txID)
	require.NoError(err)
	require.Zero(count)

	// The persisted record was rolled back too.
	reopened, err := New(Config{DB: db, Owners: o, Settler: &testSettler{}})
	require.NoError(err)
	confirmed, err = reopened.IsConfirmedBy(txID, owner1)
	require.NoError(err)
	require.False(confirmed)

	// With storage healthy again the same confirmation goes through.
	require.NoError(w.Confirm(ctx, txID, owner1))
	count, err = w.ConfirmationCount(txID)
	require.NoError(err)
	require.Equal(uint32(1), count)
}

func TestRevokeStorageFailureLeavesNoTrace(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	errPut := errors.New("disk full")
	db := &flakyDB{Database: memdb.New(), failPut: 5, err: errPut}
	o, err := owners.New(2, []ids.ShortID{owner1, owner2, owner3})
	require.NoError(err)
	w, err := New(Config{DB: db, Owners: o, Settler: &testSettler{}})
	require.NoError(err)

	txID, err := w.Submit(submitIntent(t, false))
	require.NoError(err)
	require.NoError(w.Confirm(ctx, txID, owner1))

	err = w.Revoke(txID, owner1)
	require.ErrorIs(err, errPut)

	// The approval is still in force, in memory and on disk.
	confirmed, err := w.IsConfirmedBy(txID, owner1)
	require.NoError(err)
	require.True(confirmed)
	count, err := w.ConfirmationCount(txID)
	require.NoError(err)
	require.Equal(uint32(1), count)

	reopened, err := New(Config{DB: db, Owners: o, Settler: &testSettler{}})
	require.NoError(err)
	confirmed, err = reopened.IsConfirmedBy(txID, owner1)
	require.NoError(err)
	require.True(confirmed)

	require.NoError(w.Revoke(txID, owner1))
	count, err = w.ConfirmationCount(txID)
	require.NoError(err)
	require.Zero(count)
}

func TestUnknownTx(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	w := newTestWallet(t, &testSettler{})

	require.ErrorIs(w.Confirm(ctx, 42, owner1), ErrUnknownTx)
	require.ErrorIs(w.Revoke(42, owner1), ErrUnknownTx)
	require.ErrorIs(w.Execute(ctx, 42, owner1), ErrUnknownTx)

	_, err := w.GetTransaction(42)
	require.ErrorIs(err, ErrUnknownTx)
}

func TestNotOwnerActions(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	w := newTestWallet(t, &testSettler{})

	txID, err := w.Submit(submitIntent(t, false))
	require.NoError(err)

	require.ErrorIs(w.Confirm(ctx, txID, outsider), ErrNotOwner)
	require.ErrorIs(w.Revoke(txID, outsider), ErrNotOwner)
	require.ErrorIs(w.Execute(ctx, txID, outsider), ErrNotOwner)
}

func TestPersistence(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	db := memdb.New()
	o, err := owners.New(2, []ids.ShortID{owner1, owner2, owner3})
	require.NoError(err)

	settler := &testSettler{}
	w, err := New(Config{
		DB:      db,
		Owners:  o,
		Settler: settler,
	})
	require.NoError(err)

	txID, err := w.Submit(submitIntent(t, false))
	require.NoError(err)
	require.NoError(w.Confirm(ctx, txID, owner1))

	executedID, err := w.Submit(submitIntent(t, true))
	require.NoError(err)
	require.NoError(w.Confirm(ctx, executedID, owner1))
	require.NoError(w.Confirm(ctx, executedID, owner2))

	// A wallet reopened over the same database resumes where it left off.
	reopened, err := New(Config{
		DB:      db,
		Owners:  o,
		Settler: settler,
	})
	require.NoError(err)

	tx, err := reopened.GetTransaction(txID)
	require.NoError(err)
	require.Equal(uint32(1), tx.Confirmations)
	require.False(tx.Executed)

	confirmed, err := reopened.IsConfirmedBy(txID, owner1)
	require.NoError(err)
	require.True(confirmed)

	executed, err := reopened.GetTransaction(executedID)
	require.NoError(err)
	require.True(executed.Executed)

	// New submissions continue the id sequence.
	nextID, err := reopened.Submit(submitIntent(t, false))
	require.NoError(err)
	require.Equal(executedID+1, nextID)
}
