// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"

	"github.com/luxfi/msig/message"
	"github.com/luxfi/msig/owners"
	"github.com/luxfi/msig/wallet"
)

var (
	owner1 = ids.ShortID{1}
	owner2 = ids.ShortID{2}
	owner3 = ids.ShortID{3}
)

type noopSettler struct{}

func (noopSettler) Settle(context.Context, *wallet.Transaction) (ids.ID, uint64, error) {
	return ids.Empty, 0, nil
}

func newSubmitIntent(t *testing.T, sender ids.ShortID) *message.Submit {
	t.Helper()

	intent, err := message.NewSubmit(
		sender,
		ids.ShortID{0xaa},
		ids.Empty,
		ids.Empty,
		100,
		nil,
		false,
		message.FeeNative,
		0,
	)
	require.NoError(t, err)
	return intent
}

func newTestFactory(t *testing.T) *Factory {
	f, err := New(Config{
		DB:      memdb.New(),
		Settler: noopSettler{},
	})
	require.NoError(t, err)
	return f
}

func TestCreate(t *testing.T) {
	require := require.New(t)

	f := newTestFactory(t)
	require.Zero(f.Count())

	id, w, err := f.Create(2, []ids.ShortID{owner1, owner2, owner3})
	require.NoError(err)
	require.NotEqual(ids.Empty, id)
	require.NotNil(w)
	require.Equal(1, f.Count())

	require.Same(w, f.Wallet(id))
	require.Nil(f.Wallet(ids.ID{9}))

	for _, addr := range []ids.ShortID{owner1, owner2, owner3} {
		require.Equal([]ids.ID{id}, f.WalletsOf(addr))
	}
	require.Empty(f.WalletsOf(ids.ShortID{9}))
}

func TestCreateInvalidOwners(t *testing.T) {
	require := require.New(t)

	f := newTestFactory(t)
	_, _, err := f.Create(3, []ids.ShortID{owner1, owner2})
	require.ErrorIs(err, owners.ErrThresholdTooHigh)
	require.Zero(f.Count())
}

func TestCreateDuplicate(t *testing.T) {
	require := require.New(t)

	f := newTestFactory(t)
	_, _, err := f.Create(2, []ids.ShortID{owner1, owner2, owner3})
	require.NoError(err)

	// Address order does not distinguish owner sets.
	_, _, err = f.Create(2, []ids.ShortID{owner3, owner1, owner2})
	require.ErrorIs(err, ErrDuplicateWallet)
	require.Equal(1, f.Count())

	// A different threshold is a different wallet.
	id2, _, err := f.Create(3, []ids.ShortID{owner1, owner2, owner3})
	require.NoError(err)
	require.Equal(2, f.Count())
	require.Len(f.WalletsOf(owner1), 2)
	require.NotEqual(ids.Empty, id2)
}

func TestReopenRestoresWallets(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	f, err := New(Config{
		DB:      db,
		Settler: noopSettler{},
	})
	require.NoError(err)

	id1, w1, err := f.Create(2, []ids.ShortID{owner1, owner2, owner3})
	require.NoError(err)
	id2, _, err := f.Create(1, []ids.ShortID{owner1, owner2})
	require.NoError(err)

	// Ledger state written before the restart must survive it.
	_, err = w1.Submit(newSubmitIntent(t, owner1))
	require.NoError(err)

	reopened, err := New(Config{
		DB:      db,
		Settler: noopSettler{},
	})
	require.NoError(err)
	require.Equal(2, reopened.Count())

	restored := reopened.Wallet(id1)
	require.NotNil(restored)
	require.NotNil(reopened.Wallet(id2))

	txs := restored.Transactions()
	require.Len(txs, 1)

	walletIDs := reopened.WalletsOf(owner1)
	require.Len(walletIDs, 2)
	require.Contains(walletIDs, id1)
	require.Contains(walletIDs, id2)
	require.Len(reopened.WalletsOf(owner3), 1)

	// The registry survives too: the owner set stays taken.
	_, _, err = reopened.Create(2, []ids.ShortID{owner1, owner2, owner3})
	require.ErrorIs(err, ErrDuplicateWallet)
}

func TestWalletID(t *testing.T) {
	require := require.New(t)

	a, err := owners.New(2, []ids.ShortID{owner1, owner2})
	require.NoError(err)
	b, err := owners.New(2, []ids.ShortID{owner2, owner1})
	require.NoError(err)
	c, err := owners.New(1, []ids.ShortID{owner1, owner2})
	require.NoError(err)

	require.Equal(WalletID(a), WalletID(b))
	require.NotEqual(WalletID(a), WalletID(c))
}
