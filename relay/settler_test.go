// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/warp"

	"github.com/luxfi/msig/message"
	"github.com/luxfi/msig/wallet"
)

var (
	testAdmin     = ids.ShortID{0xad}
	testProposer  = ids.ShortID{1}
	testRecipient = ids.ShortID{2}

	homeChain   = ids.ID{0xc}
	remoteChain = ids.ID{0xd}
	testToken   = ids.ID{0xe}
	feeToken    = ids.ID{0xf}
)

type testRouter struct {
	fee     uint64
	feeErr  error
	sendErr error
	msgID   ids.ID

	sent []*warp.UnsignedMessage
}

func (r *testRouter) Fee(context.Context, ids.ID, *warp.UnsignedMessage) (uint64, error) {
	return r.fee, r.feeErr
}

func (r *testRouter) Send(_ context.Context, _ ids.ID, msg *warp.UnsignedMessage) (ids.ID, error) {
	if r.sendErr != nil {
		return ids.Empty, r.sendErr
	}
	r.sent = append(r.sent, msg)
	return r.msgID, nil
}

type settlerEnv struct {
	settler   *Settler
	router    *testRouter
	vault     *LedgerVault
	allowlist *Allowlist
}

func newSettlerEnv(t *testing.T) *settlerEnv {
	t.Helper()
	require := require.New(t)

	vault := NewLedgerVault(nil, memdb.New())
	allowlist, err := NewAllowlist(memdb.New(), testAdmin, nil)
	require.NoError(err)
	router := &testRouter{fee: 5, msgID: ids.ID{0xaa}}

	return &settlerEnv{
		settler: New(Config{
			NetworkID: 1337,
			ChainID:   homeChain,
			FeeToken:  feeToken,
			Router:    router,
			Vault:     vault,
			Allowlist: allowlist,
		}),
		router:    router,
		vault:     vault,
		allowlist: allowlist,
	}
}

func localTx(token ids.ID, amount uint64) *wallet.Transaction {
	return &wallet.Transaction{
		ID:       1,
		To:       testRecipient,
		Token:    token,
		Amount:   amount,
		Proposer: testProposer,
	}
}

func remoteTx(token ids.ID, amount uint64, feeCurrency message.FeeCurrency) *wallet.Transaction {
	return &wallet.Transaction{
		ID:          1,
		To:          testRecipient,
		Token:       token,
		Chain:       remoteChain,
		Amount:      amount,
		FeeCurrency: feeCurrency,
		Proposer:    testProposer,
	}
}

func TestSettleLocalNative(t *testing.T) {
	require := require.New(t)
	env := newSettlerEnv(t)

	require.NoError(env.vault.Deposit(1000))

	msgID, fee, err := env.settler.Settle(context.Background(), localTx(ids.Empty, 400))
	require.NoError(err)
	require.Equal(ids.Empty, msgID)
	require.Zero(fee)
	require.Equal(uint64(600), env.vault.Balance())
	require.Empty(env.router.sent)
}

func TestSettleLocalToken(t *testing.T) {
	require := require.New(t)
	env := newSettlerEnv(t)

	require.NoError(env.vault.DepositToken(testToken, 50))

	// A home-chain destination is local even when set explicitly.
	tx := localTx(testToken, 30)
	tx.Chain = homeChain

	msgID, fee, err := env.settler.Settle(context.Background(), tx)
	require.NoError(err)
	require.Equal(ids.Empty, msgID)
	require.Zero(fee)
	require.Equal(uint64(20), env.vault.TokenBalance(testToken))
}

func TestSettleLocalInsufficient(t *testing.T) {
	require := require.New(t)
	env := newSettlerEnv(t)

	_, _, err := env.settler.Settle(context.Background(), localTx(ids.Empty, 400))
	require.ErrorIs(err, ErrExecutionFailed)
	require.ErrorIs(err, ErrInsufficientBalance)
}

func TestSettleRemoteNotAllowed(t *testing.T) {
	require := require.New(t)
	env := newSettlerEnv(t)

	_, _, err := env.settler.Settle(context.Background(), remoteTx(ids.Empty, 100, message.FeeNative))
	require.ErrorIs(err, ErrChainNotAllowed)
	require.Empty(env.router.sent)
}

func TestSettleRemoteNative(t *testing.T) {
	require := require.New(t)
	env := newSettlerEnv(t)

	require.NoError(env.allowlist.SetAllowed(remoteChain, true, testAdmin))
	require.NoError(env.vault.Deposit(2000))

	msgID, fee, err := env.settler.Settle(context.Background(), remoteTx(ids.Empty, 1000, message.FeeNative))
	require.NoError(err)
	require.Equal(env.router.msgID, msgID)
	require.Equal(uint64(5), fee)

	// Fee and transferred amount are both escrowed from the vault.
	require.Equal(uint64(995), env.vault.Balance())

	// The submitted payload resumes on the remote chain as a local intent.
	require.Len(env.router.sent, 1)
	sent := env.router.sent[0]
	require.Equal(uint32(1337), sent.NetworkID)
	require.Equal(homeChain, sent.SourceChainID)

	p, err := message.Parse(sent.Payload)
	require.NoError(err)
	intent, ok := p.(*message.Submit)
	require.True(ok)
	require.Equal(testProposer, intent.Sender)
	require.Equal(testRecipient, intent.To)
	require.Equal(ids.Empty, intent.Chain)
	require.Equal(uint64(1000), intent.Amount)
}

func TestSettleRemoteTokenFeeNative(t *testing.T) {
	require := require.New(t)
	env := newSettlerEnv(t)

	require.NoError(env.allowlist.SetAllowed(remoteChain, true, testAdmin))
	require.NoError(env.vault.Deposit(100))
	require.NoError(env.vault.DepositToken(testToken, 500))

	_, fee, err := env.settler.Settle(context.Background(), remoteTx(testToken, 500, message.FeeNative))
	require.NoError(err)
	require.Equal(uint64(5), fee)

	// Only the fee is drawn natively; the token moves on the remote chain.
	require.Equal(uint64(95), env.vault.Balance())
	require.Equal(uint64(500), env.vault.TokenBalance(testToken))
}

func TestSettleRemoteFeeToken(t *testing.T) {
	require := require.New(t)
	env := newSettlerEnv(t)

	require.NoError(env.allowlist.SetAllowed(remoteChain, true, testAdmin))

	// No fee-token balance yet.
	_, _, err := env.settler.Settle(context.Background(), remoteTx(testToken, 10, message.FeeToken))
	require.ErrorIs(err, ErrInsufficientFeeBalance)

	require.NoError(env.vault.DepositToken(feeToken, 8))
	_, fee, err := env.settler.Settle(context.Background(), remoteTx(testToken, 10, message.FeeToken))
	require.NoError(err)
	require.Equal(uint64(5), fee)
	require.Equal(uint64(3), env.vault.TokenBalance(feeToken))
}

func TestSettleRemoteNativeFeeToken(t *testing.T) {
	require := require.New(t)
	env := newSettlerEnv(t)

	require.NoError(env.allowlist.SetAllowed(remoteChain, true, testAdmin))
	require.NoError(env.vault.DepositToken(feeToken, 8))

	// The transferred native amount is escrowed even when the fee is paid
	// in tokens.
	_, _, err := env.settler.Settle(context.Background(), remoteTx(ids.Empty, 1000, message.FeeToken))
	require.ErrorIs(err, ErrInsufficientFeeBalance)

	require.NoError(env.vault.Deposit(1000))
	_, fee, err := env.settler.Settle(context.Background(), remoteTx(ids.Empty, 1000, message.FeeToken))
	require.NoError(err)
	require.Equal(uint64(5), fee)
	require.Equal(uint64(3), env.vault.TokenBalance(feeToken))
	require.Zero(env.vault.Balance())
}

func TestSettleRemoteSendFails(t *testing.T) {
	require := require.New(t)
	env := newSettlerEnv(t)

	require.NoError(env.allowlist.SetAllowed(remoteChain, true, testAdmin))
	require.NoError(env.vault.Deposit(2000))

	env.router.sendErr = errors.New("bridge unavailable")
	_, _, err := env.settler.Settle(context.Background(), remoteTx(ids.Empty, 1000, message.FeeNative))
	require.ErrorContains(err, "bridge unavailable")

	// Nothing was escrowed for the failed submission.
	require.Equal(uint64(2000), env.vault.Balance())
}
