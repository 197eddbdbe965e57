// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package relay settles decided transactions: locally through the wallet's
// vault, or by encoding the intent and submitting it to the asynchronous
// messaging bridge for a remote peer ledger to resume.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math"
	"github.com/luxfi/warp"

	"github.com/luxfi/msig/message"
	"github.com/luxfi/msig/wallet"
)

var (
	ErrChainNotAllowed        = errors.New("destination chain not allow-listed")
	ErrExecutionFailed        = errors.New("execution failed")
	ErrInsufficientFeeBalance = errors.New("insufficient balance for delivery fee")

	_ wallet.Settler = (*Settler)(nil)
)

// Router is the store-and-forward bridge primitive. It is consumed as an
// opaque service: quote a delivery price, submit a payload, receive a
// tracking identifier. Fee is read-only and idempotent.
type Router interface {
	Fee(ctx context.Context, chain ids.ID, msg *warp.UnsignedMessage) (uint64, error)
	Send(ctx context.Context, chain ids.ID, msg *warp.UnsignedMessage) (ids.ID, error)
}

// Vault is the wallet's asset custody. ids.Empty denotes the native unit.
type Vault interface {
	Balance() uint64
	TokenBalance(token ids.ID) uint64
	Transfer(to ids.ShortID, amount uint64, data []byte) error
	TransferToken(token ids.ID, to ids.ShortID, amount uint64) error

	// AuthorizeFee permits the bridge to draw the delivery fee.
	AuthorizeFee(token ids.ID, amount uint64) error
}

// Config carries the collaborators of a Settler.
type Config struct {
	Log       log.Logger
	NetworkID uint32
	ChainID   ids.ID
	FeeToken  ids.ID
	Router    Router
	Vault     Vault
	Allowlist *Allowlist
}

// Settler implements wallet.Settler.
type Settler struct {
	log       log.Logger
	networkID uint32
	chainID   ids.ID
	feeToken  ids.ID
	router    Router
	vault     Vault
	allowlist *Allowlist
}

func New(config Config) *Settler {
	s := &Settler{
		log:       config.Log,
		networkID: config.NetworkID,
		chainID:   config.ChainID,
		feeToken:  config.FeeToken,
		router:    config.Router,
		vault:     config.Vault,
		allowlist: config.Allowlist,
	}
	if s.log == nil {
		s.log = log.NoLog{}
	}
	return s
}

// Settle performs the transfer of a decided transaction. For local
// destinations it moves value directly; for remote ones it verifies the
// allow-list, pays the delivery fee and submits the encoded intent to the
// bridge. The returned id is the bridge message id (ids.Empty for local).
func (s *Settler) Settle(ctx context.Context, tx *wallet.Transaction) (ids.ID, uint64, error) {
	if tx.Local(s.chainID) {
		return ids.Empty, 0, s.settleLocal(tx)
	}
	return s.settleRemote(ctx, tx)
}

func (s *Settler) settleLocal(tx *wallet.Transaction) error {
	var err error
	if tx.Token != ids.Empty {
		err = s.vault.TransferToken(tx.Token, tx.To, tx.Amount)
	} else {
		err = s.vault.Transfer(tx.To, tx.Amount, tx.Data)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	s.log.Debug("settled locally",
		log.Uint64("txID", tx.ID),
		log.Stringer("to", tx.To),
		log.Stringer("token", tx.Token),
		log.Uint64("amount", tx.Amount),
	)
	return nil
}

func (s *Settler) settleRemote(ctx context.Context, tx *wallet.Transaction) (ids.ID, uint64, error) {
	if !s.allowlist.Allowed(tx.Chain) {
		return ids.Empty, 0, fmt.Errorf("%w: %s", ErrChainNotAllowed, tx.Chain)
	}

	// The receiving instance applies the intent as a local submission.
	intent, err := message.NewSubmit(
		tx.Proposer,
		tx.To,
		tx.Token,
		ids.Empty,
		tx.Amount,
		tx.Data,
		tx.AutoExecute,
		tx.FeeCurrency,
		tx.GasLimit,
	)
	if err != nil {
		return ids.Empty, 0, err
	}
	msg := &warp.UnsignedMessage{
		NetworkID:     s.networkID,
		SourceChainID: s.chainID,
		Payload:       intent.Bytes(),
	}

	fee, err := s.router.Fee(ctx, tx.Chain, msg)
	if err != nil {
		return ids.Empty, 0, fmt.Errorf("fee quote failed: %w", err)
	}

	// Check funds before submitting so a rejected payment leaves the
	// bridge untouched; authorize the draws only once the bridge accepted
	// the message. A remote native transfer escrows the transferred amount
	// alongside the fee, whichever currency pays the fee.
	feeAsset := ids.Empty
	need := fee
	var escrow uint64
	if tx.Token == ids.Empty {
		escrow = tx.Amount
	}
	if tx.FeeCurrency == message.FeeToken {
		feeAsset = s.feeToken
		if have := s.vault.TokenBalance(s.feeToken); have < fee {
			return ids.Empty, 0, fmt.Errorf("%w: token %s, have %d, need %d",
				ErrInsufficientFeeBalance, s.feeToken, have, fee)
		}
		if have := s.vault.Balance(); have < escrow {
			return ids.Empty, 0, fmt.Errorf("%w: native, have %d, need %d",
				ErrInsufficientFeeBalance, have, escrow)
		}
	} else {
		need, err = math.Add64(fee, escrow)
		if err != nil {
			return ids.Empty, 0, err
		}
		escrow = 0
		if have := s.vault.Balance(); have < need {
			return ids.Empty, 0, fmt.Errorf("%w: native, have %d, need %d",
				ErrInsufficientFeeBalance, have, need)
		}
	}

	msgID, err := s.router.Send(ctx, tx.Chain, msg)
	if err != nil {
		return ids.Empty, 0, fmt.Errorf("bridge send failed: %w", err)
	}
	if err := s.vault.AuthorizeFee(feeAsset, need); err != nil {
		return ids.Empty, 0, err
	}
	if escrow > 0 {
		if err := s.vault.AuthorizeFee(ids.Empty, escrow); err != nil {
			return ids.Empty, 0, err
		}
	}

	s.log.Info("relayed to remote chain",
		log.Uint64("txID", tx.ID),
		log.Stringer("chain", tx.Chain),
		log.Stringer("messageID", msgID),
		log.Stringer("token", tx.Token),
		log.Uint64("amount", tx.Amount),
		log.Uint64("fee", fee),
	)
	return msgID, fee, nil
}
