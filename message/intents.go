// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package message

import (
	"errors"
	"fmt"

	"github.com/luxfi/ids"
)

var (
	ErrEmptySender    = errors.New("empty sender address")
	ErrEmptyRecipient = errors.New("empty recipient address")
	ErrBadFeeCurrency = errors.New("unknown fee currency")
)

// FeeCurrency selects which asset pays the bridge delivery fee.
type FeeCurrency uint8

const (
	// FeeNative pays delivery fees in the chain's native unit.
	FeeNative FeeCurrency = iota
	// FeeToken pays delivery fees in the wallet's designated fee token.
	FeeToken
)

func (f FeeCurrency) String() string {
	switch f {
	case FeeNative:
		return "native"
	case FeeToken:
		return "token"
	default:
		return "unknown"
	}
}

func (f FeeCurrency) Verify() error {
	if f > FeeToken {
		return fmt.Errorf("%w: %d", ErrBadFeeCurrency, f)
	}
	return nil
}

// Submit proposes a new transaction on the receiving ledger.
type Submit struct {
	payload

	Sender      ids.ShortID `serialize:"true" json:"sender"`
	To          ids.ShortID `serialize:"true" json:"to"`
	Token       ids.ID      `serialize:"true" json:"token"` // ids.Empty: native value
	Chain       ids.ID      `serialize:"true" json:"chain"` // ids.Empty: execute locally
	Amount      uint64      `serialize:"true" json:"amount"`
	Data        []byte      `serialize:"true" json:"data"`
	AutoExecute bool        `serialize:"true" json:"autoExecute"`
	FeeCurrency FeeCurrency `serialize:"true" json:"feeCurrency"`
	GasLimit    uint64      `serialize:"true" json:"gasLimit"`
}

func (s *Submit) Actor() ids.ShortID {
	return s.Sender
}

func (s *Submit) Verify() error {
	switch {
	case s.Sender == ids.ShortEmpty:
		return ErrEmptySender
	case s.To == ids.ShortEmpty:
		return ErrEmptyRecipient
	}
	return s.FeeCurrency.Verify()
}

// NewSubmit creates a new initialized Submit.
func NewSubmit(
	sender ids.ShortID,
	to ids.ShortID,
	token ids.ID,
	chain ids.ID,
	amount uint64,
	data []byte,
	autoExecute bool,
	feeCurrency FeeCurrency,
	gasLimit uint64,
) (*Submit, error) {
	msg := &Submit{
		Sender:      sender,
		To:          to,
		Token:       token,
		Chain:       chain,
		Amount:      amount,
		Data:        data,
		AutoExecute: autoExecute,
		FeeCurrency: feeCurrency,
		GasLimit:    gasLimit,
	}
	return msg, Initialize(msg)
}

// Confirm adds the sender's approval to an open transaction.
type Confirm struct {
	payload

	Sender ids.ShortID `serialize:"true" json:"sender"`
	TxID   uint64      `serialize:"true" json:"txID"`
}

func (c *Confirm) Actor() ids.ShortID {
	return c.Sender
}

func (c *Confirm) Verify() error {
	if c.Sender == ids.ShortEmpty {
		return ErrEmptySender
	}
	return nil
}

// NewConfirm creates a new initialized Confirm.
func NewConfirm(sender ids.ShortID, txID uint64) (*Confirm, error) {
	msg := &Confirm{
		Sender: sender,
		TxID:   txID,
	}
	return msg, Initialize(msg)
}

// Revoke withdraws the sender's prior approval from an open transaction.
type Revoke struct {
	payload

	Sender ids.ShortID `serialize:"true" json:"sender"`
	TxID   uint64      `serialize:"true" json:"txID"`
}

func (r *Revoke) Actor() ids.ShortID {
	return r.Sender
}

func (r *Revoke) Verify() error {
	if r.Sender == ids.ShortEmpty {
		return ErrEmptySender
	}
	return nil
}

// NewRevoke creates a new initialized Revoke.
func NewRevoke(sender ids.ShortID, txID uint64) (*Revoke, error) {
	msg := &Revoke{
		Sender: sender,
		TxID:   txID,
	}
	return msg, Initialize(msg)
}

// Execute requests execution of a transaction that has reached quorum.
type Execute struct {
	payload

	Sender ids.ShortID `serialize:"true" json:"sender"`
	TxID   uint64      `serialize:"true" json:"txID"`
}

func (e *Execute) Actor() ids.ShortID {
	return e.Sender
}

func (e *Execute) Verify() error {
	if e.Sender == ids.ShortEmpty {
		return ErrEmptySender
	}
	return nil
}

// NewExecute creates a new initialized Execute.
func NewExecute(sender ids.ShortID, txID uint64) (*Execute, error) {
	msg := &Execute{
		Sender: sender,
		TxID:   txID,
	}
	return msg, Initialize(msg)
}
