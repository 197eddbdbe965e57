// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wallet

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/msig/message"
)

// Transaction is one proposed action tracked from submission through
// execution. Identity is the monotonically increasing ID assigned at
// submission; it is never reused. Transactions are never deleted — an
// unexecuted transaction stays open forever.
type Transaction struct {
	ID uint64 `serialize:"true" json:"id"`

	// Intent
	To          ids.ShortID         `serialize:"true" json:"to"`
	Token       ids.ID              `serialize:"true" json:"token"` // ids.Empty: native value
	Chain       ids.ID              `serialize:"true" json:"chain"` // ids.Empty: execute locally
	Amount      uint64              `serialize:"true" json:"amount"`
	Data        []byte              `serialize:"true" json:"data"`
	AutoExecute bool                `serialize:"true" json:"autoExecute"`
	FeeCurrency message.FeeCurrency `serialize:"true" json:"feeCurrency"`
	GasLimit    uint64              `serialize:"true" json:"gasLimit"`

	// Provenance
	Proposer  ids.ShortID `serialize:"true" json:"proposer"`
	CreatedAt int64       `serialize:"true" json:"createdAt"`

	// Mutable state. Confirmations always equals the size of the
	// confirmation set held by the wallet; Executed only ever flips
	// false to true.
	Confirmations uint32 `serialize:"true" json:"confirmations"`
	Executed      bool   `serialize:"true" json:"executed"`
	ExecutedAt    int64  `serialize:"true" json:"executedAt"`
}

// Local reports whether the transaction executes on the given home chain
// rather than being relayed to a remote peer ledger.
func (tx *Transaction) Local(homeChain ids.ID) bool {
	return tx.Chain == ids.Empty || tx.Chain == homeChain
}
