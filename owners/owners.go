// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package owners defines the fixed set of accounts authorized to operate a
// multi-party wallet and the quorum threshold its transactions must reach.
package owners

import (
	"errors"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
	"github.com/luxfi/utils"
)

var (
	ErrNilOwners        = errors.New("nil owners")
	ErrEmptyOwner       = errors.New("empty owner address")
	ErrDuplicateOwner   = errors.New("duplicate owner address")
	ErrTooFewOwners     = errors.New("at least two owners required")
	ErrThresholdZero    = errors.New("threshold must be positive")
	ErrThresholdTooHigh = errors.New("threshold exceeds owner count")
)

// Owners is the authorization registry of one wallet instance. Membership
// and threshold are fixed at construction; there is no mutation path.
type Owners struct {
	Threshold uint32        `serialize:"true" json:"threshold"`
	Addrs     []ids.ShortID `serialize:"true" json:"addresses"`

	// addrSet mirrors Addrs for O(1) membership checks. Populated by New
	// and by Verify for decoded values.
	addrSet set.Set[ids.ShortID]
}

// New returns a validated owner set. The supplied addresses are copied and
// kept sorted so that two wallets with the same membership serialize
// identically.
func New(threshold uint32, addrs []ids.ShortID) (*Owners, error) {
	o := &Owners{
		Threshold: threshold,
		Addrs:     make([]ids.ShortID, len(addrs)),
	}
	copy(o.Addrs, addrs)
	utils.Sort(o.Addrs)
	if err := o.Verify(); err != nil {
		return nil, err
	}
	return o, nil
}

// Verify checks the construction invariants: at least two distinct, non-empty
// addresses and a threshold in [1, len(Addrs)]. A 1-of-1 configuration is
// rejected; the wallet requires genuine multi-party agreement.
func (o *Owners) Verify() error {
	switch {
	case o == nil:
		return ErrNilOwners
	case len(o.Addrs) < 2:
		return fmt.Errorf("%w: got %d", ErrTooFewOwners, len(o.Addrs))
	case o.Threshold == 0:
		return ErrThresholdZero
	case o.Threshold > uint32(len(o.Addrs)):
		return fmt.Errorf("%w: %d > %d", ErrThresholdTooHigh, o.Threshold, len(o.Addrs))
	}
	for _, addr := range o.Addrs {
		if addr == ids.ShortEmpty {
			return ErrEmptyOwner
		}
	}
	if !utils.IsSortedAndUnique(o.Addrs) {
		return ErrDuplicateOwner
	}
	o.addrSet = set.Of(o.Addrs...)
	return nil
}

// Contains reports whether addr is a member of the owner set.
func (o *Owners) Contains(addr ids.ShortID) bool {
	return o.addrSet.Contains(addr)
}

// List returns the owner addresses in sorted order.
func (o *Owners) List() []ids.ShortID {
	addrs := make([]ids.ShortID, len(o.Addrs))
	copy(addrs, o.Addrs)
	return addrs
}

// Len returns the number of owners.
func (o *Owners) Len() int {
	return len(o.Addrs)
}
