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
	"github.com/luxfi/math/set"
	"github.com/luxfi/utils"
)

var ErrNotAdmin = errors.New("caller is not the allow-list admin")

// Allowlist is the set of remote chains eligible for outbound relay. It is
// consulted only at settlement time, so a transaction may be submitted and
// confirmed for a destination that is not (or no longer) allow-listed.
type Allowlist struct {
	log   log.Logger
	db    database.Database
	admin ids.ShortID

	mu     sync.RWMutex
	chains set.Set[ids.ID]
}

// NewAllowlist opens the allow-list stored in db. Only admin may mutate it.
func NewAllowlist(db database.Database, admin ids.ShortID, logger log.Logger) (*Allowlist, error) {
	a := &Allowlist{
		log:    logger,
		db:     db,
		admin:  admin,
		chains: set.Of[ids.ID](),
	}
	if a.log == nil {
		a.log = log.NoLog{}
	}

	iter := db.NewIterator()
	defer iter.Release()
	for iter.Next() {
		chain, err := ids.ToID(iter.Key())
		if err != nil {
			continue
		}
		a.chains.Add(chain)
	}
	return a, iter.Error()
}

// SetAllowed adds or removes chain from the allow-list.
func (a *Allowlist) SetAllowed(chain ids.ID, allowed bool, caller ids.ShortID) error {
	if caller != a.admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if allowed {
		if err := a.db.Put(chain[:], []byte{1}); err != nil {
			return err
		}
		a.chains.Add(chain)
	} else {
		if err := a.db.Delete(chain[:]); err != nil {
			return err
		}
		a.chains.Remove(chain)
	}

	a.log.Info("allow-list updated",
		log.Stringer("chain", chain),
		log.Bool("allowed", allowed),
	)
	return nil
}

// Allowed reports whether chain is eligible for outbound relay.
func (a *Allowlist) Allowed(chain ids.ID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.chains.Contains(chain)
}

// List returns the allow-listed chains in sorted order.
func (a *Allowlist) List() []ids.ID {
	a.mu.RLock()
	defer a.mu.RUnlock()

	chains := a.chains.List()
	utils.Sort(chains)
	return chains
}
