// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package inbox

import (
	"errors"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/utils"
)

var ErrNotQuarantined = errors.New("message not quarantined")

// Status tracks a quarantined message through its single allowed transition.
type Status uint8

const (
	StatusPending Status = iota
	StatusRecovered
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRecovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// FailedMessage is the durable record of an inbound message whose
// application failed. The raw payload is kept so an operator can recover
// the asset it embeds.
type FailedMessage struct {
	MessageID   ids.ID      `serialize:"true" json:"messageID"`
	Sender      ids.ShortID `serialize:"true" json:"sender"`
	Payload     []byte      `serialize:"true" json:"payload"`
	Reason      string      `serialize:"true" json:"reason"`
	Status      Status      `serialize:"true" json:"status"`
	FailedAt    int64       `serialize:"true" json:"failedAt"`
	RecoveredAt int64       `serialize:"true" json:"recoveredAt"`
	RecoveredTo ids.ShortID `serialize:"true" json:"recoveredTo"`
}

// Quarantine provides persistent storage for failed inbound messages.
type Quarantine struct {
	mu sync.RWMutex
	db database.Database
}

// NewQuarantine opens the quarantine store backed by db.
func NewQuarantine(db database.Database) *Quarantine {
	return &Quarantine{db: db}
}

// add records a dispatch failure. The first failure for a message id wins;
// redelivery of an already quarantined message changes nothing.
func (q *Quarantine) add(msg *FailedMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if has, err := q.db.Has(msg.MessageID[:]); err != nil {
		return err
	} else if has {
		return nil
	}
	return q.put(msg)
}

// get returns the record for messageID, or nil if there is none.
func (q *Quarantine) get(messageID ids.ID) (*FailedMessage, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	bytes, err := q.db.Get(messageID[:])
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	msg := &FailedMessage{}
	if _, err := Codec.Unmarshal(bytes, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// update persists a status change to an existing record.
func (q *Quarantine) update(msg *FailedMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.put(msg)
}

func (q *Quarantine) put(msg *FailedMessage) error {
	bytes, err := Codec.Marshal(codecVersion, msg)
	if err != nil {
		return err
	}
	return q.db.Put(msg.MessageID[:], bytes)
}

// Pending returns the ids of messages awaiting operator recovery, sorted.
func (q *Quarantine) Pending() ([]ids.ID, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var pending []ids.ID
	iter := q.db.NewIterator()
	defer iter.Release()
	for iter.Next() {
		msg := &FailedMessage{}
		if _, err := Codec.Unmarshal(iter.Value(), msg); err != nil {
			return nil, err
		}
		if msg.Status == StatusPending {
			pending = append(pending, msg.MessageID)
		}
	}
	utils.Sort(pending)
	return pending, iter.Error()
}
