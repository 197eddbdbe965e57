// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events keeps the append-only audit log of a wallet instance. Every
// ledger or message state change appends one record with enough fields to
// reconstruct the triggering call. Records are never rewritten or deleted.
package events

import (
	"encoding/binary"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
)

// Type discriminates audit log records.
type Type uint8

const (
	TxSubmitted Type = iota
	TxConfirmed
	TxRevoked
	TxExecuted
	MessageDelivered
	MessageFailed
	MessageRecovered
)

func (t Type) String() string {
	switch t {
	case TxSubmitted:
		return "tx_submitted"
	case TxConfirmed:
		return "tx_confirmed"
	case TxRevoked:
		return "tx_revoked"
	case TxExecuted:
		return "tx_executed"
	case MessageDelivered:
		return "message_delivered"
	case MessageFailed:
		return "message_failed"
	case MessageRecovered:
		return "message_recovered"
	default:
		return "unknown"
	}
}

// Event is one audit log record. Fields that do not apply to the record's
// type are left at their zero value.
type Event struct {
	Type      Type        `serialize:"true" json:"type"`
	Time      int64       `serialize:"true" json:"time"`
	TxID      uint64      `serialize:"true" json:"txID"`
	MessageID ids.ID      `serialize:"true" json:"messageID"`
	Actor     ids.ShortID `serialize:"true" json:"actor"`
	To        ids.ShortID `serialize:"true" json:"to"`
	Chain     ids.ID      `serialize:"true" json:"chain"`
	Token     ids.ID      `serialize:"true" json:"token"`
	Amount    uint64      `serialize:"true" json:"amount"`
	Fee       uint64      `serialize:"true" json:"fee"`
	Detail    string      `serialize:"true" json:"detail,omitempty"`
}

// Log is a db-backed event log. Records are keyed by a big-endian sequence
// number so iteration yields them in append order.
type Log struct {
	mu   sync.Mutex
	db   database.Database
	next uint64
}

// NewLog opens the event log stored in db, recovering the next sequence
// number from the persisted records.
func NewLog(db database.Database) (*Log, error) {
	l := &Log{db: db}

	iter := db.NewIterator()
	defer iter.Release()
	for iter.Next() {
		key := iter.Key()
		if len(key) != 8 {
			continue
		}
		l.next = binary.BigEndian.Uint64(key) + 1
	}
	return l, iter.Error()
}

// Append records e. The caller stamps Time; Append assigns the sequence.
func (l *Log) Append(e *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bytes, err := Codec.Marshal(CodecVersion, e)
	if err != nil {
		return err
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, l.next)
	if err := l.db.Put(key, bytes); err != nil {
		return err
	}
	l.next++
	return nil
}

// List returns all recorded events in append order.
func (l *Log) List() ([]*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*Event
	iter := l.db.NewIterator()
	defer iter.Release()
	for iter.Next() {
		if len(iter.Key()) != 8 {
			continue
		}
		e := &Event{}
		if _, err := Codec.Unmarshal(iter.Value(), e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, iter.Error()
}

// Len returns the number of recorded events.
func (l *Log) Len() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next
}
