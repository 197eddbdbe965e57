// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package inbox applies bridge-delivered messages to the local ledger. The
// transport may credit escrowed funds before the application step runs, so a
// failing message is never reported back as an error: it is quarantined with
// its raw payload and waits for an explicit operator recovery.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/cache"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/msig/events"
	"github.com/luxfi/msig/message"
	"github.com/luxfi/msig/owners"
	"github.com/luxfi/msig/relay"
	"github.com/luxfi/msig/utils/timer/mockable"
)

const payloadCacheSize = 256

var ErrNotAuthorized = errors.New("acting principal is not a wallet owner")

// Envelope is a bridge-delivered message: a tracking id assigned by the
// bridge, the transport-authenticated sender, and the encoded payload.
type Envelope struct {
	MessageID ids.ID
	Sender    ids.ShortID
	Payload   []byte
}

// Ledger is the subset of wallet operations the dispatcher drives.
type Ledger interface {
	Submit(intent *message.Submit) (uint64, error)
	Confirm(ctx context.Context, txID uint64, caller ids.ShortID) error
	Revoke(txID uint64, caller ids.ShortID) error
	Execute(ctx context.Context, txID uint64, caller ids.ShortID) error
}

// Config carries the collaborators of a Dispatcher.
type Config struct {
	Log        log.Logger
	Owners     *owners.Owners
	Ledger     Ledger
	Vault      relay.Vault
	Quarantine *Quarantine
	Events     *events.Log

	// MetricsNamespace prefixes the dispatcher's counters. Empty disables
	// them.
	MetricsNamespace string
}

// Dispatcher decodes, authenticates and applies inbound messages.
type Dispatcher struct {
	log        log.Logger
	clock      mockable.Clock
	owners     *owners.Owners
	ledger     Ledger
	vault      relay.Vault
	quarantine *Quarantine
	events     *events.Log

	// payloads caches decode results so recovery does not re-parse.
	payloads *cache.LRU[ids.ID, message.Payload]

	// recoverMu serializes the pending-check, vault release and status
	// transition of Recover as one step.
	recoverMu sync.Mutex

	delivered, failed, recovered metric.Counter
}

func New(config Config) *Dispatcher {
	d := &Dispatcher{
		log:        config.Log,
		owners:     config.Owners,
		ledger:     config.Ledger,
		vault:      config.Vault,
		quarantine: config.Quarantine,
		events:     config.Events,
		payloads:   &cache.LRU[ids.ID, message.Payload]{Size: payloadCacheSize},
	}
	if d.log == nil {
		d.log = log.NoLog{}
	}
	if ns := config.MetricsNamespace; ns != "" {
		d.delivered = metric.NewCounter(metric.CounterOpts{
			Namespace: ns,
			Name:      "messages_delivered",
			Help:      "Number of inbound messages applied successfully",
		})
		d.failed = metric.NewCounter(metric.CounterOpts{
			Namespace: ns,
			Name:      "messages_failed",
			Help:      "Number of inbound messages moved to quarantine",
		})
		d.recovered = metric.NewCounter(metric.CounterOpts{
			Namespace: ns,
			Name:      "messages_recovered",
			Help:      "Number of quarantined messages recovered",
		})
	}
	return d
}

// Deliver applies one bridge-delivered envelope. It never surfaces an error
// to the transport: any failure inside the decode-authenticate-apply span
// quarantines the message instead.
func (d *Dispatcher) Deliver(ctx context.Context, env *Envelope) {
	now := d.clock.Time().Unix()

	if err := d.apply(ctx, env); err != nil {
		if qErr := d.quarantine.add(&FailedMessage{
			MessageID: env.MessageID,
			Sender:    env.Sender,
			Payload:   env.Payload,
			Reason:    err.Error(),
			Status:    StatusPending,
			FailedAt:  now,
		}); qErr != nil {
			d.log.Error("failed to quarantine message",
				log.Stringer("messageID", env.MessageID),
				log.String("error", qErr.Error()),
			)
		}
		d.appendEvent(&events.Event{
			Type:      events.MessageFailed,
			Time:      now,
			MessageID: env.MessageID,
			Actor:     env.Sender,
			Detail:    err.Error(),
		})
		if d.failed != nil {
			d.failed.Inc()
		}
		d.log.Warn("inbound message quarantined",
			log.Stringer("messageID", env.MessageID),
			log.Stringer("sender", env.Sender),
			log.String("reason", err.Error()),
		)
		return
	}

	d.appendEvent(&events.Event{
		Type:      events.MessageDelivered,
		Time:      now,
		MessageID: env.MessageID,
		Actor:     env.Sender,
	})
	if d.delivered != nil {
		d.delivered.Inc()
	}
	d.log.Info("inbound message applied",
		log.Stringer("messageID", env.MessageID),
		log.Stringer("sender", env.Sender),
	)
}

func (d *Dispatcher) apply(ctx context.Context, env *Envelope) error {
	p, err := message.Parse(env.Payload)
	if err != nil {
		return err
	}
	d.payloads.Put(env.MessageID, p)

	if !d.owners.Contains(p.Actor()) {
		return fmt.Errorf("%w: %s", ErrNotAuthorized, p.Actor())
	}

	switch p := p.(type) {
	case *message.Submit:
		_, err := d.ledger.Submit(p)
		return err
	case *message.Confirm:
		return d.ledger.Confirm(ctx, p.TxID, p.Sender)
	case *message.Revoke:
		return d.ledger.Revoke(p.TxID, p.Sender)
	case *message.Execute:
		return d.ledger.Execute(ctx, p.TxID, p.Sender)
	default:
		return fmt.Errorf("%w: %T", message.ErrWrongType, p)
	}
}

// Recover releases the asset embedded in a quarantined message directly to
// recipient, bypassing the normal apply path, and marks the message
// recovered. It succeeds at most once per message.
func (d *Dispatcher) Recover(messageID ids.ID, recipient ids.ShortID, caller ids.ShortID) error {
	if !d.owners.Contains(caller) {
		return fmt.Errorf("%w: %s", ErrNotAuthorized, caller)
	}

	d.recoverMu.Lock()
	defer d.recoverMu.Unlock()

	msg, err := d.quarantine.get(messageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.Status != StatusPending {
		return fmt.Errorf("%w: %s", ErrNotQuarantined, messageID)
	}

	// Close the record before touching the vault: a half-done recovery must
	// never leave the message pending with its asset already released, since
	// a retry would release it twice. A failed release reopens the record.
	msg.Status = StatusRecovered
	msg.RecoveredAt = d.clock.Time().Unix()
	msg.RecoveredTo = recipient
	if err := d.quarantine.update(msg); err != nil {
		return err
	}

	// Release whatever the payload escrowed. A payload that cannot be
	// decoded (or embeds no transfer) carries no recoverable asset; the
	// record is still closed so it stops showing as pending.
	if intent, ok := d.decode(msg); ok && intent.Amount > 0 {
		if intent.Token != ids.Empty {
			err = d.vault.TransferToken(intent.Token, recipient, intent.Amount)
		} else {
			err = d.vault.Transfer(recipient, intent.Amount, nil)
		}
		if err != nil {
			msg.Status = StatusPending
			msg.RecoveredAt = 0
			msg.RecoveredTo = ids.ShortEmpty
			if rbErr := d.quarantine.update(msg); rbErr != nil {
				d.log.Error("failed to reopen quarantine record",
					log.Stringer("messageID", messageID),
					log.String("error", rbErr.Error()),
				)
			}
			return err
		}
	}

	d.appendEvent(&events.Event{
		Type:      events.MessageRecovered,
		Time:      msg.RecoveredAt,
		MessageID: messageID,
		Actor:     caller,
		To:        recipient,
	})
	if d.recovered != nil {
		d.recovered.Inc()
	}
	d.log.Info("quarantined message recovered",
		log.Stringer("messageID", messageID),
		log.Stringer("recipient", recipient),
		log.Stringer("caller", caller),
	)
	return nil
}

// Pending lists the ids of quarantined messages awaiting recovery.
func (d *Dispatcher) Pending() ([]ids.ID, error) {
	return d.quarantine.Pending()
}

func (d *Dispatcher) decode(msg *FailedMessage) (*message.Submit, bool) {
	p, ok := d.payloads.Get(msg.MessageID)
	if !ok {
		var err error
		p, err = message.Parse(msg.Payload)
		if err != nil {
			return nil, false
		}
		d.payloads.Put(msg.MessageID, p)
	}
	intent, ok := p.(*message.Submit)
	return intent, ok
}

func (d *Dispatcher) appendEvent(e *events.Event) {
	if d.events == nil {
		return
	}
	if err := d.events.Append(e); err != nil {
		d.log.Error("failed to append audit event",
			log.Stringer("type", e.Type),
			log.String("error", err.Error()),
		)
	}
}
