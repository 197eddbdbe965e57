// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wallet

import (
	"github.com/luxfi/metric"
)

type metrics struct {
	txsSubmitted metric.Counter
	txsConfirmed metric.Counter
	txsRevoked   metric.Counter
	txsExecuted  metric.Counter
}

func newMetrics(namespace string) *metrics {
	return &metrics{
		txsSubmitted: metric.NewCounter(metric.CounterOpts{
			Namespace: namespace,
			Name:      "txs_submitted",
			Help:      "Number of transactions submitted to the ledger",
		}),
		txsConfirmed: metric.NewCounter(metric.CounterOpts{
			Namespace: namespace,
			Name:      "txs_confirmed",
			Help:      "Number of confirmations recorded",
		}),
		txsRevoked: metric.NewCounter(metric.CounterOpts{
			Namespace: namespace,
			Name:      "txs_revoked",
			Help:      "Number of confirmations revoked",
		}),
		txsExecuted: metric.NewCounter(metric.CounterOpts{
			Namespace: namespace,
			Name:      "txs_executed",
			Help:      "Number of transactions executed",
		}),
	}
}
