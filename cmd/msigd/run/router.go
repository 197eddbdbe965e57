// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"context"

	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/warp"

	"github.com/luxfi/msig/relay"
)

var _ relay.Router = (*stubRouter)(nil)

// stubRouter stands in for the messaging bridge in standalone deployments.
// It quotes a flat fee and accepts every payload, deriving the tracking id
// from the message bytes.
// TODO: replace with a client for the bridge RPC once its endpoint schema
// is published.
type stubRouter struct {
	log log.Logger
	fee uint64
}

func newStubRouter(logger log.Logger, fee uint64) *stubRouter {
	return &stubRouter{
		log: logger,
		fee: fee,
	}
}

func (r *stubRouter) Fee(context.Context, ids.ID, *warp.UnsignedMessage) (uint64, error) {
	return r.fee, nil
}

func (r *stubRouter) Send(_ context.Context, chain ids.ID, msg *warp.UnsignedMessage) (ids.ID, error) {
	messageID := ids.ID(hash.ComputeHash256Array(msg.Payload))
	r.log.Info("accepted outbound message",
		log.Stringer("chain", chain),
		log.Stringer("messageID", messageID),
		log.Int("payloadLen", len(msg.Payload)),
	)
	return messageID, nil
}
