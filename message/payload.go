// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package message defines the wire format for wallet intents relayed between
// wallet instances. The payload variants form a closed set registered on the
// codec, so a receiving instance dispatches on the decoded concrete type
// rather than on a string tag.
package message

import (
	"errors"
	"fmt"

	"github.com/luxfi/ids"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrWrongType        = errors.New("wrong payload type")

	_ Payload = (*Submit)(nil)
	_ Payload = (*Confirm)(nil)
	_ Payload = (*Revoke)(nil)
	_ Payload = (*Execute)(nil)
)

// Payload is one operation a remote wallet instance can apply to its ledger.
type Payload interface {
	// Bytes returns the serialized form of this payload. It assumes the
	// payload was built by New… or Parse.
	Bytes() []byte

	// Actor returns the owner on whose behalf the payload acts.
	Actor() ids.ShortID

	// Verify checks field-level invariants that the codec cannot.
	Verify() error

	initialize(b []byte)
}

type payload struct {
	bytes []byte
}

func (p *payload) Bytes() []byte {
	return p.bytes
}

func (p *payload) initialize(bytes []byte) {
	p.bytes = bytes
}

// Initialize recalculates the result of Bytes. It modifies p.
func Initialize(p Payload) error {
	bytes, err := Codec.Marshal(CodecVersion, &p)
	if err != nil {
		return fmt.Errorf("couldn't marshal %T payload: %w", p, err)
	}
	p.initialize(bytes)
	return nil
}

// Parse decodes bytes into a verified payload. Truncated, type-mismatched or
// otherwise undecodable input fails with ErrMalformedPayload.
func Parse(bytes []byte) (Payload, error) {
	var p Payload
	if _, err := Codec.Unmarshal(bytes, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	p.initialize(bytes)
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return p, nil
}
