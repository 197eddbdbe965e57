// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package json

import (
	"net/http"
	"strings"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
)

// NewCodec returns a JSON-RPC 2.0 codec that uppercases the first letter of
// the requested method, so lowerCamel wire names resolve to exported Go
// methods.
func NewCodec() Codec {
	return Codec{json2.NewCodec()}
}

type Codec struct {
	*json2.Codec
}

func (c Codec) NewRequest(r *http.Request) rpc.CodecRequest {
	return requestParser{c.Codec.NewRequest(r)}
}

type requestParser struct {
	rpc.CodecRequest
}

func (p requestParser) Method() (string, error) {
	method, err := p.CodecRequest.Method()
	if err != nil {
		return method, err
	}
	service, function, ok := strings.Cut(method, ".")
	if !ok || function == "" {
		return method, nil
	}
	return service + "." + strings.ToUpper(function[:1]) + function[1:], nil
}
