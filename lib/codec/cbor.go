// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for persisted
// structures: chunk manifests, quarantined payloads, and exported
// records. Core Deterministic Encoding (RFC 8949 §4.2) guarantees
// that the same logical value always produces identical bytes, which
// keeps digests over encoded structures stable across processes.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// When decoding into an any-typed target, produce
		// map[string]any rather than the CBOR default
		// map[interface{}]interface{}. Persisted maps here always
		// have string keys, and map[string]any is what the rest of
		// the codebase (and encoding/json interop) expects.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v. Unknown fields are ignored for
// forward compatibility with newer record versions.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage is a raw encoded CBOR value, re-exported so consumers
// import only this package and not fxamacker/cbor directly.
type RawMessage = cbor.RawMessage
