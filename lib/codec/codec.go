// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the canonical binary encoding for stored
// annotation payloads: deterministic CBOR, so the same logical
// sequence always encodes to identical bytes, plus a BLAKE3 content
// hash over that encoding. The import engine compares content hashes
// to recognize byte-identical duplicates without field-by-field
// comparison.
package codec

import (
	"encoding/hex"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are ignored for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Sequence payloads only ever use string map keys, and
		// any-typed targets (Box.Metadata values) must decode to a
		// map type that encoding/json and the rest of the codebase
		// can handle. Integers uniformly decode to int64 so values
		// round-trip comparable regardless of sign.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// ContentHash returns the hex-encoded BLAKE3 hash of v's canonical
// encoding. Equal hashes imply logically equal values (up to fields
// the encoding covers); the deterministic encoder makes the converse
// hold for encodable values.
func ContentHash(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
