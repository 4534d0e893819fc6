// Package canonical produces byte-deterministic JSON and the SHA-256 digests
// derived from it. Every hash, integrity check, and replay comparison in this
// module flows through Canonical/Hash.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/gowebpki/jcs"
)

// Canonical serializes v to RFC 8785 canonical JSON: keys sorted at every
// nesting level, no insignificant whitespace, ASCII-safe escaping.
//
// v is first marshaled with the standard library (so struct tags, omitempty,
// and custom MarshalJSON methods are honored), then transformed into JCS
// form. JCS leaves non-ASCII characters literal, so they are then escaped as
// lowercase \uXXXX sequences (surrogate pairs above U+FFFF). Map insertion
// order never affects the result; slice/array order is preserved and is
// significant.
func Canonical(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	transformed, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: jcs transform: %w", err)
	}
	var out bytes.Buffer
	for _, r := range string(transformed) {
		switch {
		case r < utf8.RuneSelf:
			out.WriteByte(byte(r))
		case r > 0xFFFF:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&out, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(&out, `\u%04x`, r)
		}
	}
	return out.Bytes(), nil
}

// MustCanonical panics on marshal failure. Reserved for values whose
// marshaling cannot fail (fixed internal structs), never for user input.
func MustCanonical(v interface{}) []byte {
	b, err := Canonical(v)
	if err != nil {
		panic(err)
	}
	return b
}

// HashBytes returns the lowercase hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Hash returns the SHA-256 digest of Canonical(v), as 64 lowercase hex
// characters. hash(v1) == hash(v2) iff v1 and v2 are structurally equal
// under canonicalization.
func Hash(v interface{}) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// MustHash panics on marshal failure; see MustCanonical.
func MustHash(v interface{}) string {
	h, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return h
}

// String renders the canonical JSON as a string, for embedding in text
// artifacts (e.g. the integrity statement) or logging.
func String(v interface{}) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
