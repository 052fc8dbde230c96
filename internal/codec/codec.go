// Package codec defines the pluggable wire payload format §6.6 leaves
// to the user ("the payload format is delegated to the user-chosen
// serialization; the core does not constrain it beyond round-trip-
// equal"). internal/runtime.Value is the in-memory shape every codec
// converts to and from bytes.
package codec

import "github.com/klor-lang/klor/internal/runtime/value"

// Codec converts a runtime value to and from a transport payload.
type Codec interface {
	Encode(v value.Value) ([]byte, error)
	Decode(payload []byte) (value.Value, error)
}
