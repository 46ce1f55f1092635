// Package json centralizes the jsoniter configuration used for all wire
// encoding in the hub. Import this package instead of encoding/json so every
// envelope on the socket is encoded by the same API instance.
package json

import jsoniter "github.com/json-iterator/go"

// JSON is the jsoniter instance shared across the codebase.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// Marshal is a shorthand for JSON.Marshal.
	Marshal = JSON.Marshal

	// Unmarshal is a shorthand for JSON.Unmarshal.
	Unmarshal = JSON.Unmarshal

	// MarshalToString is a shorthand for JSON.MarshalToString.
	MarshalToString = JSON.MarshalToString

	// NewEncoder is a shorthand for JSON.NewEncoder.
	NewEncoder = JSON.NewEncoder

	// NewDecoder is a shorthand for JSON.NewDecoder.
	NewDecoder = JSON.NewDecoder
)
