//go:build !sonic

// Package codec selects the JSON implementation for the daemon. The default
// build uses goccy/go-json; building with the sonic tag swaps in
// bytedance/sonic on supported platforms.
package codec

import (
	"github.com/goccy/go-json"
)

var JSONMarshal = json.Marshal
var JSONUnmarshal = json.Unmarshal
