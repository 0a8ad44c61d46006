//go:build sonic

package codec

import (
	"github.com/bytedance/sonic"
)

var JSONMarshal = sonic.Marshal
var JSONUnmarshal = sonic.Unmarshal
