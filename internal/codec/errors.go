// SPDX-License-Identifier: MIT

package codec

import "errors"

var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
	ErrInvalidConfig    = errors.New("invalid codec configuration")
	ErrDecodeFailed     = errors.New("decode failed")
)
