package database

import (
	"encoding/hex"
	"errors"
	"strings"
)

// Bytes reads and writes bytea columns in hex format.
var Bytes = NewScalar("bytea", DecodeHex, func(b []byte) (string, error) { return EncodeHex(b), nil })

var errHexPrefix = errors.New(`hex bytea must start with \x`)

// DecodeHex decodes the hex bytea format: a \x prefix followed by an even
// number of hex digits in either case.
func DecodeHex(s string) ([]byte, error) {
	body, ok := strings.CutPrefix(s, `\x`)
	if !ok {
		return nil, errHexPrefix
	}
	if len(body)%2 != 0 {
		return nil, hex.ErrLength
	}
	return hex.DecodeString(body)
}

// EncodeHex encodes b in hex bytea format with lower-case digits.
func EncodeHex(b []byte) string {
	buf := make([]byte, 2+hex.EncodedLen(len(b)))
	buf[0], buf[1] = '\\', 'x'
	hex.Encode(buf[2:], b)
	return string(buf)
}
