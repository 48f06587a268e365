// Package gameid generates sortable identifiers for rooms and game
// histories: UUIDv7 encoded as 26 characters of Crockford base32, so ids
// order by creation time.
package gameid

import (
	"crypto/rand"
	"fmt"
	"time"
)

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Source supplies randomness for deterministic tests.
type Source interface {
	IntN(n int) int
}

// New creates an id from the current time and crypto/rand.
func New() string {
	return NewWithSource(nil)
}

// NewWithSource creates an id using src for the random tail; src may be
// nil, in which case crypto/rand is used.
func NewWithSource(src Source) string {
	var u [16]byte

	now := time.Now().UnixMilli()
	u[0] = byte(now >> 40)
	u[1] = byte(now >> 32)
	u[2] = byte(now >> 24)
	u[3] = byte(now >> 16)
	u[4] = byte(now >> 8)
	u[5] = byte(now)

	if src != nil {
		for i := 6; i < 16; i++ {
			u[i] = byte(src.IntN(256))
		}
	} else {
		if _, err := rand.Read(u[6:]); err != nil {
			panic("gameid: read random bytes: " + err.Error())
		}
	}

	// Version 7, variant 10.
	u[6] = (u[6] & 0x0f) | 0x70
	u[8] = (u[8] & 0x3f) | 0x80

	return encodeBase32(u)
}

func encodeBase32(data [16]byte) string {
	result := make([]byte, 26)
	for i := 0; i < 26; i++ {
		bitOffset := i * 5
		byteIndex := bitOffset / 8
		bitIndex := bitOffset % 8

		var value uint8
		if byteIndex < 16 {
			if bitIndex <= 3 {
				value = (data[byteIndex] >> (3 - bitIndex)) & 0x1f
			} else {
				value = (data[byteIndex] << (bitIndex - 3)) & 0x1f
				if byteIndex+1 < 16 {
					value |= data[byteIndex+1] >> (11 - bitIndex)
				}
			}
		}
		result[i] = alphabet[value]
	}
	return string(result)
}

// Validate checks shape only: 26 characters of the base32 alphabet with a
// first character that keeps the value within 128 bits. Used to reject
// malformed room ids at the transport boundary.
func Validate(id string) error {
	if len(id) != 26 {
		return fmt.Errorf("id must be exactly 26 characters, got %d", len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("id first character must be 0-7, got %c", id[0])
	}
	for i := 0; i < len(id); i++ {
		found := false
		for j := 0; j < len(alphabet); j++ {
			if id[i] == alphabet[j] {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}
