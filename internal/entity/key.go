package entity

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

const KeySize = 32

var ErrInvalidKey = errors.New("invalid key")

// Key identifies records, their owners and players. It is compared for equality only.
type Key [KeySize]byte

func NewRandomKey() (Key, error) {
	var key Key
	if _, err := rand.Read(key[:]); err != nil {
		return Key{}, fmt.Errorf("failed to read random key: %w", err)
	}

	return key, nil
}

func ParseKey(s string) (Key, error) {
	var key Key

	raw, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	if len(raw) != KeySize {
		return Key{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, KeySize, len(raw))
	}

	copy(key[:], raw)

	return key, nil
}

func (that Key) String() string {
	return hex.EncodeToString(that[:])
}

func (that Key) IsZero() bool {
	return that == Key{}
}

func (that Key) MarshalText() ([]byte, error) {
	return []byte(that.String()), nil
}

func (that *Key) UnmarshalText(text []byte) error {
	key, err := ParseKey(string(text))
	if err != nil {
		return err
	}

	*that = key

	return nil
}
