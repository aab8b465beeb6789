package entity

import "bytes"

// Account is a record as the host stores it: an owner, a balance and a fixed-size buffer.
type Account struct {
	ID       Key
	OwnerKey Key
	Lamports uint64
	Buffer   []byte
}

func NewAccount(id, owner Key, balance uint64, size int) *Account {
	return &Account{
		ID:       id,
		OwnerKey: owner,
		Lamports: balance,
		Buffer:   make([]byte, size),
	}
}

func (that *Account) Key() Key {
	return that.ID
}

func (that *Account) Owner() Key {
	return that.OwnerKey
}

func (that *Account) Balance() uint64 {
	return that.Lamports
}

func (that *Account) SetBalance(balance uint64) {
	that.Lamports = balance
}

func (that *Account) Data() []byte {
	return that.Buffer
}

// Clone returns a deep copy, used to detect which accounts a transaction changed.
func (that *Account) Clone() *Account {
	return &Account{
		ID:       that.ID,
		OwnerKey: that.OwnerKey,
		Lamports: that.Lamports,
		Buffer:   bytes.Clone(that.Buffer),
	}
}

func (that *Account) Equal(other *Account) bool {
	return that.ID == other.ID &&
		that.OwnerKey == other.OwnerKey &&
		that.Lamports == other.Lamports &&
		bytes.Equal(that.Buffer, other.Buffer)
}
