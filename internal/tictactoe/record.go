package tictactoe

import (
	"bytes"

	"github.com/rocketscienceinc/tictactoe-program/internal/entity"
)

// Record is a persistent, externally owned account handed to the processor for one request.
type Record interface {
	Key() entity.Key
	Owner() entity.Key
	Balance() uint64
	SetBalance(balance uint64)
	Data() []byte
}

// staged holds the pending content and balance of a record until commit.
type staged struct {
	record  Record
	data    []byte
	balance uint64
}

func (that *staged) write(state entity.State) error {
	data := bytes.Clone(that.record.Data())
	if err := entity.EncodeState(state, data); err != nil {
		return err
	}

	that.data = data

	return nil
}

func (that *staged) commit() {
	if that.data != nil {
		copy(that.record.Data(), that.data)
	}

	if that.balance != that.record.Balance() {
		that.record.SetBalance(that.balance)
	}
}

// transaction buffers every mutation of a request. Nothing reaches the
// records before commit.
type transaction struct {
	staged []*staged
}

func (that *transaction) stage(record Record) *staged {
	s := &staged{record: record, balance: record.Balance()}
	that.staged = append(that.staged, s)

	return s
}

func (that *transaction) commit() {
	for _, s := range that.staged {
		s.commit()
	}
}
