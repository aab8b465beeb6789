package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-program/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-program/internal/codec"
)

// Tag is the discriminator stored at the start of every record.
type Tag uint32

const (
	TagUninitialized Tag = 0
	TagDashboard     Tag = 1
	TagGame          Tag = 2
)

const tagSize = 4

func (that Tag) String() string {
	switch that {
	case TagUninitialized:
		return "uninitialized"
	case TagDashboard:
		return "dashboard"
	case TagGame:
		return "game"
	default:
		return fmt.Sprintf("tag(%d)", uint32(that))
	}
}

// State is the content of a record: Uninitialized, *Dashboard or *Game.
type State interface {
	codec.Marshaler
	Tag() Tag
}

// Uninitialized is the content of a freshly allocated, zero-filled record.
type Uninitialized struct{}

func (Uninitialized) Tag() Tag                           { return TagUninitialized }
func (Uninitialized) Size() int                          { return 0 }
func (Uninitialized) MarshalBinaryTo(_ *codec.Encoder) {}

// StateSize is the number of bytes a record needs to hold a state with the given tag.
func StateSize(tag Tag, dashboardCapacity int) int {
	switch tag {
	case TagDashboard:
		return tagSize + DashboardSize(dashboardCapacity)
	case TagGame:
		return tagSize + gameSize
	default:
		return tagSize
	}
}

// record couples a state with its tag for the codec.
type record struct {
	state State
}

func (that record) Size() int {
	return tagSize + that.state.Size()
}

func (that record) MarshalBinaryTo(enc *codec.Encoder) {
	enc.Uint32(uint32(that.state.Tag()))
	that.state.MarshalBinaryTo(enc)
}

// EncodeState writes the tag and body of state into buf.
func EncodeState(state State, buf []byte) error {
	if err := codec.Encode(record{state: state}, buf); err != nil {
		return fmt.Errorf("failed to encode %s: %w", state.Tag(), err)
	}

	return nil
}

// DecodeState reads a record. The dashboard capacity fixes the dashboard layout.
func DecodeState(buf []byte, dashboardCapacity int) (State, error) {
	if len(buf) < tagSize {
		return nil, fmt.Errorf("%w: record too small for tag: %d bytes", apperror.ErrDeserializationFailed, len(buf))
	}

	tag := Tag(codec.NewDecoder(buf).Uint32())
	body := buf[tagSize:]

	switch tag {
	case TagUninitialized:
		return Uninitialized{}, nil
	case TagDashboard:
		dashboard := &Dashboard{Capacity: dashboardCapacity}
		if err := codec.Decode(body, dashboard); err != nil {
			return nil, fmt.Errorf("failed to decode dashboard: %w", err)
		}
		return dashboard, nil
	case TagGame:
		game := &Game{}
		if err := codec.Decode(body, game); err != nil {
			return nil, fmt.Errorf("failed to decode game: %w", err)
		}
		return game, nil
	default:
		return nil, fmt.Errorf("%w: unknown %s", apperror.ErrDeserializationFailed, tag)
	}
}

// IsEmpty reports whether a record buffer is all zero.
func IsEmpty(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}

	return true
}
