// Package command decodes the instruction data accepted by the program.
//
// Layout: u32 little-endian kind, then u8 x and u8 y for Move; the whole
// instruction is zero padded to Size bytes.
package command

import (
	"fmt"
	"strings"

	"github.com/rocketscienceinc/tictactoe-program/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-program/internal/codec"
)

const Size = 6

type Kind uint32

const (
	InitDashboard Kind = iota
	InitPlayer
	InitGame
	Advertise
	Join
	KeepAlive
	Move
)

var kindNames = map[Kind]string{
	InitDashboard: "init-dashboard",
	InitPlayer:    "init-player",
	InitGame:      "init-game",
	Advertise:     "advertise",
	Join:          "join",
	KeepAlive:     "keep-alive",
	Move:          "move",
}

func (that Kind) String() string {
	if name, ok := kindNames[that]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", uint32(that))
}

// ParseKind resolves a kind by its name.
func ParseKind(name string) (Kind, error) {
	for kind, kindName := range kindNames {
		if strings.EqualFold(kindName, name) {
			return kind, nil
		}
	}

	return 0, fmt.Errorf("%w: unknown command %q", apperror.ErrInvalidInstruction, name)
}

// Command is a decoded instruction. X and Y are only meaningful for Move.
type Command struct {
	Kind Kind
	X    uint8
	Y    uint8
}

func (that Command) String() string {
	if that.Kind == Move {
		return fmt.Sprintf("move(%d, %d)", that.X, that.Y)
	}

	return that.Kind.String()
}

func (that *Command) Size() int {
	return Size
}

func (that *Command) MarshalBinaryTo(enc *codec.Encoder) {
	enc.Uint32(uint32(that.Kind))
	enc.Uint8(that.X)
	enc.Uint8(that.Y)
}

func (that *Command) UnmarshalBinaryFrom(dec *codec.Decoder) {
	that.Kind = Kind(dec.Uint32())
	that.X = dec.Uint8()
	that.Y = dec.Uint8()
}

// Decode parses instruction data. Coordinates are not range checked here;
// the game rejects moves off the board.
func Decode(data []byte) (Command, error) {
	var cmd Command
	if err := codec.Decode(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("failed to decode command: %w", err)
	}

	if _, ok := kindNames[cmd.Kind]; !ok {
		return Command{}, fmt.Errorf("%w: %s", apperror.ErrInvalidInstruction, cmd.Kind)
	}

	if cmd.Kind != Move {
		cmd.X, cmd.Y = 0, 0
	}

	return cmd, nil
}

// Encode returns the padded instruction data for cmd.
func Encode(cmd Command) []byte {
	data := make([]byte, Size)
	if err := codec.Encode(&cmd, data); err != nil {
		// data is always exactly Size bytes
		panic(err)
	}

	return data
}
