package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-program/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-program/internal/codec"
)

const (
	StatusFinished = "finished"
	StatusOngoing  = "ongoing"
	StatusWaiting  = "waiting"

	BoardSide = 3
)

// Mark is the symbol a player puts on the board.
type Mark uint8

const (
	MarkX Mark = 1
	MarkO Mark = 2
)

func (that Mark) String() string {
	switch that {
	case MarkX:
		return "X"
	case MarkO:
		return "O"
	default:
		return ""
	}
}

func (that Mark) Other() Mark {
	if that == MarkX {
		return MarkO
	}
	return MarkX
}

// Cell is a board square: empty or holding a mark.
type Cell uint8

const (
	EmptyCell Cell = 0
	CellX     Cell = Cell(MarkX)
	CellO     Cell = Cell(MarkO)
)

func (that Cell) String() string {
	return Mark(that).String()
}

// Outcome is one of InProgress, Won or Draw.
type Outcome interface {
	isOutcome()
}

type InProgress struct{}

type Won struct {
	By Mark
}

type Draw struct{}

func (InProgress) isOutcome() {}
func (Won) isOutcome()        {}
func (Draw) isOutcome()       {}

var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Game is the persisted state of one match. PlayerO stays nil until somebody joins.
type Game struct {
	PlayerX      Key
	PlayerO      *Key
	Board        [BoardSide * BoardSide]Cell
	Turn         Mark
	LastActivity uint64
	Outcome      Outcome
}

func NewGame(first Key, now uint64) *Game {
	return &Game{
		PlayerX:      first,
		Turn:         MarkX,
		LastActivity: now,
		Outcome:      InProgress{},
	}
}

func (that *Game) Tag() Tag {
	return TagGame
}

func (that *Game) IsWaiting() bool {
	return that.PlayerO == nil
}

func (that *Game) IsFinished() bool {
	switch that.Outcome.(type) {
	case Won, Draw:
		return true
	default:
		return false
	}
}

func (that *Game) IsOngoing() bool {
	_, ok := that.Outcome.(InProgress)
	return ok && !that.IsWaiting()
}

func (that *Game) Status() string {
	switch {
	case that.IsFinished():
		return StatusFinished
	case that.IsWaiting():
		return StatusWaiting
	default:
		return StatusOngoing
	}
}

// MarkOf returns the mark of a registered player.
func (that *Game) MarkOf(player Key) (Mark, bool) {
	if player == that.PlayerX {
		return MarkX, true
	}

	if that.PlayerO != nil && *that.PlayerO == player {
		return MarkO, true
	}

	return 0, false
}

// PlayerOf returns the player holding mark, if seated.
func (that *Game) PlayerOf(mark Mark) (Key, bool) {
	switch mark {
	case MarkX:
		return that.PlayerX, true
	case MarkO:
		if that.PlayerO != nil {
			return *that.PlayerO, true
		}
	}

	return Key{}, false
}

// Winner returns the key of the winning player once the game is won.
func (that *Game) Winner() (Key, bool) {
	won, ok := that.Outcome.(Won)
	if !ok {
		return Key{}, false
	}

	return that.PlayerOf(won.By)
}

func (that *Game) Join(player Key, now uint64) error {
	if !that.IsWaiting() || player == that.PlayerX {
		return apperror.ErrGameInProgress
	}

	that.PlayerO = &player
	that.LastActivity = now

	return nil
}

// NextMove marks row x, column y for player and evaluates the board.
func (that *Game) NextMove(player Key, x, y int, now uint64) error {
	mark, ok := that.MarkOf(player)
	if !ok {
		return apperror.ErrPlayerNotFound
	}

	if !that.IsOngoing() {
		return fmt.Errorf("%w: game is %s", apperror.ErrInvalidMove, that.Status())
	}

	if that.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	if x < 0 || x >= BoardSide || y < 0 || y >= BoardSide {
		return fmt.Errorf("%w: (%d, %d) is off the board", apperror.ErrInvalidMove, x, y)
	}

	cell := x*BoardSide + y
	if that.Board[cell] != EmptyCell {
		return fmt.Errorf("%w: (%d, %d) is occupied", apperror.ErrInvalidMove, x, y)
	}

	that.Board[cell] = Cell(mark)
	that.LastActivity = now
	that.Outcome = that.DetermineGameResult()

	if !that.IsFinished() {
		that.Turn = mark.Other()
	}

	return nil
}

// KeepAlive records that player is still around. Timestamps must strictly increase.
func (that *Game) KeepAlive(player Key, now uint64) error {
	if _, ok := that.MarkOf(player); !ok {
		return apperror.ErrPlayerNotFound
	}

	if now <= that.LastActivity {
		return fmt.Errorf("%w: %d is not after %d", apperror.ErrInvalidTimestamp, now, that.LastActivity)
	}

	that.LastActivity = now

	return nil
}

func (that *Game) DetermineGameResult() Outcome {
	for _, combo := range WinCombos {
		a, b, c := that.Board[combo[0]], that.Board[combo[1]], that.Board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return Won{By: Mark(a)}
		}
	}

	// the game continues until all the squares are full
	for _, cell := range that.Board {
		if cell == EmptyCell {
			return InProgress{}
		}
	}

	return Draw{}
}

const (
	outcomeInProgress uint8 = 0
	outcomeWon        uint8 = 1
	outcomeDraw       uint8 = 2
)

// gameSize: player x, seat flag, player o, board, turn, last activity, outcome kind, winner mark.
const gameSize = KeySize + 1 + KeySize + BoardSide*BoardSide + 1 + 8 + 1 + 1

func (that *Game) Size() int {
	return gameSize
}

func (that *Game) MarshalBinaryTo(enc *codec.Encoder) {
	enc.Bytes(that.PlayerX[:])
	marshalOptionalKey(enc, that.PlayerO)

	for _, cell := range that.Board {
		enc.Uint8(uint8(cell))
	}

	enc.Uint8(uint8(that.Turn))
	enc.Uint64(that.LastActivity)
	marshalOutcome(enc, that.Outcome)
}

func (that *Game) UnmarshalBinaryFrom(dec *codec.Decoder) {
	dec.Bytes(that.PlayerX[:])
	that.PlayerO = unmarshalOptionalKey(dec)

	for i := range that.Board {
		cell := Cell(dec.Uint8())
		if cell > CellO {
			dec.Fail("invalid cell %d at %d", cell, i)
		}
		that.Board[i] = cell
	}

	that.Turn = Mark(dec.Uint8())
	if that.Turn != MarkX && that.Turn != MarkO {
		dec.Fail("invalid turn %d", that.Turn)
	}

	that.LastActivity = dec.Uint64()
	that.Outcome = unmarshalOutcome(dec)
}

func marshalOptionalKey(enc *codec.Encoder, key *Key) {
	if key == nil {
		enc.Bool(false)
		enc.Zero(KeySize)
		return
	}

	enc.Bool(true)
	enc.Bytes(key[:])
}

func unmarshalOptionalKey(dec *codec.Decoder) *Key {
	present := dec.Bool()

	var key Key
	dec.Bytes(key[:])

	if !present {
		return nil
	}

	return &key
}

func marshalOutcome(enc *codec.Encoder, outcome Outcome) {
	switch o := outcome.(type) {
	case Won:
		enc.Uint8(outcomeWon)
		enc.Uint8(uint8(o.By))
	case Draw:
		enc.Uint8(outcomeDraw)
		enc.Uint8(0)
	default:
		enc.Uint8(outcomeInProgress)
		enc.Uint8(0)
	}
}

func unmarshalOutcome(dec *codec.Decoder) Outcome {
	kind, mark := dec.Uint8(), Mark(dec.Uint8())

	switch kind {
	case outcomeInProgress:
		return InProgress{}
	case outcomeWon:
		if mark != MarkX && mark != MarkO {
			dec.Fail("invalid winner %d", mark)
		}
		return Won{By: mark}
	case outcomeDraw:
		return Draw{}
	default:
		dec.Fail("invalid outcome %d", kind)
		return InProgress{}
	}
}
