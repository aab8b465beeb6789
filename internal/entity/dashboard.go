package entity

import (
	"github.com/rocketscienceinc/tictactoe-program/internal/codec"
)

const DefaultDashboardCapacity = 5

// Summary is the condensed view of a game kept by the dashboard.
type Summary struct {
	PlayerX      Key
	PlayerO      *Key
	Outcome      Outcome
	LastActivity uint64
}

func Summarize(game *Game) Summary {
	summary := Summary{
		PlayerX:      game.PlayerX,
		Outcome:      game.Outcome,
		LastActivity: game.LastActivity,
	}

	if game.PlayerO != nil {
		playerO := *game.PlayerO
		summary.PlayerO = &playerO
	}

	return summary
}

type Entry struct {
	Game    Key
	Summary Summary
}

// Dashboard is a bounded index of recently active games.
// Capacity is part of the deployment configuration and is not persisted.
type Dashboard struct {
	Capacity    int
	TotalGames  uint64
	PendingGame *Key
	Entries     []Entry
}

func NewDashboard(capacity int) *Dashboard {
	return &Dashboard{
		Capacity: capacity,
		Entries:  make([]Entry, 0, capacity),
	}
}

func (that *Dashboard) Tag() Tag {
	return TagDashboard
}

// Register counts a newly created game and records its summary.
func (that *Dashboard) Register(gameKey Key, game *Game) {
	that.TotalGames++
	that.Update(gameKey, game)
}

// Update upserts the summary of game. A game missing from a full dashboard
// evicts the entry with the oldest activity. TotalGames is left alone, see Register.
func (that *Dashboard) Update(gameKey Key, game *Game) {
	summary := Summarize(game)

	switch {
	case game.IsWaiting():
		pending := gameKey
		that.PendingGame = &pending
	case that.PendingGame != nil && *that.PendingGame == gameKey:
		that.PendingGame = nil
	}

	if i := that.indexOf(gameKey); i >= 0 {
		that.Entries[i].Summary = summary
		return
	}

	if that.Capacity <= 0 {
		return
	}

	if len(that.Entries) >= that.Capacity {
		that.evictOldest()
	}

	that.Entries = append(that.Entries, Entry{Game: gameKey, Summary: summary})
}

// Lookup returns the summary stored for gameKey.
func (that *Dashboard) Lookup(gameKey Key) (Summary, bool) {
	if i := that.indexOf(gameKey); i >= 0 {
		return that.Entries[i].Summary, true
	}

	return Summary{}, false
}

func (that *Dashboard) indexOf(gameKey Key) int {
	for i, entry := range that.Entries {
		if entry.Game == gameKey {
			return i
		}
	}

	return -1
}

func (that *Dashboard) evictOldest() {
	oldest := 0
	for i, entry := range that.Entries {
		if entry.Summary.LastActivity < that.Entries[oldest].Summary.LastActivity {
			oldest = i
		}
	}

	that.Entries = append(that.Entries[:oldest], that.Entries[oldest+1:]...)
}

// entrySize: game key, player x, seat flag, player o, outcome kind, winner mark, last activity.
const entrySize = KeySize + KeySize + 1 + KeySize + 1 + 1 + 8

// dashboardHeaderSize: total games, pending flag, pending key, entry count.
const dashboardHeaderSize = 8 + 1 + KeySize + 4

func DashboardSize(capacity int) int {
	return dashboardHeaderSize + capacity*entrySize
}

func (that *Dashboard) Size() int {
	return DashboardSize(that.Capacity)
}

func (that *Dashboard) MarshalBinaryTo(enc *codec.Encoder) {
	enc.Uint64(that.TotalGames)
	marshalOptionalKey(enc, that.PendingGame)
	enc.Uint32(uint32(len(that.Entries)))

	for _, entry := range that.Entries {
		enc.Bytes(entry.Game[:])
		enc.Bytes(entry.Summary.PlayerX[:])
		marshalOptionalKey(enc, entry.Summary.PlayerO)
		marshalOutcome(enc, entry.Summary.Outcome)
		enc.Uint64(entry.Summary.LastActivity)
	}

	enc.Zero((that.Capacity - len(that.Entries)) * entrySize)
}

// UnmarshalBinaryFrom expects Capacity to be set beforehand.
func (that *Dashboard) UnmarshalBinaryFrom(dec *codec.Decoder) {
	that.TotalGames = dec.Uint64()
	that.PendingGame = unmarshalOptionalKey(dec)

	count := int(dec.Uint32())
	if count > that.Capacity {
		dec.Fail("dashboard holds %d entries, capacity is %d", count, that.Capacity)
		return
	}

	that.Entries = make([]Entry, count, that.Capacity)
	for i := range that.Entries {
		entry := &that.Entries[i]
		dec.Bytes(entry.Game[:])
		dec.Bytes(entry.Summary.PlayerX[:])
		entry.Summary.PlayerO = unmarshalOptionalKey(dec)
		entry.Summary.Outcome = unmarshalOutcome(dec)
		entry.Summary.LastActivity = dec.Uint64()
	}

	dec.Skip((that.Capacity - count) * entrySize)
}
