package tictactoe

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/rocketscienceinc/tictactoe-program/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-program/internal/command"
	"github.com/rocketscienceinc/tictactoe-program/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	watermark = 300
	capacity  = 3
)

var (
	programID = entity.Key{0xEE}
	foreignID = entity.Key{0xDD}
)

type world struct {
	t         *testing.T
	processor *Processor
	dashboard *entity.Account
	now       uint64
}

func newWorld(t *testing.T) *world {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	w := &world{
		t:         t,
		processor: NewProcessor(logger, watermark, capacity),
		dashboard: entity.NewAccount(entity.Key{0xDB}, programID, 1_000_000, entity.StateSize(entity.TagDashboard, capacity)),
	}

	require.NoError(t, w.run(command.Command{Kind: command.InitDashboard}, w.dashboard))

	return w
}

func (that *world) run(cmd command.Command, records ...*entity.Account) error {
	that.now++

	list := make([]Record, 0, len(records))
	for _, record := range records {
		list = append(list, record)
	}

	return that.processor.Process(Instruction{Command: cmd, Records: list, Signed: true, Now: that.now})
}

func (that *world) player(id byte) *entity.Account {
	return entity.NewAccount(entity.Key{0xA0, id}, programID, 0, 0)
}

func (that *world) game(id byte) *entity.Account {
	return entity.NewAccount(entity.Key{0xB0, id}, programID, 0, entity.StateSize(entity.TagGame, 0))
}

func (that *world) newGame(id byte, creator *entity.Account) *entity.Account {
	that.t.Helper()

	game := that.game(id)
	require.NoError(that.t, that.run(command.Command{Kind: command.InitGame}, game, that.dashboard, creator))

	return game
}

func (that *world) decodeGame(record *entity.Account) *entity.Game {
	that.t.Helper()

	state, err := entity.DecodeState(record.Data(), capacity)
	require.NoError(that.t, err)

	game, ok := state.(*entity.Game)
	require.True(that.t, ok, "record holds %s", state.Tag())

	return game
}

func (that *world) decodeDashboard() *entity.Dashboard {
	that.t.Helper()

	state, err := entity.DecodeState(that.dashboard.Data(), capacity)
	require.NoError(that.t, err)

	dashboard, ok := state.(*entity.Dashboard)
	require.True(that.t, ok, "record holds %s", state.Tag())

	return dashboard
}

func move(x, y uint8) command.Command {
	return command.Command{Kind: command.Move, X: x, Y: y}
}

func snapshot(records ...*entity.Account) []*entity.Account {
	clones := make([]*entity.Account, 0, len(records))
	for _, record := range records {
		clones = append(clones, record.Clone())
	}

	return clones
}

func TestProcessor_InitDashboard(t *testing.T) {
	t.Run("Installs an empty dashboard", func(t *testing.T) {
		w := newWorld(t)

		dashboard := w.decodeDashboard()

		assert.Empty(t, dashboard.Entries)
		assert.Nil(t, dashboard.PendingGame)
		assert.Equal(t, uint64(1_000_000), w.dashboard.Balance())
	})

	t.Run("Re-initialization fails", func(t *testing.T) {
		w := newWorld(t)
		before := snapshot(w.dashboard)

		err := w.run(command.Command{Kind: command.InitDashboard}, w.dashboard)

		require.ErrorIs(t, err, apperror.ErrInvalidArgument)
		assert.True(t, before[0].Equal(w.dashboard))
	})

	t.Run("Record too small for a dashboard", func(t *testing.T) {
		w := newWorld(t)
		small := entity.NewAccount(entity.Key{0x01}, programID, 0, 16)

		err := w.run(command.Command{Kind: command.InitDashboard}, small)

		require.ErrorIs(t, err, apperror.ErrDeserializationFailed)
		assert.True(t, entity.IsEmpty(small.Data()))
	})
}

func TestProcessor_Signer(t *testing.T) {
	w := newWorld(t)
	player := w.player(1)
	before := snapshot(w.dashboard, player)

	err := w.processor.Process(Instruction{
		Command: command.Command{Kind: command.InitPlayer},
		Records: []Record{w.dashboard, player},
		Signed:  false,
	})

	require.ErrorIs(t, err, apperror.ErrMissingSigner)
	assert.True(t, before[0].Equal(w.dashboard))
	assert.True(t, before[1].Equal(player))
}

func TestProcessor_InitPlayer(t *testing.T) {
	t.Run("Funds the player up to the watermark", func(t *testing.T) {
		// Given: a player record with a small balance
		w := newWorld(t)
		player := w.player(1)
		player.SetBalance(100)

		// When: the player is initialized
		err := w.run(command.Command{Kind: command.InitPlayer}, w.dashboard, player)

		// Then: the shortfall moved from the dashboard
		require.NoError(t, err)
		assert.Equal(t, uint64(watermark), player.Balance())
		assert.Equal(t, uint64(1_000_000-200), w.dashboard.Balance())
	})

	t.Run("Foreign owner is rejected", func(t *testing.T) {
		w := newWorld(t)
		player := entity.NewAccount(entity.Key{0xA0}, foreignID, 0, 0)

		err := w.run(command.Command{Kind: command.InitPlayer}, w.dashboard, player)

		require.ErrorIs(t, err, apperror.ErrInvalidArgument)
		assert.Zero(t, player.Balance())
	})

	t.Run("Non empty player record is rejected", func(t *testing.T) {
		w := newWorld(t)
		player := entity.NewAccount(entity.Key{0xA0}, programID, 0, 4)
		player.Data()[0] = 1

		err := w.run(command.Command{Kind: command.InitPlayer}, w.dashboard, player)

		require.ErrorIs(t, err, apperror.ErrInvalidArgument)
	})

	t.Run("Uninitialized dashboard is rejected", func(t *testing.T) {
		w := newWorld(t)
		blank := entity.NewAccount(entity.Key{0xDC}, programID, 1000, entity.StateSize(entity.TagDashboard, capacity))

		err := w.run(command.Command{Kind: command.InitPlayer}, blank, w.player(1))

		require.ErrorIs(t, err, apperror.ErrInvalidArgument)
	})

	t.Run("Missing player record", func(t *testing.T) {
		w := newWorld(t)

		err := w.run(command.Command{Kind: command.InitPlayer}, w.dashboard)

		require.ErrorIs(t, err, apperror.ErrNotEnoughRecords)
	})
}

func TestProcessor_InitGame(t *testing.T) {
	t.Run("Creates the game and registers it", func(t *testing.T) {
		// Given: an initialized dashboard and a player
		w := newWorld(t)
		creator := w.player(1)

		// When: a game is created
		game := w.newGame(1, creator)

		// Then: the game waits for an opponent and the dashboard lists it as pending
		state := w.decodeGame(game)
		assert.Equal(t, creator.Key(), state.PlayerX)
		assert.True(t, state.IsWaiting())
		assert.Equal(t, w.now, state.LastActivity)

		dashboard := w.decodeDashboard()
		require.NotNil(t, dashboard.PendingGame)
		assert.Equal(t, game.Key(), *dashboard.PendingGame)
		assert.Equal(t, uint64(1), dashboard.TotalGames)

		// Then: game and player are funded
		assert.Equal(t, uint64(watermark), game.Balance())
		assert.Equal(t, uint64(watermark), creator.Balance())
		assert.Equal(t, uint64(1_000_000-2*watermark), w.dashboard.Balance())
	})

	t.Run("Existing game record is rejected", func(t *testing.T) {
		w := newWorld(t)
		creator := w.player(1)
		game := w.newGame(1, creator)
		before := snapshot(w.dashboard, game)

		err := w.run(command.Command{Kind: command.InitGame}, game, w.dashboard, w.player(2))

		require.ErrorIs(t, err, apperror.ErrInvalidArgument)
		assert.True(t, before[0].Equal(w.dashboard))
		assert.True(t, before[1].Equal(game))
	})

	t.Run("Game owned by another program is rejected", func(t *testing.T) {
		w := newWorld(t)
		game := entity.NewAccount(entity.Key{0xB0}, foreignID, 0, entity.StateSize(entity.TagGame, 0))

		err := w.run(command.Command{Kind: command.InitGame}, game, w.dashboard, w.player(1))

		require.ErrorIs(t, err, apperror.ErrInvalidArgument)
	})

	t.Run("Same record used as game and player is rejected", func(t *testing.T) {
		w := newWorld(t)
		game := w.game(1)

		err := w.run(command.Command{Kind: command.InitGame}, game, w.dashboard, game)

		require.ErrorIs(t, err, apperror.ErrInvalidArgument)
		assert.True(t, entity.IsEmpty(game.Data()))
	})
}

func TestProcessor_Play(t *testing.T) {
	t.Run("Full game until X wins the top row", func(t *testing.T) {
		// Given: a game joined by a second player
		w := newWorld(t)
		one, two := w.player(1), w.player(2)
		game := w.newGame(1, one)
		require.NoError(t, w.run(command.Command{Kind: command.Join}, two, w.dashboard, game))
		assert.Nil(t, w.decodeDashboard().PendingGame)

		// When: the moves of the scenario are played
		require.NoError(t, w.run(move(0, 0), one, w.dashboard, game))
		require.NoError(t, w.run(move(1, 1), two, w.dashboard, game))
		require.NoError(t, w.run(move(0, 1), one, w.dashboard, game))
		require.NoError(t, w.run(move(2, 2), two, w.dashboard, game))
		require.NoError(t, w.run(move(0, 2), one, w.dashboard, game))

		// Then: X won and the dashboard agrees
		state := w.decodeGame(game)
		assert.Equal(t, entity.Won{By: entity.MarkX}, state.Outcome)

		summary, ok := w.decodeDashboard().Lookup(game.Key())
		require.True(t, ok)
		assert.Equal(t, entity.Won{By: entity.MarkX}, summary.Outcome)
		assert.Equal(t, state.LastActivity, summary.LastActivity)

		// Then: further moves are rejected
		err := w.run(move(2, 0), two, w.dashboard, game)
		require.ErrorIs(t, err, apperror.ErrInvalidMove)
	})

	t.Run("Rejected move changes nothing", func(t *testing.T) {
		// Given: X is on turn
		w := newWorld(t)
		one, two := w.player(1), w.player(2)
		game := w.newGame(1, one)
		require.NoError(t, w.run(command.Command{Kind: command.Join}, two, w.dashboard, game))
		two.SetBalance(0)
		before := snapshot(w.dashboard, game, two)

		// When: O moves out of turn
		err := w.run(move(0, 0), two, w.dashboard, game)

		// Then: no record was written and no funds moved
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.True(t, before[0].Equal(w.dashboard))
		assert.True(t, before[1].Equal(game))
		assert.True(t, before[2].Equal(two))
	})

	t.Run("Second join fails", func(t *testing.T) {
		w := newWorld(t)
		one := w.player(1)
		game := w.newGame(1, one)
		require.NoError(t, w.run(command.Command{Kind: command.Join}, w.player(2), w.dashboard, game))

		err := w.run(command.Command{Kind: command.Join}, w.player(3), w.dashboard, game)

		require.ErrorIs(t, err, apperror.ErrGameInProgress)
	})

	t.Run("Keep alive refreshes activity", func(t *testing.T) {
		w := newWorld(t)
		one := w.player(1)
		game := w.newGame(1, one)

		require.NoError(t, w.run(command.Command{Kind: command.KeepAlive}, one, w.dashboard, game))

		assert.Equal(t, w.now, w.decodeGame(game).LastActivity)
	})

	t.Run("Keep alive with a stale clock fails", func(t *testing.T) {
		w := newWorld(t)
		one := w.player(1)
		game := w.newGame(1, one)

		err := w.processor.Process(Instruction{
			Command: command.Command{Kind: command.KeepAlive},
			Records: []Record{one, w.dashboard, game},
			Signed:  true,
			Now:     w.now,
		})

		require.ErrorIs(t, err, apperror.ErrInvalidTimestamp)
	})

	t.Run("Stranger cannot move", func(t *testing.T) {
		w := newWorld(t)
		game := w.newGame(1, w.player(1))
		require.NoError(t, w.run(command.Command{Kind: command.Join}, w.player(2), w.dashboard, game))

		err := w.run(move(0, 0), w.player(3), w.dashboard, game)

		require.ErrorIs(t, err, apperror.ErrPlayerNotFound)
	})

	t.Run("Advertise marks a waiting game as pending", func(t *testing.T) {
		// Given: two waiting games, the second one pending
		w := newWorld(t)
		one := w.player(1)
		first := w.newGame(1, one)
		w.newGame(2, w.player(2))

		// When: the first game is advertised
		require.NoError(t, w.run(command.Command{Kind: command.Advertise}, one, w.dashboard, first))

		// Then: it is pending again
		dashboard := w.decodeDashboard()
		require.NotNil(t, dashboard.PendingGame)
		assert.Equal(t, first.Key(), *dashboard.PendingGame)
		assert.Equal(t, uint64(2), dashboard.TotalGames)
	})

	t.Run("Game record that is not a game is rejected", func(t *testing.T) {
		w := newWorld(t)

		err := w.run(command.Command{Kind: command.Join}, w.player(1), w.dashboard, w.game(1))

		require.ErrorIs(t, err, apperror.ErrInvalidArgument)
	})

	t.Run("Corrupt game record fails to decode", func(t *testing.T) {
		w := newWorld(t)
		one := w.player(1)
		game := w.newGame(1, one)
		game.Data()[0] = 0x7F

		err := w.run(command.Command{Kind: command.KeepAlive}, one, w.dashboard, game)

		require.ErrorIs(t, err, apperror.ErrDeserializationFailed)
	})

	t.Run("Dashboard evicts the least recently active game", func(t *testing.T) {
		// Given: a full dashboard where game 2 is the least recently active
		w := newWorld(t)
		games := make([]*entity.Account, 0, capacity)
		for i := range capacity {
			games = append(games, w.newGame(byte(i+1), w.player(byte(i+1))))
		}
		require.NoError(t, w.run(command.Command{Kind: command.KeepAlive}, w.player(1), w.dashboard, games[0]))

		// When: one more game is created
		extra := w.newGame(9, w.player(9))

		// Then: game 2 was evicted
		dashboard := w.decodeDashboard()
		assert.Len(t, dashboard.Entries, capacity)
		_, ok := dashboard.Lookup(games[1].Key())
		assert.False(t, ok)
		_, ok = dashboard.Lookup(extra.Key())
		assert.True(t, ok)
	})
}

func TestProcessor_Funding(t *testing.T) {
	t.Run("Dashboard may not be drained", func(t *testing.T) {
		// Given: a dashboard holding exactly the shortfall of the new game
		w := newWorld(t)
		creator := w.player(1)
		creator.SetBalance(watermark)
		w.dashboard.SetBalance(watermark)
		game := w.game(1)
		before := snapshot(w.dashboard, game, creator)

		// When: creating the game
		err := w.run(command.Command{Kind: command.InitGame}, game, w.dashboard, creator)

		// Then: the request fails without writing the game
		require.ErrorIs(t, err, apperror.ErrInsufficientFunds)
		assert.True(t, before[0].Equal(w.dashboard))
		assert.True(t, before[1].Equal(game))
		assert.True(t, bytes.Equal(before[1].Data(), game.Data()))
	})

	t.Run("Player top-up failing undoes the game top-up", func(t *testing.T) {
		// Given: a dashboard that can fund the new game but not its creator as well
		w := newWorld(t)
		creator := w.player(1)
		w.dashboard.SetBalance(watermark + 200)
		game := w.game(1)
		before := snapshot(w.dashboard, game, creator)

		// When: creating the game
		err := w.run(command.Command{Kind: command.InitGame}, game, w.dashboard, creator)

		// Then: the request fails and no balance or buffer moved
		require.ErrorIs(t, err, apperror.ErrInsufficientFunds)
		assert.True(t, before[0].Equal(w.dashboard))
		assert.True(t, before[1].Equal(game))
		assert.True(t, before[2].Equal(creator))
		assert.Zero(t, game.Balance())
		assert.True(t, entity.IsEmpty(game.Data()))
	})

	t.Run("Funded records are left alone", func(t *testing.T) {
		w := newWorld(t)
		player := w.player(1)
		player.SetBalance(watermark + 50)

		require.NoError(t, w.run(command.Command{Kind: command.InitPlayer}, w.dashboard, player))

		assert.Equal(t, uint64(watermark+50), player.Balance())
		assert.Equal(t, uint64(1_000_000), w.dashboard.Balance())
	})
}
