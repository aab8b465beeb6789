package service

import "github.com/rocketscienceinc/tictactoe-program/internal/entity"

const noWinner = "-"

type AccountView struct {
	Key       entity.Key     `json:"key"`
	Owner     entity.Key     `json:"owner"`
	Balance   uint64         `json:"balance"`
	Kind      string         `json:"kind"`
	Dashboard *DashboardView `json:"dashboard,omitempty"`
	Game      *GameView      `json:"game,omitempty"`
}

type DashboardView struct {
	TotalGames  uint64        `json:"total_games"`
	PendingGame *entity.Key   `json:"pending_game,omitempty"`
	Games       []SummaryView `json:"games"`
}

type SummaryView struct {
	Game         entity.Key  `json:"game"`
	PlayerX      entity.Key  `json:"player_x"`
	PlayerO      *entity.Key `json:"player_o,omitempty"`
	Status       string      `json:"status"`
	Winner       string      `json:"winner,omitempty"`
	LastActivity uint64      `json:"last_activity"`
}

type GameView struct {
	PlayerX      entity.Key  `json:"player_x"`
	PlayerO      *entity.Key `json:"player_o,omitempty"`
	Board        [9]string   `json:"board"`
	Turn         string      `json:"turn"`
	Status       string      `json:"status"`
	Winner       string      `json:"winner,omitempty"`
	LastActivity uint64      `json:"last_activity"`
}

func newDashboardView(dashboard *entity.Dashboard) *DashboardView {
	view := &DashboardView{
		TotalGames:  dashboard.TotalGames,
		PendingGame: dashboard.PendingGame,
		Games:       make([]SummaryView, 0, len(dashboard.Entries)),
	}

	for _, entry := range dashboard.Entries {
		summary := entry.Summary
		view.Games = append(view.Games, SummaryView{
			Game:         entry.Game,
			PlayerX:      summary.PlayerX,
			PlayerO:      summary.PlayerO,
			Status:       status(summary.Outcome, summary.PlayerO == nil),
			Winner:       winner(summary.Outcome),
			LastActivity: summary.LastActivity,
		})
	}

	return view
}

func newGameView(game *entity.Game) *GameView {
	view := &GameView{
		PlayerX:      game.PlayerX,
		PlayerO:      game.PlayerO,
		Turn:         game.Turn.String(),
		Status:       game.Status(),
		Winner:       winner(game.Outcome),
		LastActivity: game.LastActivity,
	}

	for i, cell := range game.Board {
		view.Board[i] = cell.String()
	}

	return view
}

func status(outcome entity.Outcome, waiting bool) string {
	switch {
	case outcome != nil && !isInProgress(outcome):
		return entity.StatusFinished
	case waiting:
		return entity.StatusWaiting
	default:
		return entity.StatusOngoing
	}
}

func isInProgress(outcome entity.Outcome) bool {
	_, ok := outcome.(entity.InProgress)
	return ok
}

// winner is "X" or "O" for a won game, "-" for a draw and empty while playing.
func winner(outcome entity.Outcome) string {
	switch o := outcome.(type) {
	case entity.Won:
		return o.By.String()
	case entity.Draw:
		return noWinner
	default:
		return ""
	}
}
