package tictactoe

import (
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-program/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-program/internal/command"
	"github.com/rocketscienceinc/tictactoe-program/internal/entity"
)

// Instruction is one request: a command, the records it operates on and
// the context supplied by the host.
//
// Record order per command:
//
//	InitDashboard                       [dashboard]
//	InitPlayer                          [dashboard, player]
//	InitGame                            [game, dashboard, player]
//	Advertise, Join, Move, KeepAlive    [player, dashboard, game]
type Instruction struct {
	Command command.Command
	Records []Record
	// Signed reports whether the owner of the first record authorized the request.
	Signed bool
	Now    uint64
}

type Processor struct {
	logger            *slog.Logger
	fundingWatermark  uint64
	dashboardCapacity int
}

func NewProcessor(logger *slog.Logger, fundingWatermark uint64, dashboardCapacity int) *Processor {
	return &Processor{
		logger:            logger.With("component", "processor"),
		fundingWatermark:  fundingWatermark,
		dashboardCapacity: dashboardCapacity,
	}
}

// Process validates and applies ins. Records are only written when every step succeeded.
func (that *Processor) Process(ins Instruction) error {
	log := that.logger.With("method", "Process", "command", ins.Command.String(), "now", ins.Now)

	tx, err := that.process(ins, log)
	if err != nil {
		code, _ := apperror.Code(err)
		log.Warn("instruction rejected", "error", err, "code", code)

		return err
	}

	tx.commit()
	log.Debug("instruction applied")

	return nil
}

func (that *Processor) process(ins Instruction, log *slog.Logger) (*transaction, error) {
	if len(ins.Records) == 0 {
		return nil, apperror.ErrNotEnoughRecords
	}

	if !ins.Signed {
		return nil, fmt.Errorf("%w: record 0 did not sign", apperror.ErrMissingSigner)
	}

	if err := checkDistinct(ins.Records); err != nil {
		return nil, err
	}

	switch ins.Command.Kind {
	case command.InitDashboard:
		return that.initDashboard(ins)
	case command.InitPlayer:
		return that.initPlayer(ins)
	case command.InitGame:
		return that.initGame(ins, log)
	case command.Advertise, command.Join, command.Move, command.KeepAlive:
		return that.play(ins, log)
	default:
		return nil, fmt.Errorf("%w: %s", apperror.ErrInvalidInstruction, ins.Command)
	}
}

func (that *Processor) initDashboard(ins Instruction) (*transaction, error) {
	records, err := expect(ins, 1)
	if err != nil {
		return nil, err
	}
	dashboardRecord := records[0]

	state, err := entity.DecodeState(dashboardRecord.Data(), that.dashboardCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dashboard record: %w", err)
	}

	if state.Tag() != entity.TagUninitialized {
		return nil, fmt.Errorf("%w: dashboard record already holds a %s", apperror.ErrInvalidArgument, state.Tag())
	}

	tx := &transaction{}
	if err = tx.stage(dashboardRecord).write(entity.NewDashboard(that.dashboardCapacity)); err != nil {
		return nil, err
	}

	return tx, nil
}

func (that *Processor) initPlayer(ins Instruction) (*transaction, error) {
	records, err := expect(ins, 2)
	if err != nil {
		return nil, err
	}
	dashboardRecord, playerRecord := records[0], records[1]

	if _, err = that.decodeDashboard(dashboardRecord); err != nil {
		return nil, err
	}

	if err = checkPlayerRecord(playerRecord, dashboardRecord.Owner()); err != nil {
		return nil, err
	}

	tx := &transaction{}
	dashboard := tx.stage(dashboardRecord)
	if err = that.fund(dashboard, tx.stage(playerRecord)); err != nil {
		return nil, err
	}

	return tx, nil
}

func (that *Processor) initGame(ins Instruction, log *slog.Logger) (*transaction, error) {
	records, err := expect(ins, 3)
	if err != nil {
		return nil, err
	}
	gameRecord, dashboardRecord, playerRecord := records[0], records[1], records[2]

	dashboard, err := that.decodeDashboard(dashboardRecord)
	if err != nil {
		return nil, err
	}

	if gameRecord.Owner() != dashboardRecord.Owner() {
		return nil, fmt.Errorf("%w: game record has a foreign owner", apperror.ErrInvalidArgument)
	}

	if err = checkPlayerRecord(playerRecord, gameRecord.Owner()); err != nil {
		return nil, err
	}

	state, err := entity.DecodeState(gameRecord.Data(), that.dashboardCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to decode game record: %w", err)
	}

	if state.Tag() != entity.TagUninitialized {
		return nil, fmt.Errorf("%w: game record already holds a %s", apperror.ErrInvalidArgument, state.Tag())
	}

	game := entity.NewGame(playerRecord.Key(), ins.Now)
	dashboard.Register(gameRecord.Key(), game)
	log.Debug("game created", "game", gameRecord.Key(), "player", playerRecord.Key())

	return that.stageGame(dashboardRecord, dashboard, gameRecord, game, playerRecord)
}

func (that *Processor) play(ins Instruction, log *slog.Logger) (*transaction, error) {
	records, err := expect(ins, 3)
	if err != nil {
		return nil, err
	}
	playerRecord, dashboardRecord, gameRecord := records[0], records[1], records[2]

	dashboard, err := that.decodeDashboard(dashboardRecord)
	if err != nil {
		return nil, err
	}

	if err = checkPlayerRecord(playerRecord, dashboardRecord.Owner()); err != nil {
		return nil, err
	}

	if gameRecord.Owner() != dashboardRecord.Owner() {
		return nil, fmt.Errorf("%w: game record has a foreign owner", apperror.ErrInvalidArgument)
	}

	game, err := that.decodeGame(gameRecord)
	if err != nil {
		return nil, err
	}

	player := playerRecord.Key()

	switch cmd := ins.Command; cmd.Kind {
	case command.Advertise:
		// only the dashboard update below
	case command.Join:
		err = game.Join(player, ins.Now)
	case command.Move:
		err = game.NextMove(player, int(cmd.X), int(cmd.Y), ins.Now)
	case command.KeepAlive:
		err = game.KeepAlive(player, ins.Now)
	}

	if err != nil {
		return nil, err
	}

	dashboard.Update(gameRecord.Key(), game)
	log.Debug("game updated", "game", gameRecord.Key(), "player", player, "status", game.Status())

	return that.stageGame(dashboardRecord, dashboard, gameRecord, game, playerRecord)
}

// stageGame buffers the new dashboard and game and tops up the game and player records.
func (that *Processor) stageGame(
	dashboardRecord Record, dashboard *entity.Dashboard,
	gameRecord Record, game *entity.Game,
	playerRecord Record,
) (*transaction, error) {
	tx := &transaction{}

	dashboardStage := tx.stage(dashboardRecord)
	if err := dashboardStage.write(dashboard); err != nil {
		return nil, err
	}

	gameStage := tx.stage(gameRecord)
	if err := gameStage.write(game); err != nil {
		return nil, err
	}

	if err := that.fund(dashboardStage, gameStage); err != nil {
		return nil, err
	}

	if err := that.fund(dashboardStage, tx.stage(playerRecord)); err != nil {
		return nil, err
	}

	return tx, nil
}

// fund tops account up to the watermark out of the dashboard balance.
// The dashboard is never drained to zero.
func (that *Processor) fund(dashboard, account *staged) error {
	if account.balance >= that.fundingWatermark {
		return nil
	}

	shortfall := that.fundingWatermark - account.balance
	if dashboard.balance <= shortfall {
		return fmt.Errorf("%w: dashboard holds %d, record %s needs %d",
			apperror.ErrInsufficientFunds, dashboard.balance, account.record.Key(), shortfall)
	}

	dashboard.balance -= shortfall
	account.balance += shortfall

	return nil
}

func (that *Processor) decodeDashboard(record Record) (*entity.Dashboard, error) {
	state, err := entity.DecodeState(record.Data(), that.dashboardCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dashboard record: %w", err)
	}

	dashboard, ok := state.(*entity.Dashboard)
	if !ok {
		return nil, fmt.Errorf("%w: expected a dashboard record, got %s", apperror.ErrInvalidArgument, state.Tag())
	}

	return dashboard, nil
}

func (that *Processor) decodeGame(record Record) (*entity.Game, error) {
	state, err := entity.DecodeState(record.Data(), that.dashboardCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to decode game record: %w", err)
	}

	game, ok := state.(*entity.Game)
	if !ok {
		return nil, fmt.Errorf("%w: expected a game record, got %s", apperror.ErrInvalidArgument, state.Tag())
	}

	return game, nil
}

// checkPlayerRecord requires a player record owned like the dashboard and never written to.
func checkPlayerRecord(record Record, owner entity.Key) error {
	if record.Owner() != owner {
		return fmt.Errorf("%w: player record has a foreign owner", apperror.ErrInvalidArgument)
	}

	if !entity.IsEmpty(record.Data()) {
		return fmt.Errorf("%w: player record is not empty", apperror.ErrInvalidArgument)
	}

	return nil
}

func expect(ins Instruction, n int) ([]Record, error) {
	if len(ins.Records) < n {
		return nil, fmt.Errorf("%w: %s needs %d, got %d", apperror.ErrNotEnoughRecords, ins.Command, n, len(ins.Records))
	}

	return ins.Records[:n], nil
}

func checkDistinct(records []Record) error {
	seen := make(map[entity.Key]struct{}, len(records))
	for i, record := range records {
		if _, ok := seen[record.Key()]; ok {
			return fmt.Errorf("%w: record %d repeats %s", apperror.ErrInvalidArgument, i, record.Key())
		}
		seen[record.Key()] = struct{}{}
	}

	return nil
}
