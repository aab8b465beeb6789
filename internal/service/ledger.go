package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/tictactoe-program/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-program/internal/command"
	"github.com/rocketscienceinc/tictactoe-program/internal/entity"
	"github.com/rocketscienceinc/tictactoe-program/internal/tictactoe"
)

// Kinds of records Allocate can create.
const (
	KindDashboard = "dashboard"
	KindGame      = "game"
	KindPlayer    = "player"
)

type accountRepo interface {
	Create(ctx context.Context, account *entity.Account) error
	GetByKey(ctx context.Context, key entity.Key) (*entity.Account, error)
	Update(ctx context.Context, keys []entity.Key, fn func(accounts []*entity.Account) error) ([]*entity.Account, error)
}

type clock interface {
	Next(ctx context.Context) (uint64, error)
}

type publisher interface {
	Publish(ctx context.Context, key entity.Key, payload []byte) error
}

type processor interface {
	Process(ins tictactoe.Instruction) error
}

type Options struct {
	ProgramID         entity.Key
	DashboardCapacity int
	InitialBalance    uint64
}

// Ledger stores records and applies submitted transactions to them.
type Ledger struct {
	logger    *slog.Logger
	accounts  accountRepo
	clock     clock
	publisher publisher
	processor processor
	options   Options
}

// Transaction asks the processor to run Data against Records.
// Signers lists the keys that authorized it and is trusted as given.
type Transaction struct {
	Records []entity.Key
	Signers []entity.Key
	Data    []byte
}

type Receipt struct {
	ID      string       `json:"id"`
	Now     uint64       `json:"now"`
	Changed []entity.Key `json:"changed"`
}

func NewLedger(
	logger *slog.Logger,
	accounts accountRepo,
	clock clock,
	publisher publisher,
	processor processor,
	options Options,
) *Ledger {
	return &Ledger{
		logger:    logger.With("component", "ledger"),
		accounts:  accounts,
		clock:     clock,
		publisher: publisher,
		processor: processor,
		options:   options,
	}
}

// Allocate creates a zero-filled record large enough for kind, owned by the program.
// Dashboards start with the configured initial balance, everything else with none.
func (that *Ledger) Allocate(ctx context.Context, kind string) (*entity.Account, error) {
	log := that.logger.With("method", "Allocate", "kind", kind)

	var (
		size    int
		balance uint64
	)

	switch kind {
	case KindDashboard:
		size = entity.StateSize(entity.TagDashboard, that.options.DashboardCapacity)
		balance = that.options.InitialBalance
	case KindGame:
		size = entity.StateSize(entity.TagGame, that.options.DashboardCapacity)
	case KindPlayer:
		size = 0
	default:
		return nil, fmt.Errorf("%w: unknown record kind %q", apperror.ErrInvalidArgument, kind)
	}

	key, err := entity.NewRandomKey()
	if err != nil {
		return nil, err
	}

	account := entity.NewAccount(key, that.options.ProgramID, balance, size)
	if err = that.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	log.Info("record allocated", "key", key, "size", size)

	return account, nil
}

// Submit runs tx against the stored records. Either every change the processor made is
// stored, or none.
func (that *Ledger) Submit(ctx context.Context, tx Transaction) (*Receipt, error) {
	id := uuid.NewString()
	log := that.logger.With("method", "Submit", "tx", id)

	cmd, err := command.Decode(tx.Data)
	if err != nil {
		return nil, err
	}

	if len(tx.Records) == 0 {
		return nil, apperror.ErrNotEnoughRecords
	}

	signed := slices.Contains(tx.Signers, tx.Records[0])

	var now uint64

	changed, err := that.accounts.Update(ctx, tx.Records, func(accounts []*entity.Account) error {
		// read after the records are loaded: writers committed before have a smaller now,
		// writers committing later invalidate this update
		var clockErr error
		if now, clockErr = that.clock.Next(ctx); clockErr != nil {
			return fmt.Errorf("failed to get time: %w", clockErr)
		}

		records := make([]tictactoe.Record, 0, len(accounts))
		for _, account := range accounts {
			records = append(records, account)
		}

		return that.processor.Process(tictactoe.Instruction{
			Command: cmd,
			Records: records,
			Signed:  signed,
			Now:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		ID:      id,
		Now:     now,
		Changed: make([]entity.Key, 0, len(changed)),
	}

	for _, account := range changed {
		receipt.Changed = append(receipt.Changed, account.ID)
		that.notify(ctx, log, account)
	}

	log.Info("transaction applied", "command", cmd.String(), "now", now, "changed", len(changed))

	return receipt, nil
}

// Describe returns the decoded content of a record.
func (that *Ledger) Describe(ctx context.Context, key entity.Key) (*AccountView, error) {
	account, err := that.accounts.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	return that.view(account)
}

// notify publishes the new view of account. Failures are logged only: the change is already stored.
func (that *Ledger) notify(ctx context.Context, log *slog.Logger, account *entity.Account) {
	view, err := that.view(account)
	if err != nil {
		log.Error("failed to describe changed record", "key", account.ID, "error", err)
		return
	}

	payload, err := json.Marshal(view)
	if err != nil {
		log.Error("failed to marshal record view", "key", account.ID, "error", err)
		return
	}

	if err = that.publisher.Publish(ctx, account.ID, payload); err != nil {
		log.Warn("failed to publish record change", "key", account.ID, "error", err)
	}
}

func (that *Ledger) view(account *entity.Account) (*AccountView, error) {
	view := &AccountView{
		Key:     account.ID,
		Owner:   account.OwnerKey,
		Balance: account.Lamports,
		Kind:    entity.TagUninitialized.String(),
	}

	if entity.IsEmpty(account.Buffer) {
		return view, nil
	}

	state, err := entity.DecodeState(account.Buffer, that.options.DashboardCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", account.ID, err)
	}

	view.Kind = state.Tag().String()

	switch s := state.(type) {
	case *entity.Dashboard:
		view.Dashboard = newDashboardView(s)
	case *entity.Game:
		view.Game = newGameView(s)
	}

	return view, nil
}
