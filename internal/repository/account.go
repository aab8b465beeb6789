package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-program/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-program/internal/entity"
)

var ErrAccountExists = errors.New("account already exists")

const (
	fieldOwner   = "owner"
	fieldBalance = "balance"
	fieldData    = "data"
)

type AccountRepository interface {
	Create(ctx context.Context, account *entity.Account) error
	GetByKey(ctx context.Context, key entity.Key) (*entity.Account, error)
	// Update loads the accounts, runs fn on them and writes back every account fn changed.
	// The write is rejected with apperror.ErrConflict if another client touched any of them meanwhile.
	Update(ctx context.Context, keys []entity.Key, fn func(accounts []*entity.Account) error) ([]*entity.Account, error)
}

type dbAccount struct {
	client *redis.Client
}

func NewAccountRepository(client *redis.Client) AccountRepository {
	return &dbAccount{
		client: client,
	}
}

func accountKey(key entity.Key) string {
	return "account:" + key.String()
}

func (that *dbAccount) Create(ctx context.Context, account *entity.Account) error {
	redisKey := accountKey(account.ID)

	err := that.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, redisKey).Result()
		if err != nil {
			return fmt.Errorf("failed to check account: %w", err)
		}

		if exists > 0 {
			return fmt.Errorf("%w: %s", ErrAccountExists, account.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisKey, accountFields(account))
			return nil
		})

		return err
	}, redisKey)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %s", apperror.ErrConflict, account.ID)
	}

	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

func (that *dbAccount) GetByKey(ctx context.Context, key entity.Key) (*entity.Account, error) {
	return getAccount(ctx, that.client, key)
}

func (that *dbAccount) Update(
	ctx context.Context,
	keys []entity.Key,
	fn func(accounts []*entity.Account) error,
) ([]*entity.Account, error) {
	redisKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		redisKeys = append(redisKeys, accountKey(key))
	}

	var changed []*entity.Account

	err := that.client.Watch(ctx, func(tx *redis.Tx) error {
		accounts := make([]*entity.Account, 0, len(keys))
		originals := make([]*entity.Account, 0, len(keys))

		for _, key := range keys {
			account, err := getAccount(ctx, tx, key)
			if err != nil {
				return err
			}

			accounts = append(accounts, account)
			originals = append(originals, account.Clone())
		}

		if err := fn(accounts); err != nil {
			return err
		}

		changed = changed[:0]
		for i, account := range accounts {
			if !account.Equal(originals[i]) {
				changed = append(changed, account)
			}
		}

		if len(changed) == 0 {
			return nil
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, account := range changed {
				pipe.HSet(ctx, accountKey(account.ID), accountFields(account))
			}
			return nil
		})

		return err
	}, redisKeys...)

	if errors.Is(err, redis.TxFailedErr) {
		return nil, apperror.ErrConflict
	}

	if err != nil {
		return nil, err
	}

	return changed, nil
}

func accountFields(account *entity.Account) map[string]any {
	return map[string]any{
		fieldOwner:   account.OwnerKey.String(),
		fieldBalance: strconv.FormatUint(account.Lamports, 10),
		fieldData:    account.Buffer,
	}
}

// hashReader is satisfied by both *redis.Client and *redis.Tx.
type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func getAccount(ctx context.Context, client hashReader, key entity.Key) (*entity.Account, error) {
	fields, err := client.HGetAll(ctx, accountKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get account by key: %w", err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", apperror.ErrAccountNotFound, key)
	}

	owner, err := entity.ParseKey(fields[fieldOwner])
	if err != nil {
		return nil, fmt.Errorf("failed to parse owner of %s: %w", key, err)
	}

	balance, err := strconv.ParseUint(fields[fieldBalance], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance of %s: %w", key, err)
	}

	return &entity.Account{
		ID:       key,
		OwnerKey: owner,
		Lamports: balance,
		Buffer:   []byte(fields[fieldData]),
	}, nil
}
