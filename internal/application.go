package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/tictactoe-program/internal/config"
	"github.com/rocketscienceinc/tictactoe-program/internal/repository"
	"github.com/rocketscienceinc/tictactoe-program/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-program/internal/service"
	"github.com/rocketscienceinc/tictactoe-program/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-program/internal/transport/redis"
	"github.com/rocketscienceinc/tictactoe-program/transport/rest"
	"github.com/rocketscienceinc/tictactoe-program/transport/websocket"
	"golang.org/x/sync/errgroup"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	programID, err := conf.Program.Key()
	if err != nil {
		return fmt.Errorf("invalid program id: %w", err)
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	accountRepo := repository.NewAccountRepository(redisStorage)
	clock := repository.NewClock(redisStorage)
	feed := redis.New(redisStorage)
	processor := tictactoe.NewProcessor(logger, conf.Program.FundingWatermark, conf.Program.DashboardCapacity)

	ledger := service.NewLedger(logger, accountRepo, clock, feed, processor, service.Options{
		ProgramID:         programID,
		DashboardCapacity: conf.Program.DashboardCapacity,
		InitialBalance:    conf.Program.InitialBalance,
	})

	restServer := rest.New(logger, rest.NewHandlers(logger, ledger))
	wsServer := websocket.New(logger, feed, ledger)

	group, groupCtx := errgroup.WithContext(ctx)

	// run HTTP server
	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := restServer.Start(groupCtx, conf.HTTPPort); httpErr != nil {
			return fmt.Errorf("HTTP server error: %w", httpErr)
		}
		return nil
	})

	// run Websocket server
	group.Go(func() error {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(groupCtx, conf.SocketPort); wsErr != nil {
			return fmt.Errorf("WebSocket server error: %w", wsErr)
		}
		return nil
	})

	if err = group.Wait(); err != nil {
		return err
	}

	log.Info("Application context canceled, shutting down")

	return nil
}
