package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-program/internal/apperror"
)

// handleFollow sends the current state of an account and then every change to it.
func (that *Server) handleFollow(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleFollow")

	var req followPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("%w: failed to unmarshal payload: %w", apperror.ErrInvalidArgument, err)
	}

	conn.followsMu.Lock()
	_, following := conn.follows[req.Key]
	conn.followsMu.Unlock()

	if following {
		return nil
	}

	// subscribe before reading the state so no change in between is missed
	updates, closeFn, err := that.feed.Subscribe(ctx, req.Key)
	if err != nil {
		return err
	}

	view, err := that.ledger.Describe(ctx, req.Key)
	if err != nil {
		_ = closeFn()
		return err
	}

	conn.followsMu.Lock()
	conn.follows[req.Key] = closeFn
	conn.followsMu.Unlock()

	if err = conn.send(actionState, mustMarshal(view)); err != nil {
		return err
	}

	go func() {
		for payload := range updates {
			if err := conn.send(actionChanged, payload); err != nil {
				log.Debug("failed to forward change", "key", req.Key, "error", err)
				return
			}
		}
	}()

	log.Info("following account", "key", req.Key)

	return nil
}

func (that *Server) handleUnfollow(_ context.Context, conn *connection, msg *Message) error {
	var req followPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("%w: failed to unmarshal payload: %w", apperror.ErrInvalidArgument, err)
	}

	conn.followsMu.Lock()
	closeFn, ok := conn.follows[req.Key]
	delete(conn.follows, req.Key)
	conn.followsMu.Unlock()

	if !ok {
		return nil
	}

	return closeFn()
}
