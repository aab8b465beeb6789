package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-program/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-program/internal/entity"
	"github.com/rocketscienceinc/tictactoe-program/internal/service"
)

const (
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

type feed interface {
	Subscribe(ctx context.Context, key entity.Key) (<-chan []byte, func() error, error)
}

type ledger interface {
	Describe(ctx context.Context, key entity.Key) (*service.AccountView, error)
}

type handlerFunc func(ctx context.Context, conn *connection, message *Message) error

// Server streams record changes to websocket clients.
type Server struct {
	logger   *slog.Logger
	feed     feed
	ledger   ledger
	upgrader websocket.Upgrader

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, feed feed, ledger ledger) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		feed:   feed,
		ledger: ledger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},

		handlers: make(map[string]handlerFunc),
	}

	server.handlers[actionFollow] = server.handleFollow
	server.handlers[actionUnfollow] = server.handleUnfollow

	return server
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", that.serveWebSocket)

	return mux
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveWebSocket upgrades the request and follows the account named in the query, if any.
func (that *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveWebSocket")

	var initial *entity.Key
	if raw := r.URL.Query().Get("account"); raw != "" {
		key, err := entity.ParseKey(raw)
		if err != nil {
			http.Error(w, "invalid account", http.StatusBadRequest)
			return
		}
		initial = &key
	}

	ws, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	conn := newConnection(ws)

	defer func() {
		cancel()
		conn.close(log)
	}()

	log.Info("WebSocket connection established", "remote", r.RemoteAddr)

	if initial != nil {
		that.dispatch(ctx, conn, &Message{Action: actionFollow, Payload: mustMarshal(followPayload{Key: *initial})})
	}

	that.handleMessages(ctx, conn)
}

// handleMessages - processes messages from the client until the connection closes.
func (that *Server) handleMessages(ctx context.Context, conn *connection) {
	log := that.logger.With("method", "handleMessages")

	for {
		var message Message
		if err := conn.ws.ReadJSON(&message); err != nil {
			var (
				syntaxErr *json.SyntaxError
				typeErr   *json.UnmarshalTypeError
			)
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				conn.sendError(log, "", err)
				continue
			}

			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("connection closed", "error", err)
			}
			return
		}

		that.dispatch(ctx, conn, &message)
	}
}

func (that *Server) dispatch(ctx context.Context, conn *connection, message *Message) {
	log := that.logger.With("method", "dispatch", "action", message.Action)

	handler, ok := that.handlers[message.Action]
	if !ok {
		conn.sendError(log, message.Action, fmt.Errorf("unknown action %q", message.Action))
		return
	}

	if err := handler(ctx, conn, message); err != nil {
		log.Warn("error processing message", "error", err)
		conn.sendError(log, message.Action, err)
	}
}

// connection serializes writes to one client and tracks its subscriptions.
type connection struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	followsMu sync.Mutex
	follows   map[entity.Key]func() error
}

func newConnection(ws *websocket.Conn) *connection {
	return &connection{
		ws:      ws,
		follows: make(map[entity.Key]func() error),
	}
}

func (that *connection) send(action string, payload json.RawMessage) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := that.ws.WriteJSON(Message{Action: action, Payload: payload}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *connection) sendError(log *slog.Logger, action string, err error) {
	payload := errorPayload{Action: action, Error: err.Error()}
	if code, ok := apperror.Code(err); ok {
		payload.Code = &code
	}

	if sendErr := that.send(actionError, mustMarshal(payload)); sendErr != nil {
		log.Error("failed to send error", "error", sendErr)
	}
}

func (that *connection) close(log *slog.Logger) {
	that.followsMu.Lock()
	for key, closeFn := range that.follows {
		if err := closeFn(); err != nil {
			log.Warn("failed to close subscription", "key", key, "error", err)
		}
	}
	clear(that.follows)
	that.followsMu.Unlock()

	if err := that.ws.Close(); err != nil {
		log.Debug("failed to close connection", "error", err)
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("failed to marshal: %w", err))
	}

	return b
}
