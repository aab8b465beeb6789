package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/tictactoe-program/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-program/internal/entity"
	"github.com/rocketscienceinc/tictactoe-program/internal/repository"
	"github.com/rocketscienceinc/tictactoe-program/internal/service"
)

const maxBodySize = 1 << 16

type ledger interface {
	Allocate(ctx context.Context, kind string) (*entity.Account, error)
	Submit(ctx context.Context, tx service.Transaction) (*service.Receipt, error)
	Describe(ctx context.Context, key entity.Key) (*service.AccountView, error)
}

type Handlers struct {
	logger *slog.Logger
	ledger ledger
}

func NewHandlers(logger *slog.Logger, ledger ledger) *Handlers {
	return &Handlers{
		logger: logger.With("component", "handlers"),
		ledger: ledger,
	}
}

type allocateRequest struct {
	Kind string `json:"kind"`
}

type allocateResponse struct {
	Key     entity.Key `json:"key"`
	Owner   entity.Key `json:"owner"`
	Balance uint64     `json:"balance"`
	Size    int        `json:"size"`
}

// transactionRequest carries keys as hex and data as base64.
type transactionRequest struct {
	Records []entity.Key `json:"records"`
	Signers []entity.Key `json:"signers"`
	Data    []byte       `json:"data"`
}

type errorResponse struct {
	Error string  `json:"error"`
	Code  *uint32 `json:"code,omitempty"`
}

func (that *Handlers) Ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func (that *Handlers) Allocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := decodeBody(w, r, &req); err != nil {
		that.writeError(w, "Allocate", err)
		return
	}

	account, err := that.ledger.Allocate(r.Context(), req.Kind)
	if err != nil {
		that.writeError(w, "Allocate", err)
		return
	}

	that.writeJSON(w, http.StatusCreated, allocateResponse{
		Key:     account.ID,
		Owner:   account.OwnerKey,
		Balance: account.Lamports,
		Size:    len(account.Buffer),
	})
}

func (that *Handlers) Describe(w http.ResponseWriter, r *http.Request) {
	key, err := entity.ParseKey(r.PathValue("key"))
	if err != nil {
		that.writeError(w, "Describe", fmt.Errorf("%w: %w", apperror.ErrInvalidArgument, err))
		return
	}

	view, err := that.ledger.Describe(r.Context(), key)
	if err != nil {
		that.writeError(w, "Describe", err)
		return
	}

	that.writeJSON(w, http.StatusOK, view)
}

func (that *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		that.writeError(w, "Submit", err)
		return
	}

	receipt, err := that.ledger.Submit(r.Context(), service.Transaction{
		Records: req.Records,
		Signers: req.Signers,
		Data:    req.Data,
	})
	if err != nil {
		that.writeError(w, "Submit", err)
		return
	}

	that.writeJSON(w, http.StatusOK, receipt)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %w", apperror.ErrInvalidArgument, err)
	}

	return nil
}

func (that *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}

func (that *Handlers) writeError(w http.ResponseWriter, method string, err error) {
	status := statusOf(err)
	resp := errorResponse{Error: err.Error()}

	if code, ok := apperror.Code(err); ok {
		resp.Code = &code
	}

	if status == http.StatusInternalServerError {
		that.logger.Error("request failed", "method", method, "error", err)
		resp.Error = http.StatusText(status)
	}

	that.writeJSON(w, status, resp)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperror.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict), errors.Is(err, repository.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrMissingSigner):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrInvalidArgument),
		errors.Is(err, apperror.ErrInvalidInstruction),
		errors.Is(err, apperror.ErrNotEnoughRecords):
		return http.StatusBadRequest
	}

	if _, ok := apperror.Code(err); ok {
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}
