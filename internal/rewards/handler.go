package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/2beens/fitcoach/internal/auth"
	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=rewards_test

type rewardsService interface {
	ConnectWallet(ctx context.Context, userID int64, address string) (*Balance, error)
	RequestTrustLine(ctx context.Context, userID int64) (*Balance, error)
	ConfirmTrustLine(ctx context.Context, userID int64) (*Balance, error)
	FailTrustLine(ctx context.Context, userID int64) (*Balance, error)
	Claim(ctx context.Context, userID int64) (*Transaction, error)
	ConfirmClaim(ctx context.Context, reference, txHash string) (*Transaction, error)
	FailClaim(ctx context.Context, reference, reason string) (*Transaction, error)
	Balance(ctx context.Context, userID int64) (*Balance, error)
	CompletedGoals(ctx context.Context, userID int64) ([]CompletedGoal, error)
	Transactions(ctx context.Context, userID int64) ([]Transaction, error)
}

type ConnectWalletRequest struct {
	Address string `json:"address"`
}

type ConfirmTransferRequest struct {
	TxHash string `json:"txHash"`
}

type FailTransferRequest struct {
	Reason string `json:"reason"`
}

type CompletedGoalsResponse struct {
	CompletedGoals []CompletedGoal `json:"completedGoals"`
	Total          int             `json:"total"`
}

type TransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
}

type Handler struct {
	service rewardsService
}

func NewHandler(service rewardsService) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.viift.balance")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	handler.writeBalance(ctx, w, session.UserID)
}

// HandleAdminBalance shows the balance of the user from the path, for admins.
func (handler *Handler) HandleAdminBalance(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.viift.adminbalance")
	defer span.End()

	userID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "error, user id invalid", http.StatusBadRequest)
		return
	}

	handler.writeBalance(ctx, w, userID)
}

func (handler *Handler) HandleCompletedGoals(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.viift.completedgoals")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	completed, err := handler.service.CompletedGoals(ctx, session.UserID)
	if err != nil {
		log.Errorf("list completed goals for user %d: %s", session.UserID, err)
		http.Error(w, "failed to get completed goals", http.StatusInternalServerError)
		return
	}
	if completed == nil {
		completed = []CompletedGoal{}
	}

	writeJson(w, CompletedGoalsResponse{
		CompletedGoals: completed,
		Total:          len(completed),
	}, http.StatusOK)
}

func (handler *Handler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.viift.transactions")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	transactions, err := handler.service.Transactions(ctx, session.UserID)
	if err != nil {
		log.Errorf("list transactions for user %d: %s", session.UserID, err)
		http.Error(w, "failed to get transactions", http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []Transaction{}
	}

	writeJson(w, TransactionsResponse{
		Transactions: transactions,
		Total:        len(transactions),
	}, http.StatusOK)
}

func (handler *Handler) HandleConnectWallet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.viift.wallet.connect")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req ConnectWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("connect wallet, unmarshal json params: %s", err)
		http.Error(w, "connect wallet failed", http.StatusBadRequest)
		return
	}

	balance, err := handler.service.ConnectWallet(ctx, session.UserID, req.Address)
	if err != nil {
		writeLedgerError(w, "connect wallet", err)
		return
	}

	log.Debugf("user %d connected wallet %s", session.UserID, req.Address)
	writeJson(w, balance, http.StatusOK)
}

func (handler *Handler) HandleRequestTrustLine(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.viift.trustline.request")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	balance, err := handler.service.RequestTrustLine(ctx, session.UserID)
	if err != nil {
		writeLedgerError(w, "request trust line", err)
		return
	}

	writeJson(w, balance, http.StatusAccepted)
}

func (handler *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.viift.claim")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	tx, err := handler.service.Claim(ctx, session.UserID)
	if err != nil {
		writeLedgerError(w, "claim", err)
		return
	}

	span.SetAttributes(attribute.String("transfer.reference", tx.Reference))
	log.Debugf("user %d claimed %d, transfer %s submitted", session.UserID, tx.Amount, tx.Reference)
	writeJson(w, tx, http.StatusAccepted)
}

func (handler *Handler) HandleTrustLineConfirm(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.viift.trustline.confirm")
	defer span.End()

	userID, err := pathID(r, "userId")
	if err != nil {
		http.Error(w, "error, user id invalid", http.StatusBadRequest)
		return
	}

	balance, err := handler.service.ConfirmTrustLine(ctx, userID)
	if err != nil {
		writeLedgerError(w, "confirm trust line", err)
		return
	}

	writeJson(w, balance, http.StatusOK)
}

func (handler *Handler) HandleTrustLineFail(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.viift.trustline.fail")
	defer span.End()

	userID, err := pathID(r, "userId")
	if err != nil {
		http.Error(w, "error, user id invalid", http.StatusBadRequest)
		return
	}

	balance, err := handler.service.FailTrustLine(ctx, userID)
	if err != nil {
		writeLedgerError(w, "fail trust line", err)
		return
	}

	writeJson(w, balance, http.StatusOK)
}

func (handler *Handler) HandleTransferConfirm(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.viift.transfer.confirm")
	defer span.End()

	reference := mux.Vars(r)["id"]
	var req ConfirmTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("confirm transfer, unmarshal json params: %s", err)
		http.Error(w, "confirm transfer failed", http.StatusBadRequest)
		return
	}

	tx, err := handler.service.ConfirmClaim(ctx, reference, req.TxHash)
	if err != nil {
		writeLedgerError(w, "confirm transfer", err)
		return
	}

	log.Debugf("transfer %s confirmed: %s", reference, req.TxHash)
	writeJson(w, tx, http.StatusOK)
}

func (handler *Handler) HandleTransferFail(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.viift.transfer.fail")
	defer span.End()

	reference := mux.Vars(r)["id"]
	var req FailTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("fail transfer, unmarshal json params: %s", err)
		http.Error(w, "fail transfer failed", http.StatusBadRequest)
		return
	}

	tx, err := handler.service.FailClaim(ctx, reference, req.Reason)
	if err != nil {
		writeLedgerError(w, "fail transfer", err)
		return
	}

	writeJson(w, tx, http.StatusOK)
}

func (handler *Handler) writeBalance(ctx context.Context, w http.ResponseWriter, userID int64) {
	balance, err := handler.service.Balance(ctx, userID)
	if err != nil {
		log.Errorf("get balance for user %d: %s", userID, err)
		http.Error(w, "failed to get balance", http.StatusInternalServerError)
		return
	}
	writeJson(w, balance, http.StatusOK)
}

func writeLedgerError(w http.ResponseWriter, op string, err error) {
	switch {
	// checked first, it wraps the causes of the failed rollback
	case errors.Is(err, ErrClaimRollbackFailed):
		log.Errorf("%s: %s", op, err)
		http.Error(w, "error, token transfer failed, balance not restored yet", http.StatusInternalServerError)
	case errors.Is(err, ErrInvalidWalletAddress):
		http.Error(w, "error, invalid wallet address", http.StatusBadRequest)
	case errors.Is(err, ErrTxHashMissing):
		http.Error(w, "error, tx hash missing", http.StatusBadRequest)
	case errors.Is(err, ErrTransactionNotFound):
		http.Error(w, "error, transaction not found", http.StatusNotFound)
	case errors.Is(err, ErrClaimNotEligible),
		errors.Is(err, ErrWalletNotConnected),
		errors.Is(err, ErrInvalidTrustLineTransition),
		errors.Is(err, ErrTransactionNotPending):
		http.Error(w, "error, "+err.Error(), http.StatusConflict)
	case errors.Is(err, ErrConcurrentUpdate):
		http.Error(w, "error, balance busy, try again", http.StatusConflict)
	case errors.Is(err, ErrTransferFailed):
		log.Errorf("%s: %s", op, err)
		http.Error(w, "error, token transfer failed, balance restored", http.StatusBadGateway)
	default:
		log.Errorf("%s: %s", op, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJson(w http.ResponseWriter, v any, status int) {
	respJson, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal viift response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, status)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("id must be positive")
	}
	return id, nil
}
