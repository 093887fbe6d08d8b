package transaction

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/LILIANSRL/chibank/internal/errors"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"
	"github.com/LILIANSRL/chibank/internal/services/approval"
	"github.com/LILIANSRL/chibank/internal/services/authorization"
	"github.com/LILIANSRL/chibank/internal/services/wallet"
	"github.com/LILIANSRL/chibank/internal/validation"

	"github.com/zeromicro/go-zero/core/logx"
)

type service struct {
	repos        *repositories.Repositories
	wallets      wallet.Service
	gate         *authorization.Gate
	approvals    approval.Ledger
	broadcaster  Broadcaster
	metrics      MetricsCollector
	notifier     Notifier
	newReference func() string
	now          func() time.Time
}

// NewService creates the transaction workflow.
func NewService(cfg Config) Service {
	if cfg.Repos == nil {
		panic("repositories are required")
	}
	if cfg.Wallets == nil {
		panic("wallet service is required")
	}
	if cfg.Gate == nil {
		panic("authorization gate is required")
	}
	if cfg.Approvals == nil {
		panic("approval ledger is required")
	}
	if cfg.Broadcaster == nil {
		panic("broadcaster is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &NoopMetricsCollector{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = noopNotifier{}
	}
	if cfg.NewReference == nil {
		cfg.NewReference = GenerateReference
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &service{
		repos:        cfg.Repos,
		wallets:      cfg.Wallets,
		gate:         cfg.Gate,
		approvals:    cfg.Approvals,
		broadcaster:  cfg.Broadcaster,
		metrics:      cfg.Metrics,
		notifier:     cfg.Notifier,
		newReference: cfg.NewReference,
		now:          cfg.Now,
	}
}

func (s *service) Initiate(ctx context.Context, walletID uint, actor models.ActorRef, req InitiateRequest) (txn *models.MultiSigTransaction, err error) {
	defer s.observe(opInitiate, time.Now(), &err)

	if err := validateInitiate(req); err != nil {
		return nil, err
	}

	w, err := s.repos.Wallets.GetByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("wallet")
		}
		return nil, apperrors.Persistence("get wallet", err)
	}
	if err := s.gate.CanInitiate(ctx, walletID, actor); err != nil {
		return nil, err
	}
	if !w.Status {
		return nil, apperrors.InvalidState("wallet is inactive")
	}

	// Pre-check only; Execute re-checks under the wallet row lock.
	total := req.Amount.Add(req.Fee)
	if total.GreaterThan(w.Balance) {
		return nil, apperrors.InsufficientFunds("insufficient wallet balance: need %s, have %s",
			total.String(), w.Balance.String())
	}

	now := s.now()
	from := ""
	if w.Address != nil {
		from = *w.Address
	}
	txn = &models.MultiSigTransaction{
		MultiSigWalletID:  w.ID,
		TransactionType:   models.TransactionType(req.TransactionType),
		FromAddress:       from,
		ToAddress:         strings.TrimSpace(req.ToAddress),
		Amount:            req.Amount,
		Currency:          w.CurrencyCode,
		Fee:               req.Fee,
		TransactionData:   transactionData(req),
		RequiredApprovals: w.RequiredSignatures,
		CurrentApprovals:  0,
		Status:            models.StatusPending,
		InitiatedBy:       actor.ID,
		InitiatorType:     actor.Kind,
		InitiatedAt:       &now,
	}

	for attempt := 1; ; attempt++ {
		txn.ID = 0
		txn.TrxID = s.newReference()
		err = s.repos.Transactions.Create(ctx, txn)
		if err == nil {
			break
		}
		if !errors.Is(err, repositories.ErrDuplicate) || attempt >= DefaultReferenceTries {
			return nil, apperrors.Persistence("create transaction", err)
		}
		logx.WithContext(ctx).Infof("transaction reference %s collided, retrying (%d/%d)",
			txn.TrxID, attempt, DefaultReferenceTries)
	}

	s.metrics.RecordTransition(string(models.StatusPending))
	s.notify(ctx, txn)
	logx.WithContext(ctx).Infof("transaction %s initiated on wallet %d by %s: %s %s, quorum %d",
		txn.TrxID, walletID, actor, txn.Amount.String(), txn.Currency, txn.RequiredApprovals)
	return txn, nil
}

func validateInitiate(req InitiateRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	v := validation.New()
	v.Positive("amount", req.Amount)
	v.NonNegative("fee", req.Fee)
	v.MaxLength("to_address", req.ToAddress, validation.MaxAddressLength)
	return v.Err()
}

func transactionData(req InitiateRequest) models.JSON {
	data := models.JSON{}
	for k, v := range map[string]string{
		DataMemo:     req.Memo,
		DataGasLimit: req.GasLimit,
		DataGasPrice: req.GasPrice,
		DataRawTx:    req.RawTx,
	} {
		if v = strings.TrimSpace(v); v != "" {
			data[k] = v
		}
	}
	if len(data) == 0 {
		return nil
	}
	return data
}

func (s *service) Approve(ctx context.Context, walletID, txID uint, actor models.ActorRef, audit approval.Audit) (*models.MultiSigTransaction, error) {
	return s.RecordAction(ctx, walletID, txID, actor, models.ActionApprove, "", audit)
}

func (s *service) Reject(ctx context.Context, walletID, txID uint, actor models.ActorRef, reason string, audit approval.Audit) (*models.MultiSigTransaction, error) {
	return s.RecordAction(ctx, walletID, txID, actor, models.ActionReject, reason, audit)
}

func (s *service) RecordAction(ctx context.Context, walletID, txID uint, actor models.ActorRef, action models.ApprovalAction, reason string, audit approval.Audit) (txn *models.MultiSigTransaction, err error) {
	op := opApprove
	if action == models.ActionReject {
		op = opReject
	}
	defer s.observe(op, time.Now(), &err)

	if action != models.ActionApprove && action != models.ActionReject {
		return nil, apperrors.Validation("unknown action %q", action)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultRejectionReason
	}
	if action == models.ActionReject && audit.Comment == "" {
		audit.Comment = reason
	}

	var before models.TransactionStatus
	err = s.repos.ExecuteInTransaction(ctx, func(tx *repositories.Repositories) error {
		locked, err := s.lockTransaction(ctx, tx, walletID, txID)
		if err != nil {
			return err
		}
		before = locked.Status
		if locked.Status != models.StatusPending {
			return apperrors.InvalidState("transaction is %s, not pending", locked.Status)
		}
		if err := s.gate.WithTx(tx).CanAct(ctx, locked, actor, action); err != nil {
			return err
		}
		if _, err := s.approvals.WithTx(tx).Record(ctx, locked, actor, action, audit); err != nil {
			return err
		}

		var changed int64
		if action == models.ActionApprove {
			changed, err = tx.Transactions.IncrementApprovals(ctx, locked.ID)
		} else {
			changed, err = tx.Transactions.MarkRejected(ctx, locked.ID, reason)
		}
		if err != nil {
			return apperrors.Persistence("update transaction", err)
		}
		if changed == 0 {
			return apperrors.InvalidState("transaction is no longer pending")
		}

		txn, err = tx.Transactions.GetByID(ctx, walletID, txID)
		if err != nil {
			return apperrors.Persistence("reload transaction", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if txn.Status != before {
		s.metrics.RecordTransition(string(txn.Status))
		s.notify(ctx, txn)
		logx.WithContext(ctx).Infof("transaction %s moved %s -> %s after %s by %s",
			txn.TrxID, before, txn.Status, action, actor)
	}
	return txn, nil
}

func (s *service) CanBeExecuted(txn *models.MultiSigTransaction) bool {
	return txn != nil && txn.CanBeExecuted()
}

func (s *service) Execute(ctx context.Context, walletID, txID uint, actor models.ActorRef) (txn *models.MultiSigTransaction, err error) {
	defer s.observe(opExecute, time.Now(), &err)

	err = s.repos.ExecuteInTransaction(ctx, func(tx *repositories.Repositories) error {
		locked, err := s.lockTransaction(ctx, tx, walletID, txID)
		if err != nil {
			return err
		}
		if err := s.gate.CanExecute(locked); err != nil {
			return err
		}

		w, err := s.wallets.Debit(ctx, tx, walletID, locked.Total())
		if err != nil {
			return err
		}

		hash, err := s.broadcaster.Broadcast(ctx, w.Blockchain, locked)
		if err != nil {
			logx.WithContext(ctx).Errorf("broadcast of %s failed: %v", locked.TrxID, err)
			return apperrors.ExecutionFailed(err)
		}

		changed, err := tx.Transactions.MarkExecuted(ctx, locked.ID, hash, s.now())
		if err != nil {
			return apperrors.Persistence("mark executed", err)
		}
		if changed == 0 {
			return apperrors.InvalidState("transaction is no longer approved")
		}

		txn, err = tx.Transactions.GetByID(ctx, walletID, txID)
		if err != nil {
			return apperrors.Persistence("reload transaction", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.wallets.InvalidateCache(ctx, walletID)
	s.metrics.RecordTransition(string(models.StatusExecuted))
	s.notify(ctx, txn)
	logx.WithContext(ctx).Infof("transaction %s executed by %s, hash %s", txn.TrxID, actor, *txn.BlockchainTxnHash)
	return txn, nil
}

func (s *service) MarkFailed(ctx context.Context, walletID, txID uint, actor models.ActorRef, reason string) (txn *models.MultiSigTransaction, err error) {
	defer s.observe(opFail, time.Now(), &err)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Validation("reason is required")
	}

	err = s.repos.ExecuteInTransaction(ctx, func(tx *repositories.Repositories) error {
		w, err := tx.Wallets.GetByID(ctx, walletID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.NotFound("wallet")
			}
			return apperrors.Persistence("get wallet", err)
		}
		if err := s.gate.CanManage(w, actor); err != nil {
			return err
		}

		locked, err := s.lockTransaction(ctx, tx, walletID, txID)
		if err != nil {
			return err
		}
		if !models.CanTransition(locked.Status, models.StatusFailed) {
			return apperrors.InvalidState("transaction is %s, not approved", locked.Status)
		}

		changed, err := tx.Transactions.MarkFailed(ctx, locked.ID, reason)
		if err != nil {
			return apperrors.Persistence("mark failed", err)
		}
		if changed == 0 {
			return apperrors.InvalidState("transaction is no longer approved")
		}

		txn, err = tx.Transactions.GetByID(ctx, walletID, txID)
		if err != nil {
			return apperrors.Persistence("reload transaction", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(models.StatusFailed))
	s.notify(ctx, txn)
	logx.WithContext(ctx).Infof("transaction %s marked failed by %s: %s", txn.TrxID, actor, reason)
	return txn, nil
}

func (s *service) GetTransaction(ctx context.Context, walletID, txID uint, actor models.ActorRef) (*models.MultiSigTransaction, error) {
	if err := s.canView(ctx, walletID, actor); err != nil {
		return nil, err
	}
	txn, err := s.repos.Transactions.GetByID(ctx, walletID, txID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("transaction")
		}
		return nil, apperrors.Persistence("get transaction", err)
	}
	return txn, nil
}

func (s *service) ListTransactions(ctx context.Context, walletID uint, actor models.ActorRef, filter ListFilter) ([]models.MultiSigTransaction, int64, error) {
	if err := s.canView(ctx, walletID, actor); err != nil {
		return nil, 0, err
	}
	txns, total, err := s.repos.Transactions.ListByWallet(ctx, walletID, repositories.TransactionFilter{
		Status: filter.Status,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
	if err != nil {
		return nil, 0, apperrors.Persistence("list transactions", err)
	}
	return txns, total, nil
}

func (s *service) canView(ctx context.Context, walletID uint, actor models.ActorRef) error {
	w, err := s.repos.Wallets.GetByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.NotFound("wallet")
		}
		return apperrors.Persistence("get wallet", err)
	}
	return s.gate.CanView(ctx, w, actor)
}

func (s *service) lockTransaction(ctx context.Context, tx *repositories.Repositories, walletID, txID uint) (*models.MultiSigTransaction, error) {
	txn, err := tx.Transactions.LockByID(ctx, walletID, txID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("transaction")
		}
		return nil, apperrors.Persistence("lock transaction", err)
	}
	return txn, nil
}

func (s *service) observe(op string, start time.Time, err *error) {
	result := "ok"
	if *err != nil {
		result = "error"
		if kind, ok := apperrors.KindOf(*err); ok {
			result = string(kind)
		}
	}
	s.metrics.RecordOperation(op, result, time.Since(start))
}

// notify runs after commit; delivery failures do not undo the transition.
func (s *service) notify(ctx context.Context, txn *models.MultiSigTransaction) {
	if _, err := s.notifier.NotifyTransition(ctx, txn); err != nil {
		logx.WithContext(ctx).Errorf("failed to notify signers of transaction %s: %v", txn.TrxID, err)
	}
}
