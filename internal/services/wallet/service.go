package wallet

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/LILIANSRL/chibank/internal/errors"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"
	"github.com/LILIANSRL/chibank/internal/services/authorization"
	"github.com/LILIANSRL/chibank/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
)

type service struct {
	repos   *repositories.Repositories
	gate    *authorization.Gate
	cache   Cache
	metrics MetricsCollector
}

// NewService creates a new wallet service
func NewService(
	repos *repositories.Repositories,
	gate *authorization.Gate,
	cache Cache,
	metrics MetricsCollector,
) Service {
	if repos == nil {
		panic("repositories are required")
	}
	if gate == nil {
		panic("authorization gate is required")
	}
	if cache == nil {
		cache = noopCache{}
	}
	// Metrics is optional, create no-op collector if nil
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	return &service{
		repos:   repos,
		gate:    gate,
		cache:   cache,
		metrics: metrics,
	}
}

func (s *service) CreateWallet(ctx context.Context, owner models.ActorRef, req CreateWalletRequest) (wallet *models.MultiSigWallet, err error) {
	defer s.observe(opCreate, time.Now(), &err)

	if !owner.Valid() {
		return nil, apperrors.Validation("invalid owner")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.RequiredSignatures > len(req.Signers)+1 {
		return nil, apperrors.Validation("required signatures (%d) cannot exceed total signers (%d)",
			req.RequiredSignatures, len(req.Signers)+1)
	}

	err = s.repos.ExecuteInTransaction(ctx, func(tx *repositories.Repositories) error {
		ownerName, ownerEmail, err := s.ownerSnapshot(ctx, tx, owner)
		if err != nil {
			return err
		}

		invitees, err := s.buildInvitees(ctx, tx, owner, ownerEmail, req.Signers)
		if err != nil {
			return err
		}

		wallet = &models.MultiSigWallet{
			Name:               strings.TrimSpace(req.Name),
			WalletType:         models.WalletTypeMultiSig,
			OwnerID:            owner.ID,
			OwnerType:          owner.Kind,
			Blockchain:         strings.ToLower(strings.TrimSpace(req.Blockchain)),
			CurrencyCode:       strings.ToUpper(strings.TrimSpace(req.CurrencyCode)),
			Address:            optional(models.NormalizeAddress(req.Address)),
			PublicKey:          optional(req.PublicKey),
			ContractAddress:    optional(req.ContractAddress),
			WalletData:         models.NewJSON(req.WalletData),
			RequiredSignatures: req.RequiredSignatures,
			TotalSigners:       len(invitees) + 1,
			Balance:            decimal.Zero,
			Status:             true,
		}
		if err := tx.Wallets.Create(ctx, wallet); err != nil {
			return apperrors.Persistence("create wallet", err)
		}

		ownerID := owner.ID
		rows := make([]*models.WalletSigner, 0, len(invitees)+1)
		rows = append(rows, &models.WalletSigner{
			MultiSigWalletID: wallet.ID,
			SignerID:         &ownerID,
			SignerType:       owner.Kind,
			SignerName:       ownerName,
			SignerEmail:      ownerEmail,
			Weight:           DefaultSignerWeight,
			IsOwner:          true,
			CanInitiate:      true,
			CanApprove:       true,
			Status:           true,
		})
		for _, inv := range invitees {
			inv.MultiSigWalletID = wallet.ID
			rows = append(rows, inv)
		}
		if err := tx.Signers.CreateBatch(ctx, rows); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return apperrors.Validation("a signer is listed more than once")
			}
			return apperrors.Persistence("create signers", err)
		}

		wallet.Signers = make([]models.WalletSigner, 0, len(rows))
		for _, r := range rows {
			wallet.Signers = append(wallet.Signers, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logx.WithContext(ctx).Infof("created wallet %d for %s with %d signer(s), quorum %d",
		wallet.ID, owner, wallet.TotalSigners, wallet.RequiredSignatures)
	return wallet, nil
}

// ownerSnapshot resolves the owner's display name and email when the owner
// is a registered user.
func (s *service) ownerSnapshot(ctx context.Context, tx *repositories.Repositories, owner models.ActorRef) (string, string, error) {
	if owner.Kind != models.ActorUser {
		return "Owner", "", nil
	}
	user, err := tx.Users.GetByID(ctx, owner.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return "Owner", "", nil
	}
	if err != nil {
		return "", "", apperrors.Persistence("get owner", err)
	}
	return user.Username, strings.ToLower(user.Email), nil
}

func (s *service) buildInvitees(ctx context.Context, tx *repositories.Repositories, owner models.ActorRef, ownerEmail string, inputs []SignerInput) ([]*models.WalletSigner, error) {
	seen := make(map[string]bool, len(inputs))
	out := make([]*models.WalletSigner, 0, len(inputs))

	for i, in := range inputs {
		email := strings.ToLower(strings.TrimSpace(in.Email))
		if seen[email] {
			return nil, apperrors.Validation("signers[%d]: email %s is listed more than once", i, email)
		}
		seen[email] = true
		if ownerEmail != "" && email == ownerEmail {
			return nil, apperrors.Validation("signers[%d]: the owner is added automatically", i)
		}

		kind := models.ActorUser
		if in.SignerType != "" {
			k, err := models.ParseActorKind(in.SignerType)
			if err != nil {
				return nil, apperrors.Validation("signers[%d]: %v", i, err)
			}
			kind = k
		}
		weight := in.Weight
		if weight == 0 {
			weight = DefaultSignerWeight
		}
		canApprove := true
		if in.CanApprove != nil {
			canApprove = *in.CanApprove
		}

		row := &models.WalletSigner{
			SignerType:    kind,
			SignerName:    strings.TrimSpace(in.Name),
			SignerEmail:   email,
			PublicKey:     optional(in.PublicKey),
			WalletAddress: optional(models.NormalizeAddress(in.WalletAddress)),
			Weight:        weight,
			CanInitiate:   in.CanInitiate,
			CanApprove:    canApprove,
			Status:        true,
		}

		// Invitees with an account are bound now; the rest stay pending
		// until they register and claim the invitation.
		if kind == models.ActorUser {
			user, err := tx.Users.GetByEmail(ctx, email)
			switch {
			case err == nil:
				if user.Actor() == owner {
					return nil, apperrors.Validation("signers[%d]: the owner is added automatically", i)
				}
				id := user.ID
				row.SignerID = &id
			case !errors.Is(err, repositories.ErrNotFound):
				return nil, apperrors.Persistence("look up signer", err)
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *service) GetWallet(ctx context.Context, walletID uint, actor models.ActorRef) (*models.MultiSigWallet, error) {
	wallet, err := s.load(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanView(ctx, wallet, actor); err != nil {
		return nil, err
	}

	signers, err := s.repos.Signers.ListByWallet(ctx, walletID)
	if err != nil {
		return nil, apperrors.Persistence("list signers", err)
	}
	out := *wallet
	out.Signers = signers
	return &out, nil
}

// load reads the bare wallet row through the cache.
func (s *service) load(ctx context.Context, walletID uint) (*models.MultiSigWallet, error) {
	if cached, found, err := s.cache.GetWallet(ctx, walletID); err != nil {
		logx.WithContext(ctx).Errorf("wallet cache read failed for %d: %v", walletID, err)
	} else if found {
		s.metrics.RecordCacheHit()
		return cached, nil
	}
	s.metrics.RecordCacheMiss()

	wallet, err := s.repos.Wallets.GetByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("wallet")
		}
		return nil, apperrors.Persistence("get wallet", err)
	}

	if err := s.cache.CacheWallet(ctx, wallet); err != nil {
		logx.WithContext(ctx).Errorf("wallet cache write failed for %d: %v", walletID, err)
	}
	return wallet, nil
}

func (s *service) ListWallets(ctx context.Context, owner models.ActorRef, limit, offset int) ([]models.MultiSigWallet, int64, error) {
	wallets, total, err := s.repos.Wallets.ListByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Persistence("list wallets", err)
	}
	return wallets, total, nil
}

func (s *service) UpdateStatus(ctx context.Context, walletID uint, actor models.ActorRef, active bool) (wallet *models.MultiSigWallet, err error) {
	defer s.observe(opStatus, time.Now(), &err)

	err = s.repos.ExecuteInTransaction(ctx, func(tx *repositories.Repositories) error {
		w, err := s.lock(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if err := s.gate.CanManage(w, actor); err != nil {
			return err
		}
		if err := tx.Wallets.UpdateStatus(ctx, walletID, active); err != nil {
			return apperrors.Persistence("update wallet status", err)
		}
		w.Status = active
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateCache(ctx, walletID)
	logx.WithContext(ctx).Infof("wallet %d status set to %t by %s", walletID, active, actor)
	return wallet, nil
}

func (s *service) DeleteWallet(ctx context.Context, walletID uint, actor models.ActorRef) (err error) {
	defer s.observe(opDelete, time.Now(), &err)

	err = s.repos.ExecuteInTransaction(ctx, func(tx *repositories.Repositories) error {
		w, err := s.lock(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if err := s.gate.CanManage(w, actor); err != nil {
			return err
		}
		if !w.Balance.IsZero() {
			return apperrors.Validation("cannot delete wallet with non-zero balance")
		}
		if err := tx.Wallets.Delete(ctx, walletID); err != nil {
			return apperrors.Persistence("delete wallet", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.InvalidateCache(ctx, walletID)
	logx.WithContext(ctx).Infof("wallet %d deleted by %s", walletID, actor)
	return nil
}

func (s *service) GetBalance(ctx context.Context, walletID uint) (decimal.Decimal, error) {
	wallet, err := s.repos.Wallets.GetByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return decimal.Zero, apperrors.NotFound("wallet")
		}
		return decimal.Zero, apperrors.Persistence("get balance", err)
	}
	return wallet.Balance, nil
}

func (s *service) Credit(ctx context.Context, walletID uint, actor models.ActorRef, amount decimal.Decimal) (wallet *models.MultiSigWallet, err error) {
	defer s.observe(opCredit, time.Now(), &err)

	if actor.Kind != models.ActorAdmin {
		return nil, apperrors.Authorization("credit wallet")
	}
	if !amount.IsPositive() {
		return nil, apperrors.Validation("amount must be greater than zero")
	}

	err = s.repos.ExecuteInTransaction(ctx, func(tx *repositories.Repositories) error {
		w, err := s.lock(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if !w.Status {
			return apperrors.InvalidState("wallet is inactive")
		}

		w.Balance = w.Balance.Add(amount)
		if err := tx.Wallets.UpdateBalance(ctx, walletID, w.Balance); err != nil {
			return apperrors.Persistence("credit wallet", err)
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateCache(ctx, walletID)
	s.metrics.RecordVolume(DirectionCredit, wallet.CurrencyCode, amount.InexactFloat64())
	logx.WithContext(ctx).Infof("wallet %d credited %s %s by %s", walletID, amount.String(), wallet.CurrencyCode, actor)
	return wallet, nil
}

func (s *service) Debit(ctx context.Context, tx *repositories.Repositories, walletID uint, amount decimal.Decimal) (wallet *models.MultiSigWallet, err error) {
	defer s.observe(opDebit, time.Now(), &err)

	if tx == nil {
		return nil, errors.New("debit requires a database transaction")
	}
	if !amount.IsPositive() {
		return nil, apperrors.Validation("amount must be greater than zero")
	}

	w, err := s.lock(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(w.Balance) {
		return nil, apperrors.InsufficientFunds("insufficient wallet balance: need %s, have %s",
			amount.String(), w.Balance.String())
	}

	w.Balance = w.Balance.Sub(amount)
	if err := tx.Wallets.UpdateBalance(ctx, walletID, w.Balance); err != nil {
		return nil, apperrors.Persistence("debit wallet", err)
	}

	s.metrics.RecordVolume(DirectionDebit, w.CurrencyCode, amount.InexactFloat64())
	return w, nil
}

func (s *service) InvalidateCache(ctx context.Context, walletID uint) {
	if err := s.cache.InvalidateWallet(ctx, walletID); err != nil {
		logx.WithContext(ctx).Errorf("wallet cache invalidation failed for %d: %v", walletID, err)
	}
}

func (s *service) IsOwner(wallet *models.MultiSigWallet, actor models.ActorRef) bool {
	return wallet != nil && wallet.IsOwner(actor)
}

func (s *service) IsActiveSigner(ctx context.Context, walletID uint, actor models.ActorRef) (bool, error) {
	_, err := s.repos.Signers.FindActive(ctx, walletID, actor)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Persistence("find signer", err)
	}
	return true, nil
}

func (s *service) lock(ctx context.Context, tx *repositories.Repositories, walletID uint) (*models.MultiSigWallet, error) {
	w, err := tx.Wallets.LockByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("wallet")
		}
		return nil, apperrors.Persistence("lock wallet", err)
	}
	return w, nil
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

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
