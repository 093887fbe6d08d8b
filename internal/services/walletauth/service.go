// Package walletauth implements login by wallet signature: the client asks
// for a nonce, signs the returned message with its chain wallet and trades
// the signature for a session. Nonces are single use.
package walletauth

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/LILIANSRL/chibank/internal/errors"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"
	"github.com/LILIANSRL/chibank/internal/utils"
	"github.com/LILIANSRL/chibank/internal/validation"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	RequestNonce(ctx context.Context, req NonceRequest) (*NonceResponse, error)
	VerifySignature(ctx context.Context, req VerifyRequest) (*Session, error)
	LinkWallet(ctx context.Context, actor models.ActorRef, req VerifyRequest) (*models.WalletAuthentication, error)
	UnlinkWallet(ctx context.Context, actor models.ActorRef, id uint) error
	LinkedWallets(ctx context.Context, actor models.ActorRef) ([]models.WalletAuthentication, error)
	SweepExpiredNonces(ctx context.Context) (int64, error)
}

type service struct {
	repos     *repositories.Repositories
	verifiers Verifiers
	tokens    TokenIssuer
	metrics   MetricsCollector
	nonceTTL  time.Duration
	now       func() time.Time
}

func NewService(cfg Config) Service {
	if cfg.Repos == nil {
		panic("repositories are required")
	}
	if cfg.Verifiers == nil {
		panic("verifier registry is required")
	}
	if cfg.Tokens == nil {
		panic("token issuer is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &NoopMetricsCollector{}
	}
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = DefaultNonceTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &service{
		repos:     cfg.Repos,
		verifiers: cfg.Verifiers,
		tokens:    cfg.Tokens,
		metrics:   cfg.Metrics,
		nonceTTL:  cfg.NonceTTL,
		now:       cfg.Now,
	}
}

func (s *service) RequestNonce(ctx context.Context, req NonceRequest) (*NonceResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	chainName := strings.ToLower(strings.TrimSpace(req.Chain))
	if _, ok := s.verifiers.Get(chainName); !ok {
		return nil, apperrors.Validation("unsupported blockchain %q", req.Chain)
	}

	nonce, err := utils.GenerateUniqueID(nonceBytes)
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(s.nonceTTL)

	stored, err := s.repos.WalletAuths.SaveNonce(ctx, &models.WalletAuthentication{
		UserType:       models.ActorUser,
		WalletAddress:  models.NormalizeAddress(req.Address),
		Blockchain:     chainName,
		WalletProvider: strings.TrimSpace(req.Provider),
		Nonce:          &nonce,
		NonceExpiresAt: &expires,
		Status:         true,
	})
	if err != nil {
		return nil, apperrors.Persistence("save nonce", err)
	}

	logx.WithContext(ctx).Infof("nonce issued for %s wallet %s", stored.Blockchain, stored.WalletAddress)
	return &NonceResponse{Nonce: nonce, Message: Message(nonce), ExpiresAt: expires}, nil
}

func (s *service) VerifySignature(ctx context.Context, req VerifyRequest) (session *Session, err error) {
	chainName := strings.ToLower(strings.TrimSpace(req.Chain))
	defer func() { s.metrics.RecordLogin(chainName, loginResult(err)) }()

	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	session = &Session{}
	err = s.repos.ExecuteInTransaction(ctx, func(tx *repositories.Repositories) error {
		auth, err := s.consumeNonce(ctx, tx, chainName, req)
		if err != nil {
			return err
		}

		var user *models.User
		if auth.UserID != nil {
			user, err = tx.Users.GetByID(ctx, *auth.UserID)
			if err != nil {
				return apperrors.Persistence("get user", err)
			}
			if !user.IsActive() {
				return apperrors.Authorization("login")
			}
		} else {
			user, err = s.createWalletUser(ctx, tx, req.Address, auth.WalletAddress)
			if err != nil {
				return err
			}
			auth.UserID = &user.ID
			auth.UserType = user.Actor().Kind
			auth.IsPrimary = true
		}

		if err := tx.WalletAuths.Save(ctx, auth); err != nil {
			return apperrors.Persistence("save wallet authentication", err)
		}
		if err := tx.Users.RecordLogin(ctx, user.ID, req.IPAddress, s.now()); err != nil {
			return apperrors.Persistence("record login", err)
		}

		access, refresh, err := s.tokens.GenerateTokens(&models.UserClaims{
			UserID:       user.ID,
			Kind:         user.Actor().Kind,
			Email:        user.Email,
			TokenVersion: user.TokenVersion,
		})
		if err != nil {
			return err
		}

		session.User = user
		session.Wallet = auth
		session.AccessToken = access
		session.RefreshToken = refresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	logx.WithContext(ctx).Infof("user %d logged in with %s wallet %s",
		session.User.ID, session.Wallet.Blockchain, session.Wallet.WalletAddress)
	return session, nil
}

func (s *service) LinkWallet(ctx context.Context, actor models.ActorRef, req VerifyRequest) (linked *models.WalletAuthentication, err error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	chainName := strings.ToLower(strings.TrimSpace(req.Chain))

	err = s.repos.ExecuteInTransaction(ctx, func(tx *repositories.Repositories) error {
		auth, err := s.consumeNonce(ctx, tx, chainName, req)
		if err != nil {
			return err
		}
		if auth.UserID != nil && (*auth.UserID != actor.ID || auth.UserType != actor.Kind) {
			return apperrors.DuplicateAction("wallet is already linked to another account")
		}

		if auth.UserID == nil {
			primaries, err := tx.WalletAuths.CountPrimary(ctx, actor)
			if err != nil {
				return apperrors.Persistence("count primary wallets", err)
			}
			id := actor.ID
			auth.UserID = &id
			auth.UserType = actor.Kind
			auth.IsPrimary = primaries == 0
		}

		if err := tx.WalletAuths.Save(ctx, auth); err != nil {
			return apperrors.Persistence("save wallet authentication", err)
		}
		linked = auth
		return nil
	})
	if err != nil {
		return nil, err
	}

	logx.WithContext(ctx).Infof("%s linked %s wallet %s", actor, linked.Blockchain, linked.WalletAddress)
	return linked, nil
}

// consumeNonce locks the (address, chain) row, checks the nonce and the
// signature over it and clears the nonce. Callers save the row inside the
// same transaction.
func (s *service) consumeNonce(ctx context.Context, tx *repositories.Repositories, chainName string, req VerifyRequest) (*models.WalletAuthentication, error) {
	verifier, ok := s.verifiers.Get(chainName)
	if !ok {
		return nil, apperrors.Validation("unsupported blockchain %q", req.Chain)
	}

	auth, err := tx.WalletAuths.LockByAddress(ctx, models.NormalizeAddress(req.Address), chainName)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ExpiredNonce()
		}
		return nil, apperrors.Persistence("lock wallet authentication", err)
	}
	now := s.now()
	if !auth.IsNonceValid(now) {
		return nil, apperrors.ExpiredNonce()
	}

	// Base58 addresses are case sensitive, so verify against the address as sent.
	valid, err := verifier.Verify(ctx, strings.TrimSpace(req.Address), Message(*auth.Nonce), strings.TrimSpace(req.Signature))
	if err != nil {
		logx.WithContext(ctx).Errorf("signature verification failed for %s: %v", auth.WalletAddress, err)
		return nil, apperrors.InvalidSignature()
	}
	if !valid {
		return nil, apperrors.InvalidSignature()
	}

	sig := strings.TrimSpace(req.Signature)
	auth.ClearNonce()
	auth.Signature = &sig
	auth.IsVerified = true
	auth.Status = true
	auth.LastLoginAt = &now
	auth.LoginIP = req.IPAddress
	auth.LoginUserAgent = req.UserAgent
	if p := strings.TrimSpace(req.Provider); p != "" {
		auth.WalletProvider = p
	}
	return auth, nil
}

func (s *service) createWalletUser(ctx context.Context, tx *repositories.Repositories, rawAddress, address string) (*models.User, error) {
	username := usernamePrefix + prefix(strings.TrimSpace(rawAddress), usernameChars)
	taken, err := tx.Users.UsernameExists(ctx, username)
	if err != nil {
		return nil, apperrors.Persistence("check username", err)
	}
	if taken {
		suffix, err := utils.GenerateUniqueID(3)
		if err != nil {
			return nil, err
		}
		username += "_" + suffix
	}

	secret, err := utils.GenerateUniqueID(32)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	provider := models.OAuthProviderWallet
	user := &models.User{
		Username:        username,
		Email:           username + emailDomain,
		Password:        string(hash),
		Kind:            models.ActorUser,
		OAuthProvider:   &provider,
		OAuthProviderID: &address,
		Status:          models.UserStatusActive,
		TokenVersion:    1,
	}
	if err := tx.Users.Create(ctx, user); err != nil {
		return nil, apperrors.Persistence("create user", err)
	}

	logx.WithContext(ctx).Infof("created user %d (%s) for wallet %s", user.ID, username, address)
	return user, nil
}

func (s *service) UnlinkWallet(ctx context.Context, actor models.ActorRef, id uint) error {
	return s.repos.ExecuteInTransaction(ctx, func(tx *repositories.Repositories) error {
		auth, err := tx.WalletAuths.GetForUser(ctx, id, actor)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.NotFound("linked wallet")
			}
			return apperrors.Persistence("get linked wallet", err)
		}

		if auth.IsPrimary {
			linked, err := tx.WalletAuths.ListByUser(ctx, actor)
			if err != nil {
				return apperrors.Persistence("list linked wallets", err)
			}
			if len(linked) <= 1 {
				return apperrors.InvalidState("cannot unlink your only wallet")
			}
		}

		if err := tx.WalletAuths.Delete(ctx, auth.ID); err != nil {
			return apperrors.Persistence("unlink wallet", err)
		}
		logx.WithContext(ctx).Infof("%s unlinked %s wallet %s", actor, auth.Blockchain, auth.WalletAddress)
		return nil
	})
}

func (s *service) LinkedWallets(ctx context.Context, actor models.ActorRef) ([]models.WalletAuthentication, error) {
	wallets, err := s.repos.WalletAuths.ListByUser(ctx, actor)
	if err != nil {
		return nil, apperrors.Persistence("list linked wallets", err)
	}
	return wallets, nil
}

func (s *service) SweepExpiredNonces(ctx context.Context) (int64, error) {
	n, err := s.repos.WalletAuths.ClearExpiredNonces(ctx, s.now())
	if err != nil {
		return 0, apperrors.Persistence("clear expired nonces", err)
	}
	if n > 0 {
		s.metrics.RecordNoncesSwept(n)
		logx.WithContext(ctx).Infof("cleared %d expired nonces", n)
	}
	return n, nil
}

func loginResult(err error) string {
	switch {
	case err == nil:
		return resultSuccess
	case errors.Is(err, apperrors.ErrExpiredNonce):
		return resultExpired
	case errors.Is(err, apperrors.ErrInvalidSignature):
		return resultSignature
	default:
		return resultError
	}
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
