package walletauth

import (
	"time"

	"github.com/LILIANSRL/chibank/internal/chain"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"
)

// MessagePrefix precedes the nonce in the message the wallet signs.
const MessagePrefix = "Sign this message to verify wallet ownership: "

const (
	DefaultNonceTTL = 15 * time.Minute
	nonceBytes      = 16
	usernamePrefix  = "wallet_"
	usernameChars   = 10
	emailDomain     = "@wallet.local"
)

// Login results for metrics.
const (
	resultSuccess   = "success"
	resultExpired   = "expired_nonce"
	resultSignature = "invalid_signature"
	resultError     = "error"
)

// Message returns the text signed for nonce.
func Message(nonce string) string {
	return MessagePrefix + nonce
}

type NonceRequest struct {
	Address  string `json:"wallet_address" validate:"required,max=255"`
	Chain    string `json:"blockchain" validate:"required,max=100"`
	Provider string `json:"wallet_provider" validate:"max=100"`
}

type NonceResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyRequest struct {
	Address   string `json:"wallet_address" validate:"required,max=255"`
	Chain     string `json:"blockchain" validate:"required,max=100"`
	Signature string `json:"signature" validate:"required"`
	Provider  string `json:"wallet_provider" validate:"max=100"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// Session is returned after a successful signature login.
type Session struct {
	User         *models.User                 `json:"user"`
	Wallet       *models.WalletAuthentication `json:"wallet"`
	AccessToken  string                       `json:"access_token"`
	RefreshToken string                       `json:"refresh_token"`
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	GenerateTokens(claims *models.UserClaims) (string, string, error)
}

// Verifiers resolves the signature verifier for a chain.
type Verifiers interface {
	Get(chain string) (chain.Verifier, bool)
}

// MetricsCollector defines the interface for collecting login metrics
type MetricsCollector interface {
	RecordLogin(blockchain, result string)
	RecordNoncesSwept(n int64)
}

type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordLogin(string, string) {}
func (n *NoopMetricsCollector) RecordNoncesSwept(int64)    {}

type Config struct {
	Repos     *repositories.Repositories
	Verifiers Verifiers
	Tokens    TokenIssuer
	Metrics   MetricsCollector
	NonceTTL  time.Duration
	Now       func() time.Time
}
