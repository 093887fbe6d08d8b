package models

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// WalletAuthentication links an external chain wallet to an identity and
// carries the one-time nonce used for signature login.
type WalletAuthentication struct {
	ID             uint       `gorm:"primarykey" json:"id"`
	UserID         *uint      `gorm:"index" json:"user_id,omitempty"`
	UserType       ActorKind  `gorm:"size:50;not null;default:'user'" json:"user_type"`
	WalletAddress  string     `gorm:"size:255;not null;uniqueIndex:unique_wallet_chain,priority:1" json:"wallet_address"`
	Blockchain     string     `gorm:"size:100;not null;uniqueIndex:unique_wallet_chain,priority:2" json:"blockchain"`
	WalletProvider string     `gorm:"size:100" json:"wallet_provider,omitempty"`
	PublicKey      *string    `gorm:"type:text" json:"public_key,omitempty"`
	Signature      *string    `gorm:"type:text" json:"-"`
	Nonce          *string    `gorm:"size:64" json:"-"`
	NonceExpiresAt *time.Time `json:"-"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	LoginIP        string     `gorm:"size:45" json:"-"`
	LoginUserAgent string     `gorm:"type:text" json:"-"`
	IsVerified     bool       `gorm:"not null" json:"is_verified"`
	IsPrimary      bool       `gorm:"not null" json:"is_primary"`
	Status         bool       `gorm:"not null" json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (WalletAuthentication) TableName() string { return "wallet_authentications" }

// NormalizeAddress trims a wallet address and lower-cases EVM hex addresses.
// Other encodings such as base58 are case-sensitive and kept as given.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if (strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X")) && common.IsHexAddress(address) {
		return strings.ToLower(address)
	}
	return address
}

// IsNonceValid reports whether a nonce is set and unexpired at now.
func (w *WalletAuthentication) IsNonceValid(now time.Time) bool {
	return w.Nonce != nil && *w.Nonce != "" &&
		w.NonceExpiresAt != nil && now.Before(*w.NonceExpiresAt)
}

// ClearNonce drops the nonce so it cannot be replayed.
func (w *WalletAuthentication) ClearNonce() {
	w.Nonce = nil
	w.NonceExpiresAt = nil
}
