package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WalletType string

const (
	WalletTypeSingle   WalletType = "single"
	WalletTypeMultiSig WalletType = "multi_sig"
)

// MultiSigWallet is a wallet whose outgoing transactions need a quorum of
// signer approvals. Balance is only written by the wallet ledger.
type MultiSigWallet struct {
	ID                 uint            `gorm:"primarykey" json:"id"`
	Name               string          `gorm:"size:255;not null" json:"name"`
	WalletType         WalletType      `gorm:"size:50;not null" json:"wallet_type"`
	OwnerID            uint            `gorm:"not null;index:idx_multi_sig_wallet_owner" json:"owner_id"`
	OwnerType          ActorKind       `gorm:"size:50;not null;index:idx_multi_sig_wallet_owner" json:"owner_type"`
	Blockchain         string          `gorm:"size:100;not null;index" json:"blockchain"`
	CurrencyCode       string          `gorm:"size:10;not null;index" json:"currency_code"`
	Address            *string         `gorm:"type:text" json:"address,omitempty"`
	PublicKey          *string         `gorm:"type:text" json:"public_key,omitempty"`
	ContractAddress    *string         `gorm:"type:text" json:"contract_address,omitempty"`
	WalletData         JSON            `gorm:"type:jsonb" json:"wallet_data,omitempty"`
	RequiredSignatures int             `gorm:"not null;default:1" json:"required_signatures"`
	TotalSigners       int             `gorm:"not null;default:1" json:"total_signers"`
	Balance            decimal.Decimal `gorm:"type:decimal(28,8);not null;default:0" json:"balance"`
	Status             bool            `gorm:"not null" json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Signers      []WalletSigner        `gorm:"foreignKey:MultiSigWalletID;constraint:OnDelete:CASCADE" json:"signers,omitempty"`
	Transactions []MultiSigTransaction `gorm:"foreignKey:MultiSigWalletID;constraint:OnDelete:CASCADE" json:"-"`
}

func (MultiSigWallet) TableName() string { return "multi_sig_wallets" }

// Owner returns the wallet owner reference.
func (w *MultiSigWallet) Owner() ActorRef {
	return ActorRef{Kind: w.OwnerType, ID: w.OwnerID}
}

// IsOwner reports whether actor owns the wallet.
func (w *MultiSigWallet) IsOwner(actor ActorRef) bool {
	return w.OwnerID == actor.ID && w.OwnerType == actor.Kind
}

// IsMultiSig reports whether more than one signature gates spending.
func (w *MultiSigWallet) IsMultiSig() bool {
	return w.WalletType == WalletTypeMultiSig && w.RequiredSignatures > 1
}

// WalletSigner grants an identity rights over a wallet. SignerID is nil while
// the invited identity has no account; name and email are snapshots taken at
// invite time.
type WalletSigner struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	MultiSigWalletID uint      `gorm:"not null;uniqueIndex:unique_wallet_signer,priority:1" json:"multi_sig_wallet_id"`
	SignerID         *uint     `gorm:"uniqueIndex:unique_wallet_signer,priority:2" json:"signer_id"`
	SignerType       ActorKind `gorm:"size:50;not null;uniqueIndex:unique_wallet_signer,priority:3" json:"signer_type"`
	SignerName       string    `gorm:"size:255;not null" json:"signer_name"`
	SignerEmail      string    `gorm:"size:255;not null;index" json:"signer_email"`
	PublicKey        *string   `gorm:"type:text" json:"public_key,omitempty"`
	WalletAddress    *string   `gorm:"type:text" json:"wallet_address,omitempty"`
	// Weight is recorded for weighted quorum; the quorum check counts approvals.
	Weight      int       `gorm:"not null;default:1" json:"weight"`
	IsOwner     bool      `gorm:"not null" json:"is_owner"`
	CanInitiate bool      `gorm:"not null" json:"can_initiate"`
	CanApprove  bool      `gorm:"not null" json:"can_approve"`
	Status      bool      `gorm:"not null" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (WalletSigner) TableName() string { return "wallet_signers" }

// Pending reports whether the invited identity has not registered yet.
func (s *WalletSigner) Pending() bool {
	return s.SignerID == nil
}

// Matches reports whether the signer row belongs to actor.
func (s *WalletSigner) Matches(actor ActorRef) bool {
	return s.SignerID != nil && *s.SignerID == actor.ID && s.SignerType == actor.Kind
}
