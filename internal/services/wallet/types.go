package wallet

import "time"

// SignerInput describes one invited signer.
type SignerInput struct {
	Name          string `json:"name" validate:"required,max=255"`
	Email         string `json:"email" validate:"required,email,max=255"`
	SignerType    string `json:"signer_type" validate:"omitempty,oneof=user merchant agent admin"`
	Weight        int    `json:"weight" validate:"omitempty,gte=1"`
	CanInitiate   bool   `json:"can_initiate"`
	CanApprove    *bool  `json:"can_approve"`
	PublicKey     string `json:"public_key" validate:"max=1000"`
	WalletAddress string `json:"wallet_address" validate:"max=255"`
}

// CreateWalletRequest is the wallet creation payload. The owner is not part
// of Signers; a signer row is added for them automatically.
type CreateWalletRequest struct {
	Name               string                 `json:"name" validate:"required,max=255"`
	Blockchain         string                 `json:"blockchain" validate:"required,max=100"`
	CurrencyCode       string                 `json:"currency_code" validate:"required,max=10"`
	RequiredSignatures int                    `json:"required_signatures" validate:"gte=1"`
	Signers            []SignerInput          `json:"signers" validate:"required,min=1,dive"`
	Address            string                 `json:"address" validate:"max=255"`
	PublicKey          string                 `json:"public_key" validate:"max=1000"`
	ContractAddress    string                 `json:"contract_address" validate:"max=255"`
	WalletData         map[string]interface{} `json:"wallet_data"`
}

// MetricsCollector defines the interface for collecting wallet metrics
type MetricsCollector interface {
	RecordOperation(operation, result string, duration time.Duration)
	RecordVolume(direction, currency string, amount float64)
	RecordCacheHit()
	RecordCacheMiss()
}
