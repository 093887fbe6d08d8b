package transaction

import (
	"context"
	"time"

	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"
	"github.com/LILIANSRL/chibank/internal/services/approval"
	"github.com/LILIANSRL/chibank/internal/services/authorization"
	"github.com/LILIANSRL/chibank/internal/services/wallet"

	"github.com/shopspring/decimal"
)

// InitiateRequest is the payload for a new multi-signature transaction.
type InitiateRequest struct {
	TransactionType string          `json:"transaction_type" validate:"required,oneof=send internal_transfer contract_call"`
	ToAddress       string          `json:"to_address" validate:"required,max=255"`
	Amount          decimal.Decimal `json:"amount"`
	Fee             decimal.Decimal `json:"fee"`
	Memo            string          `json:"memo" validate:"max=500"`
	GasLimit        string          `json:"gas_limit" validate:"max=50"`
	GasPrice        string          `json:"gas_price" validate:"max=50"`
	// RawTx is the hex RLP of a transaction signed outside the service,
	// relayed on execute.
	RawTx string `json:"raw_tx"`
}

// ListFilter narrows ListTransactions.
type ListFilter struct {
	Status models.TransactionStatus
	Limit  int
	Offset int
}

// Broadcaster submits an approved transaction on the wallet's chain.
type Broadcaster interface {
	Broadcast(ctx context.Context, chain string, txn *models.MultiSigTransaction) (string, error)
}

// MetricsCollector defines the interface for collecting workflow metrics
type MetricsCollector interface {
	RecordOperation(operation, result string, duration time.Duration)
	RecordTransition(status string)
}

// Notifier is told about every status change after it commits.
type Notifier interface {
	NotifyTransition(ctx context.Context, txn *models.MultiSigTransaction) (int, error)
}

// Config wires the workflow's collaborators.
type Config struct {
	Repos       *repositories.Repositories
	Wallets     wallet.Service
	Gate        *authorization.Gate
	Approvals   approval.Ledger
	Broadcaster Broadcaster
	Metrics     MetricsCollector
	// Notifier is optional.
	Notifier Notifier

	// NewReference and Now default to GenerateReference and time.Now.
	NewReference func() string
	Now          func() time.Time
}
