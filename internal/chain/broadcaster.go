package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/LILIANSRL/chibank/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/zeromicro/go-zero/core/logx"
)

var (
	ErrNoBroadcaster     = errors.New("no broadcaster configured for chain")
	ErrMissingRawTx      = errors.New("transaction has no signed raw_tx payload")
	ErrRecipientMismatch = errors.New("signed transaction recipient does not match")
	ErrAmountMismatch    = errors.New("signed transaction value does not match approved amount")
)

// RawTxKey is the transaction_data field carrying the pre-signed payload.
const RawTxKey = "raw_tx"

// NativeDecimals is the base-unit exponent of native EVM currency (wei).
const NativeDecimals = 18

// Broadcaster submits an approved transaction and returns the on-chain hash.
type Broadcaster interface {
	Broadcast(ctx context.Context, txn *models.MultiSigTransaction) (string, error)
}

type BroadcasterRegistry struct {
	mu           sync.RWMutex
	broadcasters map[string]Broadcaster
}

func NewBroadcasterRegistry() *BroadcasterRegistry {
	return &BroadcasterRegistry{broadcasters: make(map[string]Broadcaster)}
}

func (r *BroadcasterRegistry) Register(chain string, b Broadcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasters[strings.ToLower(chain)] = b
}

// Broadcast routes txn to the broadcaster registered for chain.
func (r *BroadcasterRegistry) Broadcast(ctx context.Context, chain string, txn *models.MultiSigTransaction) (string, error) {
	r.mu.RLock()
	b, ok := r.broadcasters[strings.ToLower(chain)]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoBroadcaster, chain)
	}
	return b.Broadcast(ctx, txn)
}

// TxSender is the part of ethclient.Client the broadcaster uses.
type TxSender interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// EVMBroadcaster relays a transaction that was signed off-service and
// attached as hex RLP under transaction_data.raw_tx.
type EVMBroadcaster struct {
	client TxSender
}

func NewEVMBroadcaster(client TxSender) *EVMBroadcaster {
	return &EVMBroadcaster{client: client}
}

// DialEVM connects to a JSON-RPC endpoint.
func DialEVM(ctx context.Context, rpcURL string) (*EVMBroadcaster, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}
	return NewEVMBroadcaster(client), client, nil
}

func (b *EVMBroadcaster) Broadcast(ctx context.Context, txn *models.MultiSigTransaction) (string, error) {
	raw := txn.TransactionData.String(RawTxKey)
	if raw == "" {
		return "", ErrMissingRawTx
	}
	data, err := hexutil.Decode(raw)
	if err != nil {
		return "", fmt.Errorf("invalid raw_tx: %w", err)
	}

	signed := new(types.Transaction)
	if err := signed.UnmarshalBinary(data); err != nil {
		return "", fmt.Errorf("invalid raw_tx: %w", err)
	}
	if txn.TransactionType == models.TransactionTypeSend {
		if signed.To() == nil || !common.IsHexAddress(txn.ToAddress) ||
			*signed.To() != common.HexToAddress(txn.ToAddress) {
			return "", ErrRecipientMismatch
		}
		want := txn.Amount.Shift(NativeDecimals)
		if !want.IsInteger() || signed.Value().Cmp(want.BigInt()) != 0 {
			return "", ErrAmountMismatch
		}
	}

	if err := b.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	hash := signed.Hash().Hex()
	logx.WithContext(ctx).Infof("broadcast %s as %s", txn.TrxID, hash)
	return hash, nil
}
