// Package chain holds the blockchain collaborators: signature verifiers for
// wallet login and broadcasters for executing approved transactions.
package chain

import (
	"context"
	"crypto/ed25519"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// Verifier checks that signature over message was produced by the key
// behind address. A malformed signature is reported as (false, nil).
type Verifier interface {
	Verify(ctx context.Context, address, message, signature string) (bool, error)
}

// EVMChains lists the networks verified with personal_sign recovery.
var EVMChains = []string{"ethereum", "bsc", "polygon", "arbitrum", "optimism", "avalanche", "base"}

type VerifierRegistry struct {
	mu        sync.RWMutex
	verifiers map[string]Verifier
}

func NewVerifierRegistry() *VerifierRegistry {
	return &VerifierRegistry{verifiers: make(map[string]Verifier)}
}

// DefaultVerifiers registers the EVM verifier for every EVM chain and the
// ed25519 verifier for solana.
func DefaultVerifiers() *VerifierRegistry {
	r := NewVerifierRegistry()
	evm := EVMVerifier{}
	for _, c := range EVMChains {
		r.Register(c, evm)
	}
	r.Register("solana", SolanaVerifier{})
	return r
}

func (r *VerifierRegistry) Register(chain string, v Verifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifiers[strings.ToLower(chain)] = v
}

func (r *VerifierRegistry) Get(chain string) (Verifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.verifiers[strings.ToLower(chain)]
	return v, ok
}

// EVMVerifier recovers the signer of an EIP-191 personal_sign message.
type EVMVerifier struct{}

func (EVMVerifier) Verify(_ context.Context, address, message, signature string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, nil
	}
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false, nil
	}
	// Wallets emit v as 27/28; recovery wants 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return false, nil
	}
	recovered := crypto.PubkeyToAddress(*pub)
	return recovered == common.HexToAddress(address), nil
}

// SolanaVerifier checks an ed25519 signature against a base58 public key.
// The signature may be base58 or 0x-prefixed hex.
type SolanaVerifier struct{}

func (SolanaVerifier) Verify(_ context.Context, address, message, signature string) (bool, error) {
	pub, err := base58.Decode(address)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false, nil
	}

	var sig []byte
	if strings.HasPrefix(signature, "0x") {
		sig, err = hexutil.Decode(signature)
	} else {
		sig, err = base58.Decode(signature)
	}
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig), nil
}
