package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Repositories groups every table repository over one *gorm.DB. Inside
// ExecuteInTransaction the callback receives a copy bound to the open
// transaction, so all reads and writes made through it commit or roll back
// together.
type Repositories struct {
	db *gorm.DB

	Wallets      WalletRepository
	Signers      SignerRepository
	Transactions TransactionRepository
	Approvals    ApprovalRepository
	WalletAuths  WalletAuthRepository
	Users        UserRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		Wallets:      NewWalletRepository(db),
		Signers:      NewSignerRepository(db),
		Transactions: NewTransactionRepository(db),
		Approvals:    NewApprovalRepository(db),
		WalletAuths:  NewWalletAuthRepository(db),
		Users:        NewUserRepository(db),
	}
}

// ExecuteInTransaction runs fn in a database transaction. Any error returned
// by fn rolls the transaction back.
func (r *Repositories) ExecuteInTransaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// DB exposes the underlying handle for health checks.
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
