/*
Package wallet is the ledger for multi-signature wallets: it owns the
balance and the signer roster.

Usage:

	svc := wallet.NewService(repos, gate, cacheService, metrics)

	// Create a wallet; the owner becomes a signer with every capability.
	w, err := svc.CreateWallet(ctx, owner, wallet.CreateWalletRequest{...})

	// Debit inside a caller-owned database transaction.
	err = repos.ExecuteInTransaction(ctx, func(tx *repositories.Repositories) error {
	    _, err := svc.Debit(ctx, tx, w.ID, amount)
	    return err
	})

Balance only changes through Debit and Credit. Credit is an operator path
for funds arriving from outside the ledger. Debit never commits on its
own; it locks the wallet row inside the caller's transaction so the
sufficiency check and the write cannot interleave with another debit.

Wallet rows are cached in Redis without their signers and invalidated after
every committed balance or status change.
*/
package wallet
