package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/LILIANSRL/chibank/internal/config"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"
	"github.com/LILIANSRL/chibank/internal/services/approval"
	"github.com/LILIANSRL/chibank/internal/services/authorization"
	"github.com/LILIANSRL/chibank/internal/services/signer"
	"github.com/LILIANSRL/chibank/internal/services/wallet"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	adminUsername := config.GetEnv("ADMIN_USERNAME", "admin")

	if adminEmail == "" || adminPassword == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD must be set in environment")
	}

	db, err := repositories.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		sqlDB, err := db.DB()
		if err != nil {
			log.Printf("Failed to get SQL DB instance: %v", err)
			return
		}
		if err := sqlDB.Close(); err != nil {
			log.Printf("Failed to close PostgreSQL connection: %v", err)
		}
	}()

	if err := repositories.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx := context.Background()
	repos := repositories.New(db)

	admin, err := ensureAdmin(ctx, repos.Users, adminEmail, adminPassword, adminUsername)
	if err != nil {
		log.Fatal(err)
	}

	// FUND_WALLET_ID + FUND_AMOUNT record an off-ledger deposit as the admin.
	walletID := config.GetIntEnv("FUND_WALLET_ID", 0)
	if walletID <= 0 {
		return
	}
	amount, err := decimal.NewFromString(config.GetEnv("FUND_AMOUNT", ""))
	if err != nil {
		log.Fatalf("Invalid FUND_AMOUNT: %v", err)
	}

	signers := signer.NewService(repos)
	gate := authorization.NewGate(signers, approval.NewLedger(repos))
	wallets := wallet.NewService(repos, gate, nil, nil)

	funded, err := wallets.Credit(ctx, uint(walletID), admin.Actor(), amount)
	if err != nil {
		log.Fatalf("Failed to fund wallet %d: %v", walletID, err)
	}
	log.Printf("Wallet %d funded, balance %s %s", funded.ID, funded.Balance.String(), funded.CurrencyCode)
}

func ensureAdmin(ctx context.Context, users repositories.UserRepository, email, password, username string) (*models.User, error) {
	existing, err := users.GetByEmail(ctx, email)
	if err == nil {
		log.Println("Admin user already exists")
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up admin user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	adminUser := &models.User{
		Username:     username,
		Email:        email,
		Password:     string(hashedPassword),
		Kind:         models.ActorAdmin,
		Status:       models.UserStatusActive,
		TokenVersion: 1,
	}
	if err := users.Create(ctx, adminUser); err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	log.Printf("Admin account %d created successfully", adminUser.ID)
	return adminUser, nil
}
