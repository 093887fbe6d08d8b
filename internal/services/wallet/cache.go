package wallet

import (
	"context"

	"github.com/LILIANSRL/chibank/internal/models"
)

type noopCache struct{}

func (noopCache) GetWallet(context.Context, uint) (*models.MultiSigWallet, bool, error) {
	return nil, false, nil
}
func (noopCache) CacheWallet(context.Context, *models.MultiSigWallet) error { return nil }
func (noopCache) InvalidateWallet(context.Context, uint) error               { return nil }
