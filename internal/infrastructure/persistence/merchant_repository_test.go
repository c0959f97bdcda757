package persistence

import (
	"context"
	"testing"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormMerchantRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormMerchantRepository(db)
	ctx := context.Background()

	m := seedMerchant(t, db, "acme")
	require.NotZero(t, m.ID)

	found, err := repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", found.CompanyName)
	assert.False(t, found.HasPayoutDestination())

	found.ConnectPayoutDestination("acct_123")
	require.NoError(t, repo.Save(ctx, found))

	reloaded, err := repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "acct_123", reloaded.PayoutDestination)

	_, err = repo.FindByID(ctx, 4242)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
