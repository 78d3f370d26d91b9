package allocation

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"spend-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func limit(id, remaining, rate string, age time.Duration) models.SpendingLimit {
	return models.SpendingLimit{
		Id:                id,
		UserId:            "user1",
		FxRate:            d(rate),
		NairaAmount:       d(remaining),
		NairaRemaining:    d(remaining),
		ChainType:         "ethereum",
		TokenSymbol:       "USDC",
		BlockchainNetwork: "mainnet",
		CreatedAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(age),
	}
}

func TestAllocate_TwoLimitExample(t *testing.T) {
	limits := []models.SpendingLimit{
		limit("L1", "700", "500", 0),
		limit("L2", "300", "520", time.Hour),
	}

	r := Allocate(d("900"), limits)

	require.True(t, r.FullyAllocated())
	require.Len(t, r.Chunks, 2)

	assert.Equal(t, "L1", r.Chunks[0].SpendingLimitId)
	assert.True(t, r.Chunks[0].NairaUsed.Equal(d("700")))
	assert.True(t, r.Chunks[0].UsdEquivalent.Equal(d("1.4")))

	assert.Equal(t, "L2", r.Chunks[1].SpendingLimitId)
	assert.True(t, r.Chunks[1].NairaUsed.Equal(d("200")))
	assert.Equal(t, "0.3846", r.Chunks[1].UsdEquivalent.StringFixed(4))

	require.Len(t, r.UpdatedLimits, 2)
	assert.True(t, r.UpdatedLimits[0].NairaRemaining.IsZero())
	assert.True(t, r.UpdatedLimits[1].NairaRemaining.Equal(d("100")))

	assert.Equal(t, "1.7846", r.UsdTotal.StringFixed(4))
	assert.Equal(t, "504.31", r.EffectiveFxRate.StringFixed(2))

	// input untouched
	assert.True(t, limits[0].NairaRemaining.Equal(d("700")))
	assert.True(t, limits[1].NairaRemaining.Equal(d("300")))
}

func TestAllocate_NegativeAmountIsNormalized(t *testing.T) {
	r := Allocate(d("-250"), []models.SpendingLimit{limit("L1", "700", "500", 0)})

	require.True(t, r.FullyAllocated())
	assert.True(t, r.Requested.Equal(d("250")))
	assert.True(t, r.Allocated.Equal(d("250")))
}

func TestAllocate_StopsEarlyAndSkipsEmpty(t *testing.T) {
	limits := []models.SpendingLimit{
		limit("L0", "0", "500", 0),
		limit("L1", "100", "500", time.Minute),
		limit("L2", "100", "500", 2*time.Minute),
		limit("L3", "100", "500", 3*time.Minute),
	}

	r := Allocate(d("150"), limits)

	require.Len(t, r.Chunks, 2)
	assert.Equal(t, "L1", r.Chunks[0].SpendingLimitId)
	assert.Equal(t, "L2", r.Chunks[1].SpendingLimitId)
	assert.True(t, r.Chunks[1].NairaUsed.Equal(d("50")))
	assert.Len(t, r.UpdatedLimits, 2)
}

func TestAllocate_InsufficientLeavesRemainder(t *testing.T) {
	limits := []models.SpendingLimit{
		limit("L1", "700", "500", 0),
		limit("L2", "300", "520", time.Hour),
	}

	r := Allocate(d("1000.01"), limits)

	assert.False(t, r.FullyAllocated())
	assert.True(t, r.Remainder.Equal(d("0.01")))
	assert.True(t, TotalRemaining(limits).Equal(d("1000")))
}

func TestAllocate_InvalidRateContributesZeroUsd(t *testing.T) {
	limits := []models.SpendingLimit{
		limit("BAD", "100", "0", 0),
		limit("GOOD", "100", "500", time.Hour),
	}

	r := Allocate(d("150"), limits)

	require.True(t, r.FullyAllocated())
	assert.Equal(t, []string{"BAD"}, r.InvalidRateIds)
	assert.True(t, r.Chunks[0].UsdEquivalent.IsZero())
	assert.True(t, r.UsdTotal.Equal(d("0.1")))
	assert.True(t, r.EffectiveFxRate.Equal(d("1500")))
}

func TestAllocate_NoUsdMeansZeroEffectiveRate(t *testing.T) {
	r := Allocate(d("50"), []models.SpendingLimit{limit("BAD", "100", "-3", 0)})

	require.True(t, r.FullyAllocated())
	assert.True(t, r.EffectiveFxRate.IsZero())
}

func TestAllocate_TokenInfoDistinct(t *testing.T) {
	a := limit("L1", "10", "500", 0)
	b := limit("L2", "10", "500", time.Minute)
	c := limit("L3", "10", "500", 2*time.Minute)
	c.ChainType, c.TokenSymbol = "solana", "USDT"

	r := Allocate(d("30"), []models.SpendingLimit{a, b, c})

	assert.Equal(t, []models.TokenInfo{
		{Chain: "ethereum", Network: "mainnet", Token: "USDC"},
		{Chain: "solana", Network: "mainnet", Token: "USDT"},
	}, r.TokenInfo())
}

// Random ticket sets: FIFO order, conservation and non-negativity.
func TestAllocate_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(6)
		limits := make([]models.SpendingLimit, n)
		for j := range limits {
			limits[j] = limit(fmt.Sprintf("L%d", j),
				fmt.Sprintf("%d.%02d", rng.Intn(1000), rng.Intn(100)),
				fmt.Sprintf("%d", 400+rng.Intn(600)),
				time.Duration(j)*time.Minute)
		}
		total := TotalRemaining(limits)
		amount := total.Mul(decimal.NewFromFloat(rng.Float64())).Round(2)

		r := Allocate(amount, limits)
		require.True(t, r.FullyAllocated(), "iteration %d", i)

		used := decimal.Zero
		for _, c := range r.Chunks {
			used = used.Add(c.NairaUsed)
		}
		assert.True(t, used.Equal(amount), "chunks must sum to the request")

		byId := make(map[string]models.SpendingLimit)
		for _, l := range limits {
			byId[l.Id] = l
		}
		for k, u := range r.UpdatedLimits {
			assert.False(t, u.NairaRemaining.IsNegative())
			old := byId[u.Id]
			assert.True(t, old.NairaRemaining.Sub(u.NairaRemaining).Equal(r.Chunks[k].NairaUsed))
			// every limit before the last touched one is fully drained
			if k < len(r.UpdatedLimits)-1 {
				assert.True(t, u.NairaRemaining.IsZero())
			}
		}
	}
}
