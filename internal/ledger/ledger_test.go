package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"spend-ledger-go/internal/database"
	"spend-ledger-go/internal/metrics"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"
	"spend-ledger-go/internal/syncutil"

	"github.com/google/uuid"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMirror struct {
	mu     sync.Mutex
	spends []string
	status []string
}

func (m *recordingMirror) PostSpend(_ context.Context, txn *models.Transaction, _ []models.TransactionChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spends = append(m.spends, txn.Id)
	return nil
}

func (m *recordingMirror) PostStatusChange(_ context.Context, txn *models.Transaction, previous string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = append(m.status, previous+"->"+txn.Status)
	return nil
}

func (m *recordingMirror) PostDeposit(context.Context, *models.Transaction) error    { return nil }
func (m *recordingMirror) PostWithdrawal(context.Context, *models.Transaction) error { return nil }
func (m *recordingMirror) PostSpendingLimit(context.Context, *models.SpendingLimit) error {
	return errors.New("mirror unavailable")
}

type fixture struct {
	db     *database.Service
	ledger *Service
	mirror *recordingMirror
	user   *models.User
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	user, err := db.CreateUser(context.Background(), database.CreateUserParams{
		CustomerId: "cus_" + uuid.NewString()[:8],
		Name:       "Ada",
		Email:      uuid.NewString() + "@example.com",
		Timezone:   "Africa/Lagos",
	})
	require.NoError(t, err)

	mirror := &recordingMirror{}
	f := &fixture{
		db:     db,
		ledger: NewService(db, &syncutil.ShardedMutex{}, models.LedgerConfig{DefaultNetwork: "mainnet"}, mirror),
		mirror: mirror,
		user:   user,
		clock:  time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.ledger.now = func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	return f
}

// addLimit inserts a limit directly so tests control exact remaining and rate values.
func (f *fixture) addLimit(t *testing.T, remaining, rate string) *models.SpendingLimit {
	t.Helper()
	f.clock = f.clock.Add(time.Minute)
	l := &models.SpendingLimit{
		Id:                uuid.New().String(),
		UserId:            f.user.Id,
		OrderId:           uuid.New().String(),
		UsdAmount:         decimal.Zero,
		FxRate:            decimal.RequireFromString(rate),
		NairaAmount:       decimal.RequireFromString(remaining),
		NairaRemaining:    decimal.RequireFromString(remaining),
		ChainType:         "ethereum",
		TokenSymbol:       "USDC",
		BlockchainNetwork: "mainnet",
		CreatedAt:         f.clock,
	}
	err := f.db.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertSpendingLimit(ctx, l)
	})
	require.NoError(t, err)
	return l
}

func (f *fixture) remaining(t *testing.T) map[string]decimal.Decimal {
	t.Helper()
	limits, err := f.db.ListSpendingLimits(context.Background(), f.user.Id)
	require.NoError(t, err)
	out := make(map[string]decimal.Decimal, len(limits))
	for _, l := range limits {
		out[l.Id] = l.NairaRemaining
	}
	return out
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecordSpend_TwoLimitExample(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l1 := f.addLimit(t, "700", "500")
	l2 := f.addLimit(t, "300", "520")

	res, err := f.ledger.RecordSpend(ctx, SpendParams{
		UserId:          f.user.Id,
		Amount:          d("900"),
		AuthorizationId: "auth_900",
		MerchantName:    "Shoprite",
	})
	require.NoError(t, err)
	require.False(t, res.Duplicate)

	txn := res.Transaction
	assert.Equal(t, models.TransactionTypeSpending, txn.Type)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.True(t, txn.NairaAmount.Equal(d("900")))
	assert.Equal(t, "1.7846", txn.UsdAmount.StringFixed(4))
	assert.Equal(t, "504.31", txn.EffectiveFxRate.StringFixed(2))

	require.Len(t, res.Chunks, 2)
	assert.Equal(t, l1.Id, res.Chunks[0].SpendingLimitId)
	assert.True(t, res.Chunks[0].UsdEquivalent.Equal(d("1.4")))
	assert.Equal(t, l2.Id, res.Chunks[1].SpendingLimitId)
	assert.Equal(t, "0.3846", res.Chunks[1].UsdEquivalent.StringFixed(4))

	rem := f.remaining(t)
	assert.True(t, rem[l1.Id].IsZero())
	assert.True(t, rem[l2.Id].Equal(d("100")))

	stored, err := f.db.GetTransactionChunks(ctx, txn.Id)
	require.NoError(t, err)
	sum := decimal.Zero
	usd := decimal.Zero
	for _, c := range stored {
		sum = sum.Add(c.NairaUsed)
		usd = usd.Add(c.UsdEquivalent)
	}
	assert.True(t, sum.Equal(txn.NairaAmount))
	assert.True(t, usd.Equal(txn.UsdAmount))

	assert.Equal(t, []string{txn.Id}, f.mirror.spends)
}

func TestRecordSpend_InsufficientFundsRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l1 := f.addLimit(t, "700", "500")
	l2 := f.addLimit(t, "300", "520")

	_, err := f.ledger.RecordSpend(ctx, SpendParams{UserId: f.user.Id, Amount: d("1000.01"), AuthorizationId: "auth_big"})
	require.ErrorIs(t, err, store.ErrInsufficientFunds)

	var ife *store.InsufficientFundsError
	require.True(t, errors.As(err, &ife))
	assert.True(t, ife.Available.Equal(d("1000")))
	assert.True(t, ife.Shortfall().Equal(d("0.01")))

	rem := f.remaining(t)
	assert.True(t, rem[l1.Id].Equal(d("700")))
	assert.True(t, rem[l2.Id].Equal(d("300")))

	history, err := f.db.GetTransactionHistory(ctx, f.user.Id, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordSpend_NoLimits(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.RecordSpend(context.Background(), SpendParams{UserId: f.user.Id, Amount: d("10")})

	var ife *store.InsufficientFundsError
	require.True(t, errors.As(err, &ife))
	assert.True(t, ife.Available.IsZero())
}

func TestRecordSpend_UnknownUserAndZeroAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.RecordSpend(ctx, SpendParams{UserId: "nobody", Amount: d("10")})
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	_, err = f.ledger.RecordSpend(ctx, SpendParams{UserId: f.user.Id, Amount: decimal.Zero})
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
}

func TestRecordSpend_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.addLimit(t, "1000", "500")

	params := SpendParams{UserId: f.user.Id, Amount: d("-250"), AuthorizationId: "auth_replay"}
	first, err := f.ledger.RecordSpend(ctx, params)
	require.NoError(t, err)
	second, err := f.ledger.RecordSpend(ctx, params)
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Transaction.Id, second.Transaction.Id)
	assert.True(t, first.Transaction.NairaAmount.Equal(d("250")))
	assert.True(t, f.remaining(t)[l.Id].Equal(d("750")))

	history, err := f.db.GetTransactionHistory(ctx, f.user.Id, 10, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Len(t, f.mirror.spends, 1)
}

func TestRecordSpend_InvalidRateIsToleratedAndAlerted(t *testing.T) {
	f := newFixture(t)
	bad := f.addLimit(t, "100", "0")
	f.addLimit(t, "100", "500")

	before := &dto.Metric{}
	require.NoError(t, metrics.InvalidFxRateTotal.Write(before))

	res, err := f.ledger.RecordSpend(context.Background(), SpendParams{UserId: f.user.Id, Amount: d("150")})
	require.NoError(t, err)
	assert.Equal(t, []string{bad.Id}, res.InvalidRateLimits)
	assert.True(t, res.Transaction.UsdAmount.Equal(d("0.1")))

	after := &dto.Metric{}
	require.NoError(t, metrics.InvalidFxRateTotal.Write(after))
	assert.Equal(t, before.Counter.GetValue()+1, after.Counter.GetValue())
}

func TestRecordSpend_ConcurrentSpendsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	f.addLimit(t, "400", "500")
	f.addLimit(t, "600", "520")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, insufficient := 0, 0
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.RecordSpend(context.Background(), SpendParams{
				UserId:          f.user.Id,
				Amount:          d("100"),
				AuthorizationId: uuid.NewString(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, store.ErrInsufficientFunds):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 5, insufficient)
	for _, r := range f.remaining(t) {
		assert.True(t, r.IsZero())
	}
}

func TestTransitionStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLimit(t, "1000", "500")

	_, err := f.ledger.RecordSpend(ctx, SpendParams{UserId: f.user.Id, Amount: d("100"), AuthorizationId: "auth_t"})
	require.NoError(t, err)

	res, err := f.ledger.TransitionStatus(ctx, f.user.Id, "auth_t", models.TransactionStatusCompleted)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, models.TransactionStatusPending, res.Previous)

	res, err = f.ledger.TransitionStatus(ctx, f.user.Id, "auth_t", models.TransactionStatusCompleted)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	_, err = f.ledger.TransitionStatus(ctx, f.user.Id, "auth_t", models.TransactionStatusRefund)
	require.NoError(t, err)

	_, err = f.ledger.TransitionStatus(ctx, f.user.Id, "auth_t", models.TransactionStatusCompleted)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	_, err = f.ledger.TransitionStatus(ctx, f.user.Id, "auth_missing", models.TransactionStatusCompleted)
	assert.ErrorIs(t, err, store.ErrTransactionNotFound)

	_, err = f.ledger.TransitionStatus(ctx, f.user.Id, "auth_t", "pending")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	stored, err := f.db.GetTransactionByAuthorization(ctx, f.user.Id, "auth_t")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRefund, stored.Status)
	assert.Equal(t, []string{"pending->completed", "completed->refund"}, f.mirror.status)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition("pending", "failed"))
	assert.True(t, CanTransition("completed", "refund"))
	assert.False(t, CanTransition("completed", "pending"))
	assert.False(t, CanTransition("refund", "completed"))
	assert.False(t, CanTransition("failed", "completed"))
}

func TestRecordDeposit_DuplicateReferenceAbsorbed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	params := DepositParams{
		UserId:          f.user.Id,
		UsdAmount:       d("25"),
		TransactionHash: "0xhash",
		ToAddress:       "0xabc",
		Token:           models.TokenInfo{Chain: "ethereum", Network: "mainnet", Token: "USDC"},
	}
	first, err := f.ledger.RecordDeposit(ctx, params)
	require.NoError(t, err)
	second, err := f.ledger.RecordDeposit(ctx, params)
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusCompleted, first.Transaction.Status)
	assert.Equal(t, "0xhash", first.Transaction.TransactionReference)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Transaction.Id, second.Transaction.Id)
}

func TestRecordWithdrawal_ReleasesSubUserLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	lock := &models.FundsLock{
		Id:                uuid.New().String(),
		UserId:            f.user.Id,
		SubUserId:         "sub_1",
		AmountLocked:      d("15"),
		TokenSymbolLocked: "USDC",
		Chain:             "ethereum",
		BlockchainNetwork: "mainnet",
		Type:              models.FundsLockTypeSubUserCardOrder,
		Status:            models.FundsLockStatusLocked,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, f.db.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertFundsLock(ctx, lock)
	}))

	res, err := f.ledger.RecordWithdrawal(ctx, WithdrawalParams{
		UserId:          f.user.Id,
		UsdAmount:       d("15"),
		TransactionHash: "0xout",
		ToAddress:       "0xcard",
		SubUserId:       "sub_1",
	})
	require.NoError(t, err)
	require.NotNil(t, res.ReleasedLock)
	assert.Equal(t, lock.Id, res.ReleasedLock.Id)

	stored, err := f.db.GetFundsLock(ctx, lock.Id)
	require.NoError(t, err)
	assert.Equal(t, models.FundsLockStatusFree, stored.Status)
}

func TestCreateSpendingLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := SettledOrder{
		OrderId:     "ord_1",
		UserId:      f.user.Id,
		UsdAmount:   d("2"),
		FxRate:      d("1550.5"),
		Status:      "SETTLED",
		ChainType:   "ethereum",
		TokenSymbol: "USDC",
	}
	res, err := f.ledger.CreateSpendingLimit(ctx, order)
	require.NoError(t, err)
	assert.True(t, res.Limit.NairaAmount.Equal(d("3101")))
	assert.True(t, res.Limit.NairaRemaining.Equal(d("3101")))
	assert.Equal(t, "mainnet", res.Limit.BlockchainNetwork)

	again, err := f.ledger.CreateSpendingLimit(ctx, order)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, res.Limit.Id, again.Limit.Id)

	bad := order
	bad.OrderId, bad.FxRate = "ord_2", decimal.Zero
	_, err = f.ledger.CreateSpendingLimit(ctx, bad)
	assert.ErrorIs(t, err, store.ErrInvalidRate)

	pending := order
	pending.OrderId, pending.Status = "ord_3", "processing"
	_, err = f.ledger.CreateSpendingLimit(ctx, pending)
	assert.Error(t, err)

	noNetwork := NewService(f.db, nil, models.LedgerConfig{}, nil)
	_, err = noNetwork.CreateSpendingLimit(ctx, SettledOrder{
		OrderId: "ord_4", UserId: f.user.Id, UsdAmount: d("1"), FxRate: d("1500"), Status: "completed",
	})
	assert.ErrorIs(t, err, store.ErrConfiguration)
}

func TestCreateSpendingLimit_OrderReusedByOtherUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.db.CreateUser(ctx, database.CreateUserParams{
		CustomerId: "cus_other",
		Name:       "Grace",
		Email:      "grace@example.com",
		Timezone:   "Africa/Lagos",
	})
	require.NoError(t, err)

	order := SettledOrder{
		OrderId:     "ord_shared",
		UserId:      f.user.Id,
		UsdAmount:   d("1"),
		FxRate:      d("1500"),
		Status:      "completed",
		ChainType:   "ethereum",
		TokenSymbol: "USDC",
	}
	_, err = f.ledger.CreateSpendingLimit(ctx, order)
	require.NoError(t, err)

	order.UserId = other.Id
	_, err = f.ledger.CreateSpendingLimit(ctx, order)
	require.ErrorIs(t, err, store.ErrDuplicateTransaction)
	assert.NotContains(t, err.Error(), "user")
	assert.NotContains(t, err.Error(), f.user.Id)

	limits, err := f.db.ListSpendingLimits(ctx, other.Id)
	require.NoError(t, err)
	assert.Empty(t, limits)
}
