package webhook

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"spend-ledger-go/internal/database"
	"spend-ledger-go/internal/ledger"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"
	"spend-ledger-go/internal/syncutil"
	"spend-ledger-go/internal/tank"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingChecker struct {
	mu    sync.Mutex
	users []string
}

func (c *countingChecker) Check(_ context.Context, userId string) (*tank.ThresholdResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, userId)
	return &tank.ThresholdResult{}, nil
}

type fixture struct {
	db        *database.Service
	processor *Processor
	checker   *countingChecker
	user      *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "webhook.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	user, err := db.CreateUser(ctx, database.CreateUserParams{
		CustomerId: "cus_123",
		Name:       "Ada",
		Email:      "ada@example.com",
	})
	require.NoError(t, err)

	_, err = db.StoreAddress(ctx, database.StoreAddressParams{
		UserId:      user.Id,
		TokenSymbol: "USDC",
		Chain:       "base",
		Network:     "base-mainnet",
		Address:     "0xAbC123",
	})
	require.NoError(t, err)

	l := ledger.NewService(db, &syncutil.ShardedMutex{}, models.LedgerConfig{DefaultNetwork: "mainnet"}, nil)
	_, err = l.CreateSpendingLimit(ctx, ledger.SettledOrder{
		OrderId:     uuid.NewString(),
		UserId:      user.Id,
		UsdAmount:   decimal.NewFromInt(2),
		FxRate:      decimal.NewFromInt(500),
		Status:      "settled",
		ChainType:   "base",
		TokenSymbol: "USDC",
	})
	require.NoError(t, err)

	checker := &countingChecker{}
	return &fixture{
		db:        db,
		processor: NewProcessor(db, l, checker),
		checker:   checker,
		user:      user,
	}
}

func decode(t *testing.T, body string) *Event {
	t.Helper()
	ev, err := DecodeEvent(strings.NewReader(body))
	require.NoError(t, err)
	return ev
}

func (f *fixture) history(t *testing.T) []models.Transaction {
	t.Helper()
	txns, err := f.db.GetTransactionHistory(context.Background(), f.user.Id, 50, 0)
	require.NoError(t, err)
	return txns
}

func TestProcess_AuthorizationRequestReplay(t *testing.T) {
	f := newFixture(t)
	body := `{"event":"authorization.request","data":{"customer":{"id":"cus_123"},"amount":-250,"authorization_id":"auth_1","merchant":{"name":"Shoprite"}}}`

	first, err := f.processor.Process(context.Background(), decode(t, body))
	require.NoError(t, err)
	assert.True(t, first.Handled)
	assert.False(t, first.Duplicate)
	assert.Equal(t, models.TransactionStatusPending, first.Status)

	second, err := f.processor.Process(context.Background(), decode(t, body))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.TransactionId, second.TransactionId)

	txns := f.history(t)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].NairaAmount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, "Shoprite", txns[0].MerchantName)
	assert.Equal(t, "card", txns[0].Channel)
	assert.Equal(t, "general", txns[0].Category)

	chunks, err := f.db.GetTransactionChunks(context.Background(), first.TransactionId)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)

	assert.Equal(t, []string{f.user.Id}, f.checker.users, "threshold check runs once, not on replay")
}

func TestProcess_StatusLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.processor.Process(ctx, decode(t, `{"event":"transaction.created","data":{"customerId":"cus_123","amount":"100","authorizationId":"auth_2"}}`))
	require.NoError(t, err)

	res, err := f.processor.Process(ctx, decode(t, `{"event":"authorization.updated","data":{"customer_id":"cus_123","authorization_id":"auth_2"}}`))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, res.Status)

	res, err = f.processor.Process(ctx, decode(t, `{"event":"transaction.refund","data":{"customer_id":"cus_123","authorization_id":"auth_2"}}`))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRefund, res.Status)

	_, err = f.processor.Process(ctx, decode(t, `{"event":"authorization.updated","data":{"customer_id":"cus_123","authorization_id":"auth_2"}}`))
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestProcess_TransitionWithoutPendingRecord(t *testing.T) {
	f := newFixture(t)

	_, err := f.processor.Process(context.Background(),
		decode(t, `{"event":"authorization.updated","data":{"customer_id":"cus_123","authorization_id":"missing"}}`))
	assert.ErrorIs(t, err, store.ErrTransactionNotFound)
}

func TestProcess_UnknownCustomer(t *testing.T) {
	f := newFixture(t)

	res, err := f.processor.Process(context.Background(),
		decode(t, `{"event":"authorization.request","data":{"customer_id":"cus_nobody","amount":10,"authorization_id":"a"}}`))
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	assert.NotContains(t, res.Error, "cus_nobody")
	assert.Empty(t, f.history(t))
}

func TestProcess_InsufficientFundsRollsBack(t *testing.T) {
	f := newFixture(t)

	_, err := f.processor.Process(context.Background(),
		decode(t, `{"event":"authorization.request","data":{"customer_id":"cus_123","amount":"1000.01","authorization_id":"big"}}`))

	var ife *store.InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	assert.Equal(t, "0.01", ife.Shortfall().String())
	assert.Empty(t, f.history(t))
	assert.Empty(t, f.checker.users)
}

func TestProcess_MissingFields(t *testing.T) {
	f := newFixture(t)

	for name, body := range map[string]string{
		"no authorization": `{"event":"authorization.request","data":{"customer_id":"cus_123","amount":10}}`,
		"no customer":      `{"event":"authorization.request","data":{"amount":10,"authorization_id":"x"}}`,
		"bad amount":       `{"event":"authorization.request","data":{"customer_id":"cus_123","amount":"ten","authorization_id":"x"}}`,
		"deposit no ref":   `{"event":"deposit.success","data":{"customer_id":"cus_123","amount":10}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.processor.Process(context.Background(), decode(t, body))
			assert.True(t, IsClientError(err), "got %v", err)
		})
	}
}

func TestProcess_ZeroAmountSpendIsRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.processor.Process(context.Background(),
		decode(t, `{"event":"authorization.request","data":{"customer_id":"cus_123","amount":0,"authorization_id":"zero"}}`))
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
	assert.True(t, IsClientError(err))
}

func TestProcess_UnknownEventIgnored(t *testing.T) {
	f := newFixture(t)

	res, err := f.processor.Process(context.Background(), decode(t, `{"event":"card.frozen","data":{}}`))
	require.NoError(t, err)
	assert.False(t, res.Handled)
}

func TestProcess_DepositByAddressIsIdempotent(t *testing.T) {
	f := newFixture(t)
	body := `{"event":"deposit.success","data":{"address":"0xabc123","amount":"25.5","naira_amount":"12750","hash":"0xhash1"}}`

	first, err := f.processor.Process(context.Background(), decode(t, body))
	require.NoError(t, err)
	assert.Equal(t, f.user.Id, first.UserId)
	assert.Equal(t, models.TransactionStatusCompleted, first.Status)

	second, err := f.processor.Process(context.Background(), decode(t, body))
	require.NoError(t, err, "duplicate deposit must not surface an error")
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.TransactionId, second.TransactionId)

	txns := f.history(t)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TransactionTypeDeposit, txns[0].Type)
	assert.Equal(t, []models.TokenInfo{{Chain: "base", Network: "base-mainnet", Token: "USDC"}}, txns[0].TokenInfo)
}

func TestProcessDeposit_UnknownAddress(t *testing.T) {
	f := newFixture(t)

	_, err := f.processor.ProcessDeposit(context.Background(), Deposit{
		Address:         "0xdead",
		UsdAmount:       decimal.NewFromInt(1),
		TransactionHash: "0xhash2",
	})
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestExtractPayload_Shapes(t *testing.T) {
	ev := decode(t, `{"event":"authorization.request","data":{"customer":{"id":"c1"},"amount":"12.345","id":"auth_9","transaction_reference":"ref","channel":"web","merchant":{"name":"Jumia","category":"retail"}}}`)

	p, err := ExtractPayload(ev.Data)
	require.NoError(t, err)
	assert.Equal(t, "c1", p.CustomerId)
	assert.Equal(t, "auth_9", p.AuthorizationId)
	assert.Equal(t, "ref", p.Reference)
	assert.Equal(t, "Jumia", p.Merchant)
	assert.Equal(t, "web", p.Channel)
	assert.Equal(t, "retail", p.Category)
	assert.Equal(t, "12.345", p.Amount.String())
	assert.False(t, p.Negative)
}

func TestDecodeEvent_Malformed(t *testing.T) {
	_, err := DecodeEvent(strings.NewReader(`{"event":`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
