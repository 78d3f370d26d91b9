package formance

import (
	"context"
	"strings"
	"testing"
	"time"

	"spend-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestFormanceAsset(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"USDC", "USDC/6"},
		{"NGN", "NGN/2"},
		{"ETH", "ETH/18"},
		{"UNKNOWN", "UNKNOWN/6"}, // default precision
	}
	for _, tt := range tests {
		if got := formanceAsset(tt.symbol); got != tt.want {
			t.Errorf("formanceAsset(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := map[string]string{
		"BASEUSDC": "USDC",
		"usdc":     "USDC",
		"BASEETH":  "ETH",
		"":         "USD",
	}
	for in, want := range tests {
		if got := normalizeSymbol(in); got != want {
			t.Errorf("normalizeSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSegment(t *testing.T) {
	tests := map[string]string{
		"":                "default",
		"Base-Mainnet":    "base-mainnet",
		"user:1/evil acc": "user_1_evil_acc",
	}
	for in, want := range tests {
		if got := segment(in); got != want {
			t.Errorf("segment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBigIntToDecimal(t *testing.T) {
	// 1_000_000 smallest units of USDC (precision 6) = 1.0
	d := decimal.NewFromInt(1_000_000)
	result := bigIntToDecimal(d.BigInt(), "USDC")
	if !result.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected 1.0, got %s", result.String())
	}

	// nil should return zero
	result = bigIntToDecimal(nil, "USDC")
	if !result.IsZero() {
		t.Errorf("expected 0, got %s", result.String())
	}
}

func TestSmallestUnit(t *testing.T) {
	if got := smallestUnit(decimal.RequireFromString("900.50"), "NGN"); got != "90050" {
		t.Errorf("expected 90050, got %s", got)
	}
	if got := smallestUnit(decimal.RequireFromString("-1.5"), "USDC"); got != "1500000" {
		t.Errorf("expected 1500000, got %s", got)
	}
}

func TestIsConflictError(t *testing.T) {
	// nil error should not be a conflict
	if isConflictError(nil) {
		t.Error("nil should not be a conflict error")
	}
}

func TestSpendPosting(t *testing.T) {
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	txn := &models.Transaction{
		Id:              "tx-1",
		UserId:          "user-1",
		NairaAmount:     decimal.NewFromInt(900),
		UsdAmount:       decimal.RequireFromString("1.7846"),
		EffectiveFxRate: decimal.RequireFromString("504.31"),
		Status:          models.TransactionStatusPending,
		AuthorizationId: "auth-1",
		CreatedAt:       created,
	}
	chunks := []models.TransactionChunk{{SpendingLimitId: "L1"}, {SpendingLimitId: "L2"}}

	postTx := spendPosting(txn, chunks)

	if *postTx.Reference != "spend-tx-1" {
		t.Errorf("unexpected reference %q", *postTx.Reference)
	}
	vars := postTx.Script.Vars
	if vars["amount"] != "90000" || vars["asset"] != "NGN/2" {
		t.Errorf("unexpected amount %s %s", vars["asset"], vars["amount"])
	}
	if vars["limit_ids"] != "L1,L2" {
		t.Errorf("unexpected limit ids %q", vars["limit_ids"])
	}
	if vars["status"] != "pending" {
		t.Errorf("unexpected status account %q", vars["status"])
	}
	if postTx.Timestamp == nil || !postTx.Timestamp.Equal(created) {
		t.Errorf("expected timestamp %v", created)
	}
}

func TestStatusChangePostingReferenceIsPerStatus(t *testing.T) {
	txn := &models.Transaction{Id: "tx-1", UserId: "u", NairaAmount: decimal.NewFromInt(1), Status: models.TransactionStatusRefund}

	postTx := statusChangePosting(txn, models.TransactionStatusCompleted)

	if *postTx.Reference != "spend-tx-1-refund" {
		t.Errorf("unexpected reference %q", *postTx.Reference)
	}
	if postTx.Script.Vars["from_status"] != "completed" || postTx.Script.Vars["to_status"] != "refund" {
		t.Errorf("unexpected status accounts %v", postTx.Script.Vars)
	}
}

func TestTransferPosting(t *testing.T) {
	txn := &models.Transaction{
		Id:                   "tx-9",
		UserId:               "u",
		Type:                 models.TransactionTypeWithdrawal,
		UsdAmount:            decimal.NewFromInt(25),
		TransactionReference: "ref-9",
		ToAddress:            "0xabc",
		TokenInfo:            []models.TokenInfo{{Chain: "base", Network: "base-mainnet", Token: "BASEUSDC"}},
	}

	postTx := transferPosting(txn, numscriptWithdrawal)

	vars := postTx.Script.Vars
	if vars["asset"] != "USDC/6" || vars["amount"] != "25000000" {
		t.Errorf("unexpected amount %s %s", vars["asset"], vars["amount"])
	}
	if vars["chain"] != "base" || vars["to_address"] != "0xabc" {
		t.Errorf("unexpected vars %v", vars)
	}
	if _, ok := vars["naira_amount"]; ok {
		t.Error("withdrawal script declares no naira_amount var")
	}
	if !strings.HasPrefix(*postTx.Reference, "withdrawal-") {
		t.Errorf("unexpected reference %q", *postTx.Reference)
	}
}

func TestMirrorMetadata(t *testing.T) {
	if mirrorMetadata(nil) != nil {
		t.Error("expected nil metadata without event context")
	}

	ctx := models.WithEventContext(context.Background(), &models.EventContext{Event: "authorization.request", Source: "webhook", DeliveryId: "req-1"})
	meta := mirrorMetadata(models.GetEventContext(ctx))
	if meta["event"] != "authorization.request" || meta["delivery_id"] != "req-1" {
		t.Errorf("unexpected metadata %v", meta)
	}
}

func TestWalletAccount(t *testing.T) {
	if got := walletAccount("user-1", "Base"); got != "users:user-1:wallets:base" {
		t.Errorf("unexpected account %q", got)
	}
}

func TestNewServiceRequiresCredentials(t *testing.T) {
	if _, err := NewService(context.Background(), models.FormanceConfig{StackURL: "http://localhost"}, nil); err == nil {
		t.Error("expected configuration error")
	}
}
