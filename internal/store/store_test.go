package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestInsufficientFundsError(t *testing.T) {
	err := error(&InsufficientFundsError{
		Requested: decimal.RequireFromString("1000.01"),
		Available: decimal.RequireFromString("1000"),
		Asset:     "NGN",
	})

	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected errors.Is(err, ErrInsufficientFunds), got %v", err)
	}

	var ife *InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("expected errors.As to find *InsufficientFundsError")
	}
	if !ife.Shortfall().Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("expected shortfall 0.01, got %s", ife.Shortfall().String())
	}
	if !strings.Contains(err.Error(), "shortfall 0.01") {
		t.Errorf("expected shortfall in message, got %q", err.Error())
	}
}

func TestNotFoundErrorsCarryNoIdentifiers(t *testing.T) {
	for _, err := range []error{ErrUserNotFound, ErrTransactionNotFound, ErrLockNotFound} {
		if strings.ContainsAny(err.Error(), "0123456789:") {
			t.Errorf("not-found error should be generic, got %q", err.Error())
		}
	}
}
