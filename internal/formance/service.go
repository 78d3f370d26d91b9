package formance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spend-ledger-go/internal/fundslock"
	"spend-ledger-go/internal/ledger"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// Compile-time checks: *Service mirrors the ledger and answers balance queries.
var (
	_ ledger.Mirror           = (*Service)(nil)
	_ fundslock.BalanceOracle = (*Service)(nil)
)

const defaultLedgerName = "spend-ledger"

// assetPrecision maps canonical asset symbols to their decimal precision.
var assetPrecision = map[string]int{
	"NGN":  2,
	"USD":  2,
	"USDC": 6,
	"USDT": 6,
	"BTC":  8,
	"ETH":  18,
	"SOL":  9,
}

// Service mirrors committed ledger effects into a Formance Stack ledger and
// reads wallet balances back out of it.
type Service struct {
	client *v3.Formance
	ledger string
	users  store.UserStore
}

// NewService connects to the stack and creates the ledger if it doesn't already exist.
// users resolves deposit addresses for balance queries.
func NewService(ctx context.Context, cfg models.FormanceConfig, users store.UserStore) (*Service, error) {
	if cfg.StackURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: formance requires StackURL, ClientID, and ClientSecret", store.ErrConfiguration)
	}
	if cfg.LedgerName == "" {
		cfg.LedgerName = defaultLedgerName
	}

	zap.L().Info("Connecting to Formance Stack",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", cfg.LedgerName))

	client := v3.New(
		v3.WithServerURL(cfg.StackURL),
		v3.WithSecurity(shared.Security{
			ClientID:     v3.Pointer(cfg.ClientID),
			ClientSecret: v3.Pointer(cfg.ClientSecret),
		}),
	)

	svc := &Service{client: client, ledger: cfg.LedgerName, users: users}

	if err := svc.ensureLedger(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger exists: %w", err)
	}

	zap.L().Info("Formance service initialized", zap.String("ledger", cfg.LedgerName))
	return svc, nil
}

// ensureLedger creates the ledger if it does not already exist.
func (s *Service) ensureLedger(ctx context.Context) error {
	_, err := s.client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: s.ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: map[string]string{
				"application": defaultLedgerName,
			},
		},
	})
	if err != nil {
		var apiErr *sdkerrors.V2ErrorResponse
		if errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumLedgerAlreadyExists {
			zap.L().Info("Ledger already exists", zap.String("ledger", s.ledger))
			return nil
		}
		return err
	}
	zap.L().Info("Ledger created", zap.String("ledger", s.ledger))
	return nil
}

// ---------- helpers ----------

// formanceAsset returns the Formance UMN notation, e.g. "USDC/6".
func formanceAsset(symbol string) string {
	return fmt.Sprintf("%s/%d", symbol, precisionFor(symbol))
}

func precisionFor(symbol string) int {
	if p, ok := assetPrecision[symbol]; ok {
		return p
	}
	return 6
}

// normalizeSymbol maps network-prefixed Prime symbols to their canonical token.
func normalizeSymbol(symbol string) string {
	mapping := map[string]string{
		"BASEUSDC": "USDC", "SPLUSDC": "USDC", "AVAUSDC": "USDC", "ARBUSDC": "USDC",
		"BASEETH": "ETH",
	}
	symbol = strings.ToUpper(symbol)
	if canonical, ok := mapping[symbol]; ok {
		return canonical
	}
	if symbol == "" {
		return "USD"
	}
	return symbol
}

// segment makes a value safe for use inside a Formance account address.
func segment(v string) string {
	if v == "" {
		return "default"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(v) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// isConflictError checks whether a Formance SDK error is a CONFLICT (duplicate reference).
func isConflictError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumConflict
}

// isNotFoundError checks whether a Formance SDK error is NOT_FOUND.
func isNotFoundError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumNotFound
}

func strPtr(s string) *string { return &s }
