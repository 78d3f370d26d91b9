package formance

import (
	"context"
	"fmt"
	"math/big"

	"spend-ledger-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetOnChainBalance returns the mirrored wallet balance behind a deposit
// address: deposits credit it and withdrawals debit it.
func (s *Service) GetOnChainBalance(ctx context.Context, address, token, chain, network string) (decimal.Decimal, error) {
	user, addr, err := s.users.FindUserByAddress(ctx, address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error finding user by address: %w", err)
	}
	if chain == "" {
		chain = addr.Chain
	}
	if token == "" {
		token = addr.TokenSymbol
	}
	symbol := normalizeSymbol(token)

	zap.L().Debug("Getting wallet balance from Formance",
		zap.String("user_id", user.Id),
		zap.String("asset", symbol),
		zap.String("chain", chain),
		zap.String("network", network))

	vols, err := s.getAccountVolumes(ctx, walletAccount(user.Id, chain))
	if err != nil {
		return decimal.Zero, err
	}
	if bal := volumeBalance(vols, formanceAsset(symbol)); bal != nil {
		return bigIntToDecimal(bal, symbol), nil
	}
	return decimal.Zero, nil
}

func walletAccount(userId, chain string) string {
	return fmt.Sprintf("users:%s:wallets:%s", segment(userId), segment(chain))
}

// getAccountVolumes fetches volumes for a single account. An account the
// ledger has never seen has no volumes.
func (s *Service) getAccountVolumes(ctx context.Context, address string) (map[string]shared.V2Volume, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account volumes for %s: %w", address, err)
	}
	return resp.V2AccountResponse.Data.Volumes, nil
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// bigIntToDecimal converts a *big.Int in smallest-unit to a human-readable decimal.
func bigIntToDecimal(raw *big.Int, symbol string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(precisionFor(symbol)))
}

// smallestUnit converts a decimal amount to the integer string Numscript expects.
func smallestUnit(amount decimal.Decimal, symbol string) string {
	return amount.Abs().Shift(int32(precisionFor(symbol))).BigInt().String()
}

// mirrorMetadata returns the delivery metadata attached to every posting.
func mirrorMetadata(ev *models.EventContext) map[string]string {
	if ev == nil {
		return nil
	}
	meta := map[string]string{
		"event":  ev.Event,
		"source": ev.Source,
	}
	if ev.DeliveryId != "" {
		meta["delivery_id"] = ev.DeliveryId
	}
	return meta
}
