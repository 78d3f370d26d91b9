package formance

import (
	"context"
	"fmt"
	"strings"

	"spend-ledger-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

const nairaSymbol = "NGN"

// ---------------------------------------------------------------------------
// Numscript templates. All metadata is set inside the script via
// set_tx_meta() so the Formance transaction is fully self-describing.
// ---------------------------------------------------------------------------

const numscriptSpendingLimit = `vars {
  asset $asset
  number $amount
  account $user_id
  string $limit_id
  string $order_id
  string $fx_rate
  string $usd_amount
}

send [$asset $amount] (
  source = @world
  destination = @users:$user_id:limits
)

set_tx_meta("event_type", "spending_limit_created")
set_tx_meta("limit_id", $limit_id)
set_tx_meta("order_id", $order_id)
set_tx_meta("fx_rate", $fx_rate)
set_tx_meta("usd_amount", $usd_amount)
`

const numscriptSpend = `vars {
  asset $asset
  number $amount
  account $user_id
  account $status
  string $transaction_id
  string $authorization_id
  string $usd_amount
  string $effective_fx_rate
  string $limit_ids
}

send [$asset $amount] (
  source = @users:$user_id:limits allowing unbounded overdraft
  destination = @users:$user_id:spend:$status
)

set_tx_meta("event_type", "spend")
set_tx_meta("transaction_id", $transaction_id)
set_tx_meta("authorization_id", $authorization_id)
set_tx_meta("usd_amount", $usd_amount)
set_tx_meta("effective_fx_rate", $effective_fx_rate)
set_tx_meta("limit_ids", $limit_ids)
`

const numscriptStatusChange = `vars {
  asset $asset
  number $amount
  account $user_id
  account $from_status
  account $to_status
  string $transaction_id
}

send [$asset $amount] (
  source = @users:$user_id:spend:$from_status allowing unbounded overdraft
  destination = @users:$user_id:spend:$to_status
)

set_tx_meta("event_type", "spend_status_change")
set_tx_meta("transaction_id", $transaction_id)
`

const numscriptDeposit = `vars {
  asset $asset
  number $amount
  account $user_id
  account $chain
  string $transaction_id
  string $reference
  string $naira_amount
}

send [$asset $amount] (
  source = @world
  destination = @users:$user_id:wallets:$chain
)

set_tx_meta("event_type", "deposit")
set_tx_meta("transaction_id", $transaction_id)
set_tx_meta("reference", $reference)
set_tx_meta("naira_amount", $naira_amount)
`

const numscriptWithdrawal = `vars {
  asset $asset
  number $amount
  account $user_id
  account $chain
  string $transaction_id
  string $reference
  string $to_address
}

send [$asset $amount] (
  source = @users:$user_id:wallets:$chain allowing unbounded overdraft
  destination = @world
)

set_tx_meta("event_type", "withdrawal")
set_tx_meta("transaction_id", $transaction_id)
set_tx_meta("reference", $reference)
set_tx_meta("to_address", $to_address)
`

// ---------------------------------------------------------------------------
// Postings
// ---------------------------------------------------------------------------

func (s *Service) PostSpendingLimit(ctx context.Context, limit *models.SpendingLimit) error {
	return s.post(ctx, "spending limit", spendingLimitPosting(limit))
}

func (s *Service) PostSpend(ctx context.Context, txn *models.Transaction, chunks []models.TransactionChunk) error {
	return s.post(ctx, "spend", spendPosting(txn, chunks))
}

func (s *Service) PostStatusChange(ctx context.Context, txn *models.Transaction, previous string) error {
	return s.post(ctx, "status change", statusChangePosting(txn, previous))
}

func (s *Service) PostDeposit(ctx context.Context, txn *models.Transaction) error {
	return s.post(ctx, "deposit", transferPosting(txn, numscriptDeposit))
}

func (s *Service) PostWithdrawal(ctx context.Context, txn *models.Transaction) error {
	return s.post(ctx, "withdrawal", transferPosting(txn, numscriptWithdrawal))
}

// post creates the transaction. A reference conflict means the posting
// already exists and is treated as success.
func (s *Service) post(ctx context.Context, kind string, postTx shared.V2PostTransaction) error {
	if meta := mirrorMetadata(models.GetEventContext(ctx)); meta != nil {
		postTx.Metadata = meta
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Debug("Formance posting already exists",
				zap.String("kind", kind),
				zap.String("reference", *postTx.Reference))
			return nil
		}
		return fmt.Errorf("error recording %s in Formance: %w", kind, err)
	}

	zap.L().Info("Posted to Formance",
		zap.String("kind", kind),
		zap.String("reference", *postTx.Reference))
	return nil
}

func spendingLimitPosting(limit *models.SpendingLimit) shared.V2PostTransaction {
	postTx := shared.V2PostTransaction{
		Reference: strPtr("limit-" + limit.Id),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptSpendingLimit,
			Vars: map[string]string{
				"asset":      formanceAsset(nairaSymbol),
				"amount":     smallestUnit(limit.NairaAmount, nairaSymbol),
				"user_id":    segment(limit.UserId),
				"limit_id":   limit.Id,
				"order_id":   limit.OrderId,
				"fx_rate":    limit.FxRate.String(),
				"usd_amount": limit.UsdAmount.String(),
			},
		},
	}
	if !limit.CreatedAt.IsZero() {
		postTx.Timestamp = &limit.CreatedAt
	}
	return postTx
}

func spendPosting(txn *models.Transaction, chunks []models.TransactionChunk) shared.V2PostTransaction {
	limitIds := make([]string, len(chunks))
	for i, c := range chunks {
		limitIds[i] = c.SpendingLimitId
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr("spend-" + txn.Id),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptSpend,
			Vars: map[string]string{
				"asset":             formanceAsset(nairaSymbol),
				"amount":            smallestUnit(txn.NairaAmount, nairaSymbol),
				"user_id":           segment(txn.UserId),
				"status":            segment(txn.Status),
				"transaction_id":    txn.Id,
				"authorization_id":  txn.AuthorizationId,
				"usd_amount":        txn.UsdAmount.String(),
				"effective_fx_rate": txn.EffectiveFxRate.String(),
				"limit_ids":         strings.Join(limitIds, ","),
			},
		},
	}
	if !txn.CreatedAt.IsZero() {
		postTx.Timestamp = &txn.CreatedAt
	}
	return postTx
}

func statusChangePosting(txn *models.Transaction, previous string) shared.V2PostTransaction {
	return shared.V2PostTransaction{
		Reference: strPtr(fmt.Sprintf("spend-%s-%s", txn.Id, txn.Status)),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptStatusChange,
			Vars: map[string]string{
				"asset":          formanceAsset(nairaSymbol),
				"amount":         smallestUnit(txn.NairaAmount, nairaSymbol),
				"user_id":        segment(txn.UserId),
				"from_status":    segment(previous),
				"to_status":      segment(txn.Status),
				"transaction_id": txn.Id,
			},
		},
	}
}

// transferPosting builds a deposit or withdrawal in the token drawn. The
// first token entry decides the asset and wallet account.
func transferPosting(txn *models.Transaction, script string) shared.V2PostTransaction {
	var token models.TokenInfo
	if len(txn.TokenInfo) > 0 {
		token = txn.TokenInfo[0]
	}
	symbol := normalizeSymbol(token.Token)

	vars := map[string]string{
		"asset":          formanceAsset(symbol),
		"amount":         smallestUnit(txn.UsdAmount, symbol),
		"user_id":        segment(txn.UserId),
		"chain":          segment(token.Chain),
		"transaction_id": txn.Id,
		"reference":      txn.TransactionReference,
	}
	if script == numscriptDeposit {
		vars["naira_amount"] = txn.NairaAmount.String()
	} else {
		vars["to_address"] = txn.ToAddress
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(txn.Type + "-" + txn.Id),
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars:  vars,
		},
	}
	if !txn.CreatedAt.IsZero() {
		postTx.Timestamp = &txn.CreatedAt
	}
	return postTx
}
