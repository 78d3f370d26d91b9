/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package webhook maps card-rail and deposit events onto ledger operations.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spend-ledger-go/internal/ledger"
	"spend-ledger-go/internal/metrics"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"
	"spend-ledger-go/internal/tank"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	EventAuthorizationRequest = "authorization.request"
	EventTransactionCreated   = "transaction.created"
	EventAuthorizationUpdated = "authorization.updated"
	EventTransactionRefund    = "transaction.refund"
	EventDepositSuccess       = "deposit.success"
)

// Event outcomes recorded on the webhook metric.
const (
	outcomeHandled   = "handled"
	outcomeDuplicate = "duplicate"
	outcomeIgnored   = "ignored"
	outcomeError     = "error"
)

// Ledger is the subset of the ledger service events drive.
type Ledger interface {
	RecordSpend(ctx context.Context, params ledger.SpendParams) (*ledger.SpendResult, error)
	TransitionStatus(ctx context.Context, userId, authorizationId, newStatus string) (*ledger.TransitionResult, error)
	RecordDeposit(ctx context.Context, params ledger.DepositParams) (*ledger.TransferResult, error)
}

// ThresholdChecker evaluates the tank after a spend.
type ThresholdChecker interface {
	Check(ctx context.Context, userId string) (*tank.ThresholdResult, error)
}

// Deposit is a verified inbound credit, from a webhook or the Prime poller.
type Deposit struct {
	CustomerId      string
	Address         string
	UsdAmount       decimal.Decimal
	NairaAmount     decimal.Decimal
	Reference       string
	TransactionHash string
	Token           models.TokenInfo
}

type Processor struct {
	users      store.UserStore
	ledger     Ledger
	thresholds ThresholdChecker
}

// NewProcessor wires the processor. thresholds may be nil.
func NewProcessor(users store.UserStore, l Ledger, thresholds ThresholdChecker) *Processor {
	return &Processor{users: users, ledger: l, thresholds: thresholds}
}

// Process handles one event. Unknown event names are acknowledged and ignored.
func (p *Processor) Process(ctx context.Context, ev *Event) (result *models.EventResult, err error) {
	result = &models.EventResult{Event: ev.Event}
	defer func() {
		outcome := outcomeHandled
		switch {
		case err != nil:
			outcome = outcomeError
			result.Error = err.Error()
		case result.Duplicate:
			outcome = outcomeDuplicate
		case !result.Handled:
			outcome = outcomeIgnored
		}
		metrics.WebhookEventsTotal.WithLabelValues(eventLabel(ev.Event), outcome).Inc()
	}()

	if models.GetEventContext(ctx) == nil {
		ctx = models.WithEventContext(ctx, &models.EventContext{
			Event:      ev.Event,
			Source:     "webhook",
			ReceivedAt: time.Now(),
		})
	}

	payload, err := ExtractPayload(ev.Data)
	if err != nil {
		return result, err
	}
	if payload.Negative {
		zap.L().Warn("Negative event amount normalized",
			zap.String("event", ev.Event),
			zap.String("amount", payload.Amount.Neg().String()),
			zap.String("authorization_id", payload.AuthorizationId))
	}

	switch ev.Event {
	case EventAuthorizationRequest, EventTransactionCreated:
		err = p.handleSpend(ctx, payload, result)
	case EventAuthorizationUpdated:
		err = p.handleTransition(ctx, payload, models.TransactionStatusCompleted, result)
	case EventTransactionRefund:
		err = p.handleTransition(ctx, payload, models.TransactionStatusRefund, result)
	case EventDepositSuccess:
		err = p.processDeposit(ctx, depositFromPayload(payload), result)
	default:
		zap.L().Info("Ignoring unsupported webhook event", zap.String("event", ev.Event))
		return result, nil
	}
	if err != nil {
		return result, err
	}
	result.Handled = true
	return result, nil
}

// ProcessDeposit records a deposit that did not arrive through a webhook.
func (p *Processor) ProcessDeposit(ctx context.Context, d Deposit) (*models.EventResult, error) {
	result := &models.EventResult{Event: EventDepositSuccess}
	if err := p.processDeposit(ctx, d, result); err != nil {
		result.Error = err.Error()
		return result, err
	}
	result.Handled = true
	return result, nil
}

func (p *Processor) resolveCustomer(ctx context.Context, customerId string) (*models.User, error) {
	if customerId == "" {
		return nil, fmt.Errorf("%w: missing customer id", ErrInvalidPayload)
	}
	user, err := p.users.FindUserByCustomerId(ctx, customerId)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (p *Processor) handleSpend(ctx context.Context, payload Payload, result *models.EventResult) error {
	if payload.AuthorizationId == "" {
		return fmt.Errorf("%w: missing authorization id", ErrInvalidPayload)
	}
	user, err := p.resolveCustomer(ctx, payload.CustomerId)
	if err != nil {
		return err
	}
	result.UserId = user.Id

	spend, err := p.ledger.RecordSpend(ctx, ledger.SpendParams{
		UserId:               user.Id,
		Amount:               payload.Amount,
		AuthorizationId:      payload.AuthorizationId,
		TransactionReference: payload.Reference,
		MerchantName:         payload.Merchant,
		Channel:              payload.Channel,
		Category:             payload.Category,
		Status:               models.TransactionStatusPending,
	})
	if err != nil {
		return err
	}

	result.TransactionId = spend.Transaction.Id
	result.Status = spend.Transaction.Status
	result.Duplicate = spend.Duplicate
	if !spend.Duplicate {
		p.checkThresholds(ctx, user.Id)
	}
	return nil
}

func (p *Processor) handleTransition(ctx context.Context, payload Payload, status string, result *models.EventResult) error {
	if payload.AuthorizationId == "" {
		return fmt.Errorf("%w: missing authorization id", ErrInvalidPayload)
	}
	user, err := p.resolveCustomer(ctx, payload.CustomerId)
	if err != nil {
		return err
	}
	result.UserId = user.Id

	tr, err := p.ledger.TransitionStatus(ctx, user.Id, payload.AuthorizationId, status)
	if err != nil {
		return err
	}
	result.TransactionId = tr.Transaction.Id
	result.Status = tr.Transaction.Status
	result.Duplicate = !tr.Changed
	return nil
}

func depositFromPayload(p Payload) Deposit {
	return Deposit{
		CustomerId:      p.CustomerId,
		Address:         p.Address,
		UsdAmount:       p.Amount,
		NairaAmount:     p.NairaAmount,
		Reference:       p.Reference,
		TransactionHash: p.TransactionHash,
		Token: models.TokenInfo{
			Chain:   p.Chain,
			Network: p.Network,
			Token:   p.Token,
		},
	}
}

func (p *Processor) processDeposit(ctx context.Context, d Deposit, result *models.EventResult) error {
	if d.Reference == "" && d.TransactionHash == "" {
		return fmt.Errorf("%w: deposit needs a reference or transaction hash", ErrInvalidPayload)
	}

	user, err := p.resolveDepositor(ctx, &d)
	if err != nil {
		return err
	}
	result.UserId = user.Id

	transfer, err := p.ledger.RecordDeposit(ctx, ledger.DepositParams{
		UserId:          user.Id,
		UsdAmount:       d.UsdAmount,
		NairaAmount:     d.NairaAmount,
		Reference:       d.Reference,
		TransactionHash: d.TransactionHash,
		ToAddress:       d.Address,
		Token:           d.Token,
	})
	if err != nil {
		return err
	}

	result.TransactionId = transfer.Transaction.Id
	result.Status = transfer.Transaction.Status
	result.Duplicate = transfer.Duplicate
	if transfer.Duplicate {
		zap.L().Info("Duplicate deposit absorbed",
			zap.String("user_id", user.Id),
			zap.String("transaction_id", transfer.Transaction.Id),
			zap.String("reference", transfer.Transaction.TransactionReference))
	}
	return nil
}

// resolveDepositor finds the user by customer id, then by deposit address.
// Token details missing from the event are taken from the address record.
func (p *Processor) resolveDepositor(ctx context.Context, d *Deposit) (*models.User, error) {
	if d.CustomerId != "" {
		return p.users.FindUserByCustomerId(ctx, d.CustomerId)
	}
	if d.Address == "" {
		return nil, fmt.Errorf("%w: deposit needs a customer id or address", ErrInvalidPayload)
	}

	user, addr, err := p.users.FindUserByAddress(ctx, d.Address)
	if err != nil {
		return nil, err
	}
	if d.Token.Token == "" {
		d.Token.Token = addr.TokenSymbol
	}
	if d.Token.Chain == "" {
		d.Token.Chain = addr.Chain
	}
	if d.Token.Network == "" {
		d.Token.Network = addr.Network
	}
	return user, nil
}

func (p *Processor) checkThresholds(ctx context.Context, userId string) {
	if p.thresholds == nil {
		return
	}
	if _, err := p.thresholds.Check(ctx, userId); err != nil {
		zap.L().Warn("Threshold check failed",
			zap.String("user_id", userId),
			zap.Error(err))
	}
}

func eventLabel(event string) string {
	switch event {
	case EventAuthorizationRequest, EventTransactionCreated, EventAuthorizationUpdated,
		EventTransactionRefund, EventDepositSuccess:
		return event
	}
	return "unknown"
}

// IsClientError reports whether err was caused by the event rather than by us.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPayload) || errors.Is(err, store.ErrInvalidAmount)
}
