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

package tank

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spend-ledger-go/internal/metrics"
	"spend-ledger-go/internal/models"

	"go.uber.org/zap"
)

// LimitReader is the read side of the store the tank needs.
type LimitReader interface {
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	ListSpendingLimits(ctx context.Context, userId string) ([]models.SpendingLimit, error)
}

// Alert is sent when a user's usage first reaches a threshold on a given day.
type Alert struct {
	UserId         string
	Day            string
	Threshold      int
	PercentageUsed string
}

// Notifier delivers threshold alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the global logger.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, alert Alert) error {
	zap.L().Info("Spending threshold reached",
		zap.String("user_id", alert.UserId),
		zap.String("day", alert.Day),
		zap.Int("threshold", alert.Threshold),
		zap.String("percentage_used", alert.PercentageUsed))
	return nil
}

type Service struct {
	store      LimitReader
	thresholds []int
	defaultTZ  string
	notifier   Notifier

	mu   sync.Mutex
	sent map[alertKey]bool

	now func() time.Time
}

// NewService builds the aggregator. Empty thresholds fall back to
// DefaultThresholds and a nil notifier to LogNotifier.
func NewService(st LimitReader, cfg models.LedgerConfig, thresholds []int, notifier Notifier) *Service {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Service{
		store:      st,
		thresholds: thresholds,
		defaultTZ:  cfg.DefaultTimezone,
		notifier:   notifier,
		sent:       make(map[alertKey]bool),
		now:        time.Now,
	}
}

// location resolves the user's timezone, then the configured default, then UTC.
func (s *Service) location(user *models.User) *time.Location {
	for _, name := range []string{user.Timezone, s.defaultTZ} {
		if name == "" {
			continue
		}
		loc, err := time.LoadLocation(name)
		if err == nil {
			return loc
		}
		zap.L().Warn("Unknown timezone, falling back",
			zap.String("user_id", user.Id),
			zap.String("timezone", name),
			zap.Error(err))
	}
	return time.UTC
}

// Tank computes today's tank for the user.
func (s *Service) Tank(ctx context.Context, userId string) (*View, error) {
	user, err := s.store.GetUserById(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	limits, err := s.store.ListSpendingLimits(ctx, user.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to list spending limits: %w", err)
	}

	view := ComputeTank(limits, s.now(), s.location(user))
	view.UserId = user.Id
	return &view, nil
}

// Balance aggregates the user's remaining limits in naira and USD.
func (s *Service) Balance(ctx context.Context, userId string) (*models.SpendingBalance, error) {
	user, err := s.store.GetUserById(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	limits, err := s.store.ListSpendingLimits(ctx, user.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to list spending limits: %w", err)
	}

	balance := AggregateBalance(user.Id, limits)
	return &balance, nil
}

// Check evaluates the user's tank against the configured thresholds and
// notifies once per user, day and threshold.
func (s *Service) Check(ctx context.Context, userId string) (*ThresholdResult, error) {
	view, err := s.Tank(ctx, userId)
	if err != nil {
		return nil, err
	}

	result := CheckThreshold(view.PercentageUsed, s.thresholds)
	if !result.Reached {
		return &result, nil
	}

	alert := Alert{
		UserId:         view.UserId,
		Day:            view.DayStart.Format(time.DateOnly),
		Threshold:      result.ReachedThreshold,
		PercentageUsed: view.PercentageUsed.StringFixed(2),
	}
	if !s.claim(alert) {
		return &result, nil
	}

	if err := s.notifier.Notify(ctx, alert); err != nil {
		s.release(alert)
		return &result, fmt.Errorf("failed to send threshold alert: %w", err)
	}
	metrics.ThresholdAlertsTotal.WithLabelValues(fmt.Sprint(alert.Threshold)).Inc()
	return &result, nil
}

type alertKey struct {
	userId    string
	day       string
	threshold int
}

func keyFor(a Alert) alertKey {
	return alertKey{userId: a.UserId, day: a.Day, threshold: a.Threshold}
}

// claim marks the alert as sent unless it already was. Entries for days
// before yesterday (UTC) are dropped; no local day can be that old.
func (s *Service) claim(a Alert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().AddDate(0, 0, -1).Format(time.DateOnly)
	for k := range s.sent {
		if k.day < cutoff {
			delete(s.sent, k)
		}
	}

	key := keyFor(a)
	if s.sent[key] {
		return false
	}
	s.sent[key] = true
	return true
}

func (s *Service) release(a Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sent, keyFor(a))
}
