package tank

import (
	"context"
	"errors"
	"testing"
	"time"

	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ticket(id, amount, remaining, rate string, created time.Time) models.SpendingLimit {
	return models.SpendingLimit{
		Id:             id,
		UserId:         "user1",
		FxRate:         d(rate),
		NairaAmount:    d(amount),
		NairaRemaining: d(remaining),
		CreatedAt:      created,
	}
}

func TestComputeTank_RolloverAndToday(t *testing.T) {
	lagos := time.FixedZone("WAT", 3600)
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, lagos)

	limits := []models.SpendingLimit{
		// 23:30 UTC on the 9th is 00:30 on the 10th in Lagos
		ticket("today-early", "500", "100", "500", time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)),
		ticket("yesterday", "800", "300", "500", time.Date(2026, 3, 9, 22, 30, 0, 0, time.UTC)),
		ticket("today", "500", "500", "500", time.Date(2026, 3, 10, 9, 0, 0, 0, lagos)),
		ticket("tomorrow", "900", "900", "500", time.Date(2026, 3, 11, 0, 1, 0, 0, lagos)),
	}

	view := ComputeTank(limits, now, lagos)

	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, lagos), view.DayStart)
	assert.True(t, view.Rollover.Equal(d("300")), view.Rollover.String())
	assert.True(t, view.TodayFaceValue.Equal(d("1000")), view.TodayFaceValue.String())
	assert.True(t, view.TotalLimit.Equal(d("1300")))
	assert.True(t, view.CurrentRemaining.Equal(d("900")))
	assert.True(t, view.Used.Equal(d("400")))
	assert.Equal(t, "30.77", view.PercentageUsed.StringFixed(2))
}

func TestComputeTank_EmptyIsZero(t *testing.T) {
	view := ComputeTank(nil, time.Now(), time.UTC)

	assert.True(t, view.TotalLimit.IsZero())
	assert.True(t, view.PercentageUsed.IsZero())
}

func TestCheckThreshold(t *testing.T) {
	tests := []struct {
		name       string
		pct        string
		thresholds []int
		reached    bool
		want       int
	}{
		{"76 hits 75", "76", DefaultThresholds, true, 75},
		{"exact boundary", "90", DefaultThresholds, true, 90},
		{"below all", "49.99", DefaultThresholds, false, 0},
		{"unsorted input", "76", []int{50, 90, 75}, true, 75},
		{"over 100", "120", DefaultThresholds, true, 90},
		{"no thresholds", "99", nil, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := CheckThreshold(d(tt.pct), tt.thresholds)
			assert.Equal(t, tt.reached, r.Reached)
			assert.Equal(t, tt.want, r.ReachedThreshold)
		})
	}
}

func TestCheckThreshold_DoesNotReorderInput(t *testing.T) {
	in := []int{50, 90, 75}
	CheckThreshold(d("80"), in)
	assert.Equal(t, []int{50, 90, 75}, in)
}

func TestAggregateBalance_PerTicketRate(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limits := []models.SpendingLimit{
		ticket("L1", "700", "0", "500", created),
		ticket("L2", "300", "100", "520", created),
		ticket("L3", "500", "500", "500", created),
		ticket("BAD", "100", "100", "0", created),
	}

	b := AggregateBalance("user1", limits)

	assert.Equal(t, "user1", b.UserId)
	assert.Equal(t, 3, b.ActiveLimits)
	assert.True(t, b.NairaRemaining.Equal(d("700")))
	assert.Equal(t, "1.1923", b.UsdRemaining.StringFixed(4))
}

type fakeReader struct {
	user   *models.User
	limits []models.SpendingLimit
}

func (f *fakeReader) GetUserById(_ context.Context, userId string) (*models.User, error) {
	if f.user == nil || f.user.Id != userId {
		return nil, store.ErrUserNotFound
	}
	return f.user, nil
}

func (f *fakeReader) ListSpendingLimits(_ context.Context, _ string) ([]models.SpendingLimit, error) {
	return f.limits, nil
}

type countingNotifier struct {
	alerts []Alert
	err    error
}

func (n *countingNotifier) Notify(_ context.Context, a Alert) error {
	if n.err != nil {
		return n.err
	}
	n.alerts = append(n.alerts, a)
	return nil
}

func newTestService(limits []models.SpendingLimit, notifier Notifier) *Service {
	reader := &fakeReader{
		user:   &models.User{Id: "user1", Timezone: "UTC"},
		limits: limits,
	}
	svc := NewService(reader, models.LedgerConfig{}, nil, notifier)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC) }
	return svc
}

func TestService_CheckNotifiesOncePerDay(t *testing.T) {
	today := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	notifier := &countingNotifier{}
	svc := newTestService([]models.SpendingLimit{ticket("L1", "1000", "240", "500", today)}, notifier)

	r, err := svc.Check(context.Background(), "user1")
	require.NoError(t, err)
	assert.True(t, r.Reached)
	assert.Equal(t, 75, r.ReachedThreshold)

	_, err = svc.Check(context.Background(), "user1")
	require.NoError(t, err)

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, Alert{UserId: "user1", Day: "2026-03-10", Threshold: 75, PercentageUsed: "76.00"}, notifier.alerts[0])

	// crossing the next threshold on the same day is a new alert
	svc.store.(*fakeReader).limits[0].NairaRemaining = d("50")
	_, err = svc.Check(context.Background(), "user1")
	require.NoError(t, err)
	require.Len(t, notifier.alerts, 2)
	assert.Equal(t, 90, notifier.alerts[1].Threshold)
}

func TestService_FailedNotificationIsRetried(t *testing.T) {
	today := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	notifier := &countingNotifier{err: errors.New("smtp down")}
	svc := newTestService([]models.SpendingLimit{ticket("L1", "1000", "400", "500", today)}, notifier)

	_, err := svc.Check(context.Background(), "user1")
	require.Error(t, err)

	notifier.err = nil
	_, err = svc.Check(context.Background(), "user1")
	require.NoError(t, err)
	assert.Len(t, notifier.alerts, 1)
}

func TestService_SentAlertsForPastDaysArePruned(t *testing.T) {
	svc := newTestService(nil, nil)

	require.True(t, svc.claim(Alert{UserId: "user1", Day: "2026-03-10", Threshold: 50}))
	require.True(t, svc.claim(Alert{UserId: "user2", Day: "2026-03-09", Threshold: 90}))
	assert.False(t, svc.claim(Alert{UserId: "user1", Day: "2026-03-10", Threshold: 50}))
	assert.Len(t, svc.sent, 2)

	svc.now = func() time.Time { return time.Date(2026, 3, 13, 6, 0, 0, 0, time.UTC) }
	require.True(t, svc.claim(Alert{UserId: "user1", Day: "2026-03-13", Threshold: 50}))
	assert.Len(t, svc.sent, 1)
	assert.True(t, svc.sent[alertKey{userId: "user1", day: "2026-03-13", threshold: 50}])
}

func TestService_UnknownUser(t *testing.T) {
	svc := newTestService(nil, nil)

	_, err := svc.Tank(context.Background(), "nobody")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestService_InvalidTimezoneFallsBackToDefault(t *testing.T) {
	reader := &fakeReader{user: &models.User{Id: "user1", Timezone: "Not/AZone"}}
	svc := NewService(reader, models.LedgerConfig{DefaultTimezone: "UTC"}, nil, nil)

	view, err := svc.Tank(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, "UTC", view.Timezone)
}
