package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/demobank/transaction-notifier/internal/domain"
	"github.com/demobank/transaction-notifier/internal/ledger"
	"github.com/demobank/transaction-notifier/internal/promo"
	"github.com/demobank/transaction-notifier/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acctAlice = "1011226111"

type recordingApplier struct {
	credits []appliedCredit
	err     error
}

type appliedCredit struct {
	accountID   string
	amountCents int64
}

func (a *recordingApplier) ApplyCredit(ctx context.Context, accountID string, amountCents int64, reason string) error {
	if a.err != nil {
		return a.err
	}
	a.credits = append(a.credits, appliedCredit{accountID: accountID, amountCents: amountCents})
	return nil
}

func depositRule(t *testing.T, threshold, bonus int64) string {
	t.Helper()

	detail, err := promo.Rule{
		Kind:           promo.RuleDepositBonus,
		AccountID:      acctAlice,
		ThresholdCents: threshold,
		BonusCents:     bonus,
	}.Encode()
	require.NoError(t, err)

	return detail
}

func TestCheck_PromotionSatisfied(t *testing.T) {
	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	store := ledger.NewMemory()
	store.Add(domain.Transaction{ID: 1, FromAccount: "9099791699", ToAccount: acctAlice, AmountCents: 600000, Timestamp: created.Add(time.Hour)})

	promos := promo.NewMemory()
	require.NoError(t, promos.Create(context.Background(), domain.Promotion{
		Username:  "alice",
		Detail:    depositRule(t, 500000, 10000),
		CreatedAt: created,
	}))

	applier := &recordingApplier{}
	checker := NewChecker(promos, store, applier, logger.NewNop())

	report, err := checker.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.Credited)
	assert.Equal(t, 0, report.Skipped)

	require.Len(t, applier.credits, 1)
	assert.Equal(t, acctAlice, applier.credits[0].accountID)
	assert.Equal(t, int64(10000), applier.credits[0].amountCents)

	// Satisfied promotion is gone.
	_, err = promos.Get(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrPromotionNotFound)
}

func TestCheck_BelowThreshold(t *testing.T) {
	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	store := ledger.NewMemory()
	store.Add(domain.Transaction{ID: 1, FromAccount: "9099791699", ToAccount: acctAlice, AmountCents: 100000, Timestamp: created.Add(time.Hour)})

	promos := promo.NewMemory()
	require.NoError(t, promos.Create(context.Background(), domain.Promotion{
		Username:  "alice",
		Detail:    depositRule(t, 500000, 10000),
		CreatedAt: created,
	}))

	applier := &recordingApplier{}
	checker := NewChecker(promos, store, applier, logger.NewNop())

	report, err := checker.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Credited)
	assert.Empty(t, applier.credits)

	// Unsatisfied promotion stays for the next run.
	_, err = promos.Get(context.Background(), "alice")
	require.NoError(t, err)
}

func TestCheck_DepositsBeforePromotionDoNotCount(t *testing.T) {
	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	store := ledger.NewMemory()
	store.Add(domain.Transaction{ID: 1, FromAccount: "9099791699", ToAccount: acctAlice, AmountCents: 600000, Timestamp: created.Add(-time.Hour)})

	promos := promo.NewMemory()
	require.NoError(t, promos.Create(context.Background(), domain.Promotion{
		Username:  "alice",
		Detail:    depositRule(t, 500000, 10000),
		CreatedAt: created,
	}))

	applier := &recordingApplier{}
	checker := NewChecker(promos, store, applier, logger.NewNop())

	report, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Credited)
	assert.Empty(t, applier.credits)
}

func TestCheck_TransferBonus(t *testing.T) {
	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	store := ledger.NewMemory()
	store.Add(domain.Transaction{ID: 1, FromAccount: acctAlice, ToAccount: "9099791699", AmountCents: 250000, Timestamp: created.Add(time.Hour)})

	detail, err := promo.Rule{
		Kind:           promo.RuleTransferBonus,
		AccountID:      acctAlice,
		ThresholdCents: 200000,
		BonusCents:     5000,
	}.Encode()
	require.NoError(t, err)

	promos := promo.NewMemory()
	require.NoError(t, promos.Create(context.Background(), domain.Promotion{
		Username:  "alice",
		Detail:    detail,
		CreatedAt: created,
	}))

	applier := &recordingApplier{}
	checker := NewChecker(promos, store, applier, logger.NewNop())

	report, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Credited)
	require.Len(t, applier.credits, 1)
	assert.Equal(t, int64(5000), applier.credits[0].amountCents)
}

func TestCheck_FreeTextPromotionSkipped(t *testing.T) {
	promos := promo.NewMemory()
	require.NoError(t, promos.Create(context.Background(), domain.Promotion{
		Username:  "bob",
		Detail:    "Deposit $5000 and get a free toaster",
		CreatedAt: time.Now(),
	}))

	applier := &recordingApplier{}
	checker := NewChecker(promos, ledger.NewMemory(), applier, logger.NewNop())

	report, err := checker.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, applier.credits)

	// Skipped promotions are left alone.
	_, err = promos.Get(context.Background(), "bob")
	require.NoError(t, err)
}

func TestCheck_CreditFailureKeepsPromotion(t *testing.T) {
	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	store := ledger.NewMemory()
	store.Add(domain.Transaction{ID: 1, FromAccount: "9099791699", ToAccount: acctAlice, AmountCents: 600000, Timestamp: created.Add(time.Hour)})

	promos := promo.NewMemory()
	require.NoError(t, promos.Create(context.Background(), domain.Promotion{
		Username:  "alice",
		Detail:    depositRule(t, 500000, 10000),
		CreatedAt: created,
	}))

	applier := &recordingApplier{err: errors.New("bank api down")}
	checker := NewChecker(promos, store, applier, logger.NewNop())

	report, err := checker.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Credited)
	assert.Equal(t, 1, report.Skipped)

	// Promotion survives so the next run retries the credit.
	_, err = promos.Get(context.Background(), "alice")
	require.NoError(t, err)
}

func TestReport_Summary(t *testing.T) {
	report := Report{
		Evaluated: 2,
		Credited:  1,
		Skipped:   1,
		Outcomes: []Outcome{
			{Username: "alice", AccountID: acctAlice, Eligible: true, Rule: promo.Rule{BonusCents: 10000}},
			{Username: "bob", Skipped: true},
		},
	}

	summary := report.Summary()
	assert.Contains(t, summary, "evaluated 2 promotions")
	assert.Contains(t, summary, "alice: credited 10000 cents")
	assert.Contains(t, summary, "bob: skipped")
}
