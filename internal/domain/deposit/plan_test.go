package deposit

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDueUnit(t *testing.T) {
	tests := []struct {
		in   string
		want DueUnit
		ok   bool
	}{
		{"day", DueUnitDay, true},
		{"Days", DueUnitDay, true},
		{"Month(s)", DueUnitMonth, true},
		{" weeks ", DueUnitWeek, true},
		{"year", DueUnitYear, true},
		{"fortnight", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDueUnit(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDueRule_Next(t *testing.T) {
	prev := time.Date(2026, 1, 31, 15, 45, 0, 0, time.UTC)

	t.Run("relative offsets start at the beginning of the day", func(t *testing.T) {
		assert.Equal(t, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), After(3, DueUnitDay).Next(prev))
		assert.Equal(t, time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), After(2, DueUnitWeek).Next(prev))
		assert.Equal(t, time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC), After(1, DueUnitYear).Next(prev))
		assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), After(0, DueUnitDay).Next(prev))
	})

	t.Run("month overflow normalizes", func(t *testing.T) {
		assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), After(1, DueUnitMonth).Next(prev))
	})

	t.Run("plural units are accepted", func(t *testing.T) {
		assert.Equal(t, time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC), After(1, DueUnit("weeks")).Next(prev))
	})

	t.Run("absolute dates ignore prev", func(t *testing.T) {
		fixed := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, fixed, OnDate(fixed).Next(prev))
		assert.Equal(t, prev, OnDate(time.Time{}).Next(prev))
	})

	t.Run("unknown rule keeps prev", func(t *testing.T) {
		assert.Equal(t, prev, DueRule{Kind: "later"}.Next(prev))
	})
}

func TestNewPaymentPlan(t *testing.T) {
	t.Run("valid plan", func(t *testing.T) {
		plan, err := NewPaymentPlan(testTenantID, "  Layaway  ", dec("25"), []PlanInstallment{
			{Percentage: dec("25"), Due: After(1, DueUnitMonth)},
			{Percentage: dec("50"), Due: After(2, DueUnitMonth)},
		})
		require.NoError(t, err)
		assert.Equal(t, "Layaway", plan.Name)
		assert.True(t, plan.TotalPercentage().Equal(dec("100")))
		require.Len(t, plan.GetDomainEvents(), 1)
		assert.Equal(t, EventTypePaymentPlanSaved, plan.GetDomainEvents()[0].EventType())
	})

	t.Run("invalid plans", func(t *testing.T) {
		cases := map[string]struct {
			name         string
			deposit      string
			installments []PlanInstallment
		}{
			"empty name":        {"", "10", nil},
			"negative deposit":  {"x", "-1", nil},
			"deposit above 100": {"x", "101", nil},
			"negative share":    {"x", "10", []PlanInstallment{{Percentage: dec("-5"), Due: After(1, DueUnitDay)}}},
			"bad unit":          {"x", "10", []PlanInstallment{{Percentage: dec("5"), Due: After(1, "fortnight")}}},
			"missing date":      {"x", "10", []PlanInstallment{{Percentage: dec("5"), Due: OnDate(time.Time{})}}},
		}
		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := NewPaymentPlan(testTenantID, tc.name, dec(tc.deposit), tc.installments)
				require.Error(t, err)
				var de *shared.DomainError
				assert.True(t, errors.As(err, &de))
			})
		}
	})
}

func TestPaymentPlan_Update(t *testing.T) {
	plan, err := NewPaymentPlan(testTenantID, "Layaway", dec("25"), nil)
	require.NoError(t, err)
	plan.ClearDomainEvents()

	err = plan.Update("", "desc", dec("10"), nil)
	require.Error(t, err)
	assert.Equal(t, "Layaway", plan.Name)
	assert.Empty(t, plan.GetDomainEvents())

	require.NoError(t, plan.Update("Layaway 2", "desc", dec("10"), nil))
	assert.Equal(t, "Layaway 2", plan.Name)
	assert.True(t, plan.DepositPercentage.Equal(dec("10")))
	assert.Len(t, plan.GetDomainEvents(), 1)
}

func TestSettings_Validate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.Amount = dec("120")
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	s.AmountType = AmountTypePaymentPlan
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	s.Structure = "tree"
	assert.Error(t, s.Validate())
}
