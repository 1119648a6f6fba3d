package deposit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryKey(t *testing.T) {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	key := KeyForDueDate(due)

	ts, ok := key.Timestamp()
	require.True(t, ok)
	assert.True(t, ts.Equal(due))
	assert.True(t, key.IsDated())
	assert.False(t, KeyDeposit.IsDated())
	assert.False(t, KeyUnlimited.IsDated())
}

func TestPaymentSchedule_Add(t *testing.T) {
	due := testNow.AddDate(0, 1, 0)

	t.Run("merges entries sharing a due date", func(t *testing.T) {
		s := NewPaymentSchedule(
			NewPartialPaymentEntry(due, dec("10")),
			NewPartialPaymentEntry(due, dec("15")),
		)
		require.Equal(t, 1, s.Len())
		e, ok := s.Entry(KeyForDueDate(due))
		require.True(t, ok)
		assert.True(t, e.Total.Equal(dec("25")))
	})

	t.Run("does not mutate the receiver", func(t *testing.T) {
		base := NewPaymentSchedule(NewDepositEntry(dec("30"), nil))
		grown := base.Add(NewSecondPaymentEntry(dec("70")))
		assert.Equal(t, 1, base.Len())
		assert.Equal(t, 2, grown.Len())
	})
}

func TestPaymentSchedule_Prepend(t *testing.T) {
	s := NewPaymentSchedule(NewSecondPaymentEntry(dec("70")), NewDepositEntry(dec("1"), nil))
	s = s.Prepend(NewDepositEntry(dec("30"), nil))

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, KeyDeposit, entries[0].Key)
	assert.True(t, entries[0].Total.Equal(dec("30")))
	assert.Equal(t, KeyUnlimited, entries[1].Key)
}

func TestPaymentSchedule_Totals(t *testing.T) {
	s := NewPaymentSchedule(
		NewDepositEntry(dec("30"), nil),
		NewPartialPaymentEntry(testNow, dec("20")),
		NewSecondPaymentEntry(dec("50")),
	)
	assert.True(t, s.Total().Equal(dec("100")))
	assert.True(t, s.RemainingTotal().Equal(dec("70")))

	first, ok := s.FirstOfType(EntryTypeDeposit)
	require.True(t, ok)
	assert.Equal(t, KeyDeposit, first.Key)
}

func TestPaymentSchedule_AssignID(t *testing.T) {
	s := NewPaymentSchedule(NewDepositEntry(dec("30"), nil), NewSecondPaymentEntry(dec("70")))
	assert.False(t, s.HasAnyID())

	s, err := s.AssignID(KeyDeposit, "child-1")
	require.NoError(t, err)
	assert.True(t, s.HasAnyID())

	t.Run("same id is accepted again", func(t *testing.T) {
		_, err := s.AssignID(KeyDeposit, "child-1")
		assert.NoError(t, err)
	})

	t.Run("ids never change", func(t *testing.T) {
		_, err := s.AssignID(KeyDeposit, "child-2")
		assert.Error(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := s.AssignID("nope", "x")
		assert.Error(t, err)
	})
}

func TestPaymentSchedule_SortByDueDate(t *testing.T) {
	later := testNow.AddDate(0, 2, 0)
	sooner := testNow.AddDate(0, 1, 0)
	s := NewPaymentSchedule(
		NewPartialPaymentEntry(later, dec("1")),
		NewDepositEntry(dec("1"), nil),
		NewPartialPaymentEntry(sooner, dec("1")),
	).SortByDueDate()

	entries := s.Entries()
	assert.Equal(t, KeyDeposit, entries[0].Key)
	assert.Equal(t, KeyForDueDate(sooner), entries[1].Key)
	assert.Equal(t, KeyForDueDate(later), entries[2].Key)
}

func TestPaymentSchedule_JSON(t *testing.T) {
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := NewPaymentSchedule(
		NewDepositEntry(dec("40"), &Breakdown{CartItems: dec("40")}),
		NewPartialPaymentEntry(due, dec("60")),
	)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Regexp(t, `^\{"deposit":\{.*\},"1777593600":\{.*\}\}$`, string(raw))

	var back PaymentSchedule
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, 2, back.Len())
	dep, ok := back.Entry(KeyDeposit)
	require.True(t, ok)
	assert.Equal(t, EntryTypeDeposit, dep.Type)
	assert.Equal(t, "Deposit", dep.Title)
	require.NotNil(t, dep.Breakdown)
	assert.True(t, dep.Breakdown.CartItems.Equal(dec("40")))

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &back))
}
