package deposit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestResolveSelection(t *testing.T) {
	settings := checkoutSettings(AmountTypePercent, "30")

	t.Run("explicit choice wins and is stored", func(t *testing.T) {
		session := MapSession{SessionKeyDepositOption: "deposit"}
		got := ResolveSelection(CheckoutContext{Session: session, Settings: settings}, SelectionFull)
		assert.Equal(t, SelectionFull, got)
		assert.Equal(t, "full", session[SessionKeyDepositOption])
	})

	t.Run("session choice is kept", func(t *testing.T) {
		session := MapSession{SessionKeyDepositOption: "full"}
		got := ResolveSelection(CheckoutContext{Session: session, Settings: settings}, "")
		assert.Equal(t, SelectionFull, got)
	})

	t.Run("invalid explicit falls back to session", func(t *testing.T) {
		session := MapSession{SessionKeyDepositOption: "full"}
		got := ResolveSelection(CheckoutContext{Session: session, Settings: settings}, "bogus")
		assert.Equal(t, SelectionFull, got)
	})

	t.Run("default is persisted", func(t *testing.T) {
		s := settings
		s.DefaultSelected = SelectionFull
		session := MapSession{}
		got := ResolveSelection(CheckoutContext{Session: session, Settings: s}, "")
		assert.Equal(t, SelectionFull, got)
		assert.Equal(t, "full", session[SessionKeyDepositOption])

		again := ResolveSelection(CheckoutContext{Session: session, Settings: s}, "")
		assert.Equal(t, got, again)
	})

	t.Run("forced deposit overrides default", func(t *testing.T) {
		s := settings
		s.DefaultSelected = SelectionFull
		s.ForceDeposit = true
		got := ResolveSelection(CheckoutContext{Session: MapSession{}, Settings: s}, "")
		assert.Equal(t, SelectionDeposit, got)
	})

	t.Run("nil session", func(t *testing.T) {
		got := ResolveSelection(CheckoutContext{Settings: settings}, "")
		assert.Equal(t, SelectionDeposit, got)
	})
}

func TestResolvePlan(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	settings := checkoutSettings(AmountTypePaymentPlan, "0")
	settings.PlanIDs = []uuid.UUID{first, second}

	t.Run("no plans configured", func(t *testing.T) {
		_, ok := ResolvePlan(CheckoutContext{Settings: checkoutSettings(AmountTypePercent, "30")}, first.String())
		assert.False(t, ok)
	})

	t.Run("explicit configured plan is stored", func(t *testing.T) {
		session := MapSession{}
		id, ok := ResolvePlan(CheckoutContext{Session: session, Settings: settings}, second.String())
		assert.True(t, ok)
		assert.Equal(t, second, id)
		assert.Equal(t, second.String(), session[SessionKeySelectedPlan])
	})

	t.Run("unknown explicit plan is ignored", func(t *testing.T) {
		session := MapSession{SessionKeySelectedPlan: second.String()}
		id, ok := ResolvePlan(CheckoutContext{Session: session, Settings: settings}, uuid.NewString())
		assert.True(t, ok)
		assert.Equal(t, second, id)
	})

	t.Run("stale session plan falls back to first", func(t *testing.T) {
		session := MapSession{SessionKeySelectedPlan: uuid.NewString()}
		id, ok := ResolvePlan(CheckoutContext{Session: session, Settings: settings}, "")
		assert.True(t, ok)
		assert.Equal(t, first, id)
	})
}
