package deposit

import (
	"github.com/google/uuid"
)

// ResolveSelection returns the effective payment mode for the request.
//
// A valid explicit choice is persisted and wins. Otherwise a stored session
// choice is kept. Otherwise the configured default applies (deposit when
// forced) and is written back, so repeated calls are stable.
func ResolveSelection(cc CheckoutContext, explicit Selection) Selection {
	if explicit.IsValid() {
		if cc.Session != nil {
			cc.Session.Set(SessionKeyDepositOption, string(explicit))
		}
		return explicit
	}

	if cc.Session != nil {
		if v, ok := cc.Session.Get(SessionKeyDepositOption); ok && Selection(v).IsValid() {
			return Selection(v)
		}
	}

	mode := cc.Settings.DefaultSelection()
	if cc.Session != nil {
		cc.Session.Set(SessionKeyDepositOption, string(mode))
	}
	return mode
}

// ResolvePlan returns the payment plan to use. An explicit plan among the
// configured ones is persisted; otherwise the session's plan is kept when
// still configured; otherwise the first configured plan is used.
func ResolvePlan(cc CheckoutContext, explicit string) (uuid.UUID, bool) {
	plans := cc.Settings.PlanIDs
	if len(plans) == 0 {
		return uuid.Nil, false
	}

	if id, ok := configuredPlan(plans, explicit); ok {
		if cc.Session != nil {
			cc.Session.Set(SessionKeySelectedPlan, id.String())
		}
		return id, true
	}

	if cc.Session != nil {
		if v, ok := cc.Session.Get(SessionKeySelectedPlan); ok {
			if id, ok := configuredPlan(plans, v); ok {
				return id, true
			}
		}
	}
	return plans[0], true
}

func configuredPlan(plans []uuid.UUID, raw string) (uuid.UUID, bool) {
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	for _, p := range plans {
		if p == id {
			return id, true
		}
	}
	return uuid.Nil, false
}
