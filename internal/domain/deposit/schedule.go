package deposit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// EntryType tags the variant of a schedule entry
type EntryType string

const (
	EntryTypeDeposit        EntryType = "deposit"
	EntryTypePartialPayment EntryType = "partial_payment"
	EntryTypeSecondPayment  EntryType = "second_payment"
)

// IsValid checks if the entry type is one of the known variants
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeDeposit, EntryTypePartialPayment, EntryTypeSecondPayment:
		return true
	}
	return false
}

// EntryKey identifies an entry within a schedule: "deposit", "unlimited"
// or a Unix timestamp of the due date
type EntryKey string

const (
	KeyDeposit   EntryKey = "deposit"
	KeyUnlimited EntryKey = "unlimited"
)

// KeyForDueDate returns the key of an installment due at t
func KeyForDueDate(t time.Time) EntryKey {
	return EntryKey(strconv.FormatInt(t.Unix(), 10))
}

// Timestamp returns the due date for dated keys
func (k EntryKey) Timestamp() (time.Time, bool) {
	n, err := strconv.ParseInt(string(k), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(n, 0).UTC(), true
}

// IsDated reports whether the key carries a due date
func (k EntryKey) IsDated() bool {
	_, ok := k.Timestamp()
	return ok
}

// Breakdown itemizes an amount; it is carried by the deposit entry
type Breakdown struct {
	CartItems     decimal.Decimal `json:"cart_items"`
	Taxes         decimal.Decimal `json:"taxes"`
	ShippingTaxes decimal.Decimal `json:"shipping_taxes"`
	Shipping      decimal.Decimal `json:"shipping"`
	Discount      decimal.Decimal `json:"discount"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	DiscountTax   decimal.Decimal `json:"discount_tax"`
}

// ScheduleEntry is one line of a payment schedule
type ScheduleEntry struct {
	Key       EntryKey
	ID        string // materialized child order ID, empty until created
	Type      EntryType
	Title     string
	Total     decimal.Decimal
	Breakdown *Breakdown
}

// NewDepositEntry builds the upfront deposit entry
func NewDepositEntry(total decimal.Decimal, breakdown *Breakdown) ScheduleEntry {
	return ScheduleEntry{
		Key:       KeyDeposit,
		Type:      EntryTypeDeposit,
		Title:     "Deposit",
		Total:     total,
		Breakdown: breakdown,
	}
}

// NewSecondPaymentEntry builds the remaining balance entry with no due date
func NewSecondPaymentEntry(total decimal.Decimal) ScheduleEntry {
	return ScheduleEntry{
		Key:   KeyUnlimited,
		Type:  EntryTypeSecondPayment,
		Total: total,
	}
}

// NewPartialPaymentEntry builds a dated installment
func NewPartialPaymentEntry(due time.Time, total decimal.Decimal) ScheduleEntry {
	return ScheduleEntry{
		Key:   KeyForDueDate(due),
		Type:  EntryTypePartialPayment,
		Total: total,
	}
}

// IsMaterialized reports whether a child order was created for the entry
func (e ScheduleEntry) IsMaterialized() bool {
	return e.ID != ""
}

// DueDate returns the due date of dated entries
func (e ScheduleEntry) DueDate() (time.Time, bool) {
	return e.Key.Timestamp()
}

type entryJSON struct {
	ID            string           `json:"id"`
	Title         string           `json:"title,omitempty"`
	Type          EntryType        `json:"type"`
	Total         decimal.Decimal  `json:"total"`
	Taxes         *decimal.Decimal `json:"taxes,omitempty"`
	CartItems     *decimal.Decimal `json:"cart_items,omitempty"`
	Shipping      *decimal.Decimal `json:"shipping,omitempty"`
	ShippingTaxes *decimal.Decimal `json:"shipping_taxes,omitempty"`
	Discount      *decimal.Decimal `json:"discount,omitempty"`
	DiscountTotal *decimal.Decimal `json:"discount_total,omitempty"`
	DiscountTax   *decimal.Decimal `json:"discount_tax,omitempty"`
}

// MarshalJSON encodes the entry in the flat persisted shape
func (e ScheduleEntry) MarshalJSON() ([]byte, error) {
	out := entryJSON{
		ID:    e.ID,
		Title: e.Title,
		Type:  e.Type,
		Total: e.Total,
	}
	if b := e.Breakdown; b != nil {
		out.Taxes = &b.Taxes
		out.CartItems = &b.CartItems
		out.Shipping = &b.Shipping
		out.Discount = &b.Discount
		out.DiscountTotal = &b.DiscountTotal
		out.DiscountTax = &b.DiscountTax
		if !b.ShippingTaxes.IsZero() {
			out.ShippingTaxes = &b.ShippingTaxes
		}
	}
	return json.Marshal(out)
}

// PaymentSchedule is an ordered set of entries with unique keys.
// Mutators never share backing arrays with earlier copies.
type PaymentSchedule struct {
	entries []ScheduleEntry
}

// NewPaymentSchedule builds a schedule, merging entries that share a key
func NewPaymentSchedule(entries ...ScheduleEntry) PaymentSchedule {
	var s PaymentSchedule
	for _, e := range entries {
		s = s.Add(e)
	}
	return s
}

// Entries returns a copy of the entries in schedule order
func (s PaymentSchedule) Entries() []ScheduleEntry {
	out := make([]ScheduleEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s PaymentSchedule) Len() int      { return len(s.entries) }
func (s PaymentSchedule) IsEmpty() bool { return len(s.entries) == 0 }

// Entry looks an entry up by key
func (s PaymentSchedule) Entry(key EntryKey) (ScheduleEntry, bool) {
	if i := s.indexOf(key); i >= 0 {
		return s.entries[i], true
	}
	return ScheduleEntry{}, false
}

// FirstOfType returns the first entry with the given type
func (s PaymentSchedule) FirstOfType(t EntryType) (ScheduleEntry, bool) {
	for _, e := range s.entries {
		if e.Type == t {
			return e, true
		}
	}
	return ScheduleEntry{}, false
}

// Add appends an entry. An entry whose key is already present is merged
// into the existing one by summing totals, so no amount is lost when two
// installments fall on the same due date.
func (s PaymentSchedule) Add(e ScheduleEntry) PaymentSchedule {
	out := s.Entries()
	if i := s.indexOf(e.Key); i >= 0 {
		out[i].Total = out[i].Total.Add(e.Total)
		return PaymentSchedule{entries: out}
	}
	return PaymentSchedule{entries: append(out, e)}
}

// Put inserts or replaces the entry with the same key, keeping its position
func (s PaymentSchedule) Put(e ScheduleEntry) PaymentSchedule {
	out := s.Entries()
	if i := s.indexOf(e.Key); i >= 0 {
		out[i] = e
		return PaymentSchedule{entries: out}
	}
	return PaymentSchedule{entries: append(out, e)}
}

// Prepend puts e first, dropping any existing entry with the same key
func (s PaymentSchedule) Prepend(e ScheduleEntry) PaymentSchedule {
	out := make([]ScheduleEntry, 0, len(s.entries)+1)
	out = append(out, e)
	for _, existing := range s.entries {
		if existing.Key != e.Key {
			out = append(out, existing)
		}
	}
	return PaymentSchedule{entries: out}
}

// SortByDueDate orders dated entries chronologically. The deposit entry
// stays first and undated entries keep their relative order after it.
func (s PaymentSchedule) SortByDueDate() PaymentSchedule {
	out := s.Entries()
	rank := func(e ScheduleEntry) int {
		switch {
		case e.Key == KeyDeposit:
			return 0
		case e.Key.IsDated():
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		if ri == 1 {
			ti, _ := out[i].Key.Timestamp()
			tj, _ := out[j].Key.Timestamp()
			return ti.Before(tj)
		}
		return false
	})
	return PaymentSchedule{entries: out}
}

// Total sums every entry
func (s PaymentSchedule) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range s.entries {
		sum = sum.Add(e.Total)
	}
	return sum
}

// RemainingTotal sums the entries still owed after the deposit
func (s PaymentSchedule) RemainingTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range s.entries {
		if e.Type != EntryTypeDeposit {
			sum = sum.Add(e.Total)
		}
	}
	return sum
}

// HasAnyID reports whether any entry was already materialized
func (s PaymentSchedule) HasAnyID() bool {
	for _, e := range s.entries {
		if e.IsMaterialized() {
			return true
		}
	}
	return false
}

// AssignID records the child order created for key. IDs never change once set.
func (s PaymentSchedule) AssignID(key EntryKey, id string) (PaymentSchedule, error) {
	i := s.indexOf(key)
	if i < 0 {
		return s, shared.NewDomainError("SCHEDULE_ENTRY_NOT_FOUND", fmt.Sprintf("schedule has no entry %q", key))
	}
	current := s.entries[i].ID
	if current == id {
		return s, nil
	}
	if current != "" {
		return s, shared.NewDomainError("SCHEDULE_ENTRY_ID_IMMUTABLE", fmt.Sprintf("schedule entry %q already bound to %s", key, current))
	}
	out := s.Entries()
	out[i].ID = id
	return PaymentSchedule{entries: out}, nil
}

func (s PaymentSchedule) indexOf(key EntryKey) int {
	for i, e := range s.entries {
		if e.Key == key {
			return i
		}
	}
	return -1
}

// MarshalJSON encodes the schedule as an object keyed by entry key,
// preserving schedule order
func (s PaymentSchedule) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(e.Key))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the keyed-object form. Missing fields are filled
// the same way RepairLegacy fills them; a non-object document is an error.
func (s *PaymentSchedule) UnmarshalJSON(data []byte) error {
	fields, err := decodeOrderedObject(data)
	if err != nil {
		return fmt.Errorf("decode payment schedule: %w", err)
	}
	*s = scheduleFromFields(fields)
	return nil
}
