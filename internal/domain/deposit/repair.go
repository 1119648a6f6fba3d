package deposit

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RepairLegacy decodes a persisted schedule blob written by any earlier
// version and normalizes it. It never fails: unreadable documents yield an
// empty schedule and malformed entries are dropped.
//
// Accepted shapes are an object keyed by entry key, or an array of entry
// objects (keyed by their "key" field when present, by position otherwise).
func RepairLegacy(raw []byte) PaymentSchedule {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return PaymentSchedule{}
	}

	var fields []keyedRaw
	var err error
	switch raw[0] {
	case '{':
		fields, err = decodeOrderedObject(raw)
	case '[':
		fields, err = decodeArray(raw)
	default:
		return PaymentSchedule{}
	}
	if err != nil {
		return PaymentSchedule{}
	}
	return Repair(scheduleFromFields(fields))
}

// Repair normalizes a typed schedule: unknown types are inferred from the
// key and negative totals are clamped to zero. Repair(Repair(s)) == Repair(s).
func Repair(s PaymentSchedule) PaymentSchedule {
	out := PaymentSchedule{}
	for _, e := range s.entries {
		if !e.Type.IsValid() {
			e.Type = inferType(e.Key)
		}
		if e.Total.IsNegative() {
			e.Total = decimal.Zero
		}
		out = out.Put(e)
	}
	return out
}

// NeedsRepair reports whether a persisted blob has object entries lacking
// an "id" field
func NeedsRepair(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	var fields []keyedRaw
	var err error
	switch raw[0] {
	case '{':
		fields, err = decodeOrderedObject(raw)
	case '[':
		fields, err = decodeArray(raw)
	default:
		return false
	}
	if err != nil {
		return false
	}
	for _, f := range fields {
		obj, ok := asObject(f.raw)
		if !ok {
			continue
		}
		if _, has := obj["id"]; !has {
			return true
		}
	}
	return false
}

func inferType(key EntryKey) EntryType {
	if key == KeyDeposit {
		return EntryTypeDeposit
	}
	return EntryTypePartialPayment
}

type keyedRaw struct {
	key string
	raw json.RawMessage
}

func decodeOrderedObject(data []byte) ([]keyedRaw, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("expected JSON object")
	}

	var out []keyedRaw
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("expected object key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		out = append(out, keyedRaw{key: key, raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeArray(data []byte) ([]keyedRaw, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	out := make([]keyedRaw, 0, len(items))
	for i, item := range items {
		key := strconv.Itoa(i)
		if obj, ok := asObject(item); ok {
			if k, ok := stringField(obj, "key"); ok && k != "" {
				key = k
			}
		}
		out = append(out, keyedRaw{key: key, raw: item})
	}
	return out, nil
}

func scheduleFromFields(fields []keyedRaw) PaymentSchedule {
	s := PaymentSchedule{}
	for _, f := range fields {
		e, ok := parseEntry(EntryKey(f.key), f.raw)
		if !ok {
			continue
		}
		s = s.Put(e)
	}
	return s
}

func parseEntry(key EntryKey, raw json.RawMessage) (ScheduleEntry, bool) {
	obj, ok := asObject(raw)
	if !ok {
		return ScheduleEntry{}, false
	}

	e := ScheduleEntry{Key: key}
	e.ID, _ = stringField(obj, "id")
	e.Title, _ = stringField(obj, "title")
	if t, ok := stringField(obj, "type"); ok && EntryType(t).IsValid() {
		e.Type = EntryType(t)
	} else {
		e.Type = inferType(key)
	}
	e.Total = decimalField(obj, "total")

	breakdownKeys := []string{"cart_items", "taxes", "shipping_taxes", "shipping", "discount", "discount_total", "discount_tax"}
	for _, k := range breakdownKeys {
		if _, has := obj[k]; has {
			e.Breakdown = &Breakdown{
				CartItems:     decimalField(obj, "cart_items"),
				Taxes:         decimalField(obj, "taxes"),
				ShippingTaxes: decimalField(obj, "shipping_taxes"),
				Shipping:      decimalField(obj, "shipping"),
				Discount:      decimalField(obj, "discount"),
				DiscountTotal: decimalField(obj, "discount_total"),
				DiscountTax:   decimalField(obj, "discount_tax"),
			}
			break
		}
	}
	return e, true
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// stringField reads strings and numbers (legacy numeric order IDs) as text
func stringField(obj map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := obj[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if n.String() == "0" {
			return "", true
		}
		return n.String(), true
	}
	return "", true
}

// decimalField reads numbers and numeric strings; anything else is zero
func decimalField(obj map[string]json.RawMessage, name string) decimal.Decimal {
	raw, ok := obj[name]
	if !ok {
		return decimal.Zero
	}
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "" || text == "null" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero
	}
	return d
}
