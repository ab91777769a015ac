package handshake

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// shape is one entry of the classifier's priority table. match reports
// whether the body has this shape; the first matching shape decides.
type shape struct {
	name  string
	match func(body any) (Event, bool)
}

var errTrailingData = errors.New("trailing data after JSON value")

var shapes = []shape{
	{name: "name-value", match: matchNameValue},
	{name: "legacy-height", match: matchLegacyHeight},
	{name: "legacy-result", match: matchLegacyResult},
	{name: "plain-string", match: matchPlainString},
}

// Classify turns one inbound frame message body into a resize directive, a
// terminal outcome, or nothing. Unknown statuses and unparseable transaction
// responses are failures; nothing is treated as a completed payment unless
// the provider says so explicitly.
func Classify(body json.RawMessage) Event {
	decoded, err := decode(body)
	if err != nil {
		return Event{Kind: EventIgnored, Shape: "undecodable"}
	}

	for _, s := range shapes {
		if ev, ok := s.match(decoded); ok {
			ev.Shape = s.name
			if ev.Outcome != nil {
				ev.Outcome.Raw = append(json.RawMessage(nil), body...)
			}
			return ev
		}
	}
	return Event{Kind: EventIgnored, Shape: "unknown"}
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errTrailingData
	}
	return v, nil
}

func matchNameValue(body any) (Event, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return Event{}, false
	}
	name, ok := lookupString(obj, "name")
	if !ok {
		return Event{}, false
	}
	value, ok := lookup(obj, "value")
	if !ok {
		return Event{}, false
	}

	switch {
	case strings.EqualFold(name, MessageHeight):
		return resize(value), true
	case strings.EqualFold(name, MessageTransactionResponse):
		return Event{Kind: EventOutcome, Outcome: parseTransactionResponse(value)}, true
	default:
		return Event{Kind: EventIgnored}, true
	}
}

func matchLegacyHeight(body any) (Event, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return Event{}, false
	}
	value, ok := lookup(obj, "height")
	if !ok {
		return Event{}, false
	}
	ev := resize(value)
	return ev, ev.Kind == EventResize
}

func matchLegacyResult(body any) (Event, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return Event{}, false
	}
	for _, status := range lookupAllStrings(obj, "result", "status") {
		if strings.EqualFold(status, "success") {
			return Event{Kind: EventOutcome, Outcome: successFrom(obj)}, true
		}
	}
	for _, status := range lookupAllStrings(obj, "result", "status") {
		if strings.EqualFold(status, "error") {
			return Event{Kind: EventOutcome, Outcome: failureFrom(obj, CauseProvider)}, true
		}
	}
	return Event{}, false
}

func matchPlainString(body any) (Event, bool) {
	s, ok := body.(string)
	if !ok {
		return Event{}, false
	}
	switch {
	case strings.Contains(s, "success"):
		return Event{Kind: EventOutcome, Outcome: &TransactionOutcome{Kind: OutcomeSuccess}}, true
	case strings.Contains(s, "error"):
		return Event{Kind: EventOutcome, Outcome: &TransactionOutcome{
			Kind:    OutcomeFailure,
			Message: s,
			Cause:   CauseProvider,
		}}, true
	default:
		return Event{Kind: EventIgnored}, true
	}
}

func resize(value any) Event {
	h, ok := number(value)
	if !ok || h <= 0 {
		return Event{Kind: EventIgnored}
	}
	return Event{Kind: EventResize, Height: int(math.Ceil(h))}
}

// parseTransactionResponse accepts either a JSON-encoded string or an object.
func parseTransactionResponse(value any) *TransactionOutcome {
	var obj map[string]any
	switch v := value.(type) {
	case map[string]any:
		obj = v
	case string:
		decoded, err := decode([]byte(v))
		if err != nil {
			return &TransactionOutcome{Kind: OutcomeFailure, Cause: CauseProtocolParse}
		}
		m, ok := decoded.(map[string]any)
		if !ok {
			return &TransactionOutcome{Kind: OutcomeFailure, Cause: CauseProtocolParse}
		}
		obj = m
	default:
		return &TransactionOutcome{Kind: OutcomeFailure, Cause: CauseProtocolParse}
	}

	statuses := lookupAllStrings(obj, "status", "result")
	for _, s := range statuses {
		if strings.EqualFold(s, "ok") || strings.EqualFold(s, "success") {
			return successFrom(obj)
		}
	}
	// error/failed and unrecognised statuses both end here.
	return failureFrom(obj, CauseProvider)
}

func successFrom(obj map[string]any) *TransactionOutcome {
	o := &TransactionOutcome{Kind: OutcomeSuccess}
	o.ConfirmationID, _ = lookupString(obj, "confirmation", "transactionid")
	o.TransactionID, _ = lookupString(obj, "transactionid")
	o.Amount, _ = lookupString(obj, "amount")
	if c, ok := lookupString(obj, "currency"); ok {
		if cur, err := ParseCurrency(c); err == nil {
			o.Currency = cur
		}
	}
	if ts, ok := lookupString(obj, "transactiontime"); ok {
		o.Timestamp = parseTime(ts)
	}
	o.LastDigits, _ = lookupString(obj, "lastnum")
	o.Voucher, _ = lookupString(obj, "shovar")
	return o
}

func failureFrom(obj map[string]any, cause Cause) *TransactionOutcome {
	o := &TransactionOutcome{Kind: OutcomeFailure, Cause: cause}
	o.Message, _ = lookupString(obj, "message", "error", "errormessage")
	o.ErrorCode, _ = lookupString(obj, "errorcode")
	return o
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t
		}
	}
	return time.Time{}
}

// lookup finds a key case-insensitively, trying names in order.
func lookup(obj map[string]any, names ...string) (any, bool) {
	for _, name := range names {
		if v, ok := obj[name]; ok {
			return v, true
		}
		for k, v := range obj {
			if strings.EqualFold(k, name) {
				return v, true
			}
		}
	}
	return nil, false
}

// lookupString returns the first non-empty scalar found under names.
func lookupString(obj map[string]any, names ...string) (string, bool) {
	for _, name := range names {
		v, ok := lookup(obj, name)
		if !ok {
			continue
		}
		if s, ok := scalar(v); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// lookupAllStrings collects every string value whose key matches one of names,
// so that {"Status": "...", "status": "..."} are both seen.
func lookupAllStrings(obj map[string]any, names ...string) []string {
	var out []string
	for _, name := range names {
		for k, v := range obj {
			if !strings.EqualFold(k, name) {
				continue
			}
			if s, ok := v.(string); ok {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

func number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "px"), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = t
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
