package leave

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Balance is the canonical two-bucket balance.
type Balance struct {
	Casual int `json:"casual"`
	Sick   int `json:"sick"`
}

func (b Balance) Get(t LeaveType) int {
	if t == Sick {
		return b.Sick
	}
	return b.Casual
}

func (b Balance) Document() json.RawMessage {
	payload, _ := json.Marshal(b)
	return payload
}

// Normalize coerces a stored balance into the two-bucket form. A bare number is a legacy
// casual-only balance. Anything unreadable counts as zero.
func Normalize(raw json.RawMessage) Balance {
	value, ok := decodeBalance(raw)
	if !ok {
		return Balance{}
	}
	switch v := value.(type) {
	case map[string]any:
		casual, _ := coerceDays(v["casual"])
		sick, _ := coerceDays(v["sick"])
		return Balance{Casual: casual, Sick: sick}
	default:
		casual, _ := coerceDays(v)
		return Balance{Casual: casual}
	}
}

// IsCanonical reports whether raw already stores both buckets as non-negative integers, so a
// normalization write would change nothing.
func IsCanonical(raw json.RawMessage) bool {
	value, ok := decodeBalance(raw)
	if !ok {
		return false
	}
	doc, ok := value.(map[string]any)
	if !ok {
		return false
	}
	for _, key := range []string{string(Casual), string(Sick)} {
		num, ok := doc[key].(json.Number)
		if !ok {
			return false
		}
		n, err := strconv.ParseInt(num.String(), 10, 64)
		if err != nil || n < 0 {
			return false
		}
	}
	return true
}

func decodeBalance(raw json.RawMessage) (any, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, false
	}
	return value, true
}

func coerceDays(value any) (int, bool) {
	var f float64
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return clampDays(float64(n)), true
		}
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return clampDays(math.Trunc(f)), true
}

func clampDays(f float64) int {
	if f < 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}
