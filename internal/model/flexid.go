package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexID is an identifier that upstream sources emit inconsistently as
// a JSON number or a numeric string. It keeps the raw token and
// compares by numeric value only; 42, "42" and 42.0 are all equal.
type FlexID struct {
	raw string
}

func NewFlexID(raw string) FlexID {
	return FlexID{raw: raw}
}

func FlexIDFromInt(n int64) FlexID {
	return FlexID{raw: strconv.FormatInt(n, 10)}
}

func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		f.raw = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f.raw = s
		return nil
	}
	f.raw = string(data)
	return nil
}

func (f FlexID) MarshalJSON() ([]byte, error) {
	if n, ok := f.Float64(); ok {
		if n == float64(int64(n)) {
			return []byte(strconv.FormatInt(int64(n), 10)), nil
		}
		return []byte(strconv.FormatFloat(n, 'f', -1, 64)), nil
	}
	return []byte(strconv.Quote(f.raw)), nil
}

// Float64 converts the raw token with a standard string-to-number
// conversion. Non-numeric tokens report ok=false and never match
// anything.
func (f FlexID) Float64() (float64, bool) {
	s := strings.TrimSpace(f.raw)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (f FlexID) Int64() (int64, bool) {
	n, ok := f.Float64()
	if !ok {
		return 0, false
	}
	return int64(n), true
}

// Equal compares by numeric value after coercion of both operands.
// Raw-string equality is deliberately not used.
func (f FlexID) Equal(other FlexID) bool {
	a, aok := f.Float64()
	b, bok := other.Float64()
	return aok && bok && a == b
}

func (f FlexID) IsZero() bool {
	return strings.TrimSpace(f.raw) == ""
}

// String renders the canonical numeric form when the token is numeric,
// otherwise the raw token.
func (f FlexID) String() string {
	if n, ok := f.Float64(); ok && n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return f.raw
}
