package normalize

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var jsonNull = []byte("null")

// rawValue keeps the undecoded JSON of a field so coercion happens in one
// place and a single bad value never fails the whole payload.
type rawValue struct {
	raw json.RawMessage
}

func (v *rawValue) UnmarshalJSON(b []byte) error {
	v.raw = append(v.raw[:0], b...)
	return nil
}

// Present reports whether the field appeared with a non-null value.
func (v rawValue) Present() bool {
	return len(v.raw) > 0 && !bytes.Equal(bytes.TrimSpace(v.raw), jsonNull)
}

// Text is a string-typed field.
type Text struct{ rawValue }

// String returns the value when the field is a JSON string.
func (t Text) String() (string, bool) {
	if !t.Present() {
		return "", false
	}
	var s string
	if err := json.Unmarshal(t.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Num is a numeric field. JSON numbers and numeric strings both coerce.
type Num struct{ rawValue }

// Float coerces the value. Callers check Present first; an absent value is an error.
func (n Num) Float() (float64, error) {
	if !n.Present() {
		return 0, fmt.Errorf("missing")
	}
	raw := bytes.TrimSpace(n.raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		raw = []byte(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("not numeric: %s", string(n.raw))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not finite: %s", string(n.raw))
	}
	return f, nil
}

// Int coerces the value and requires it to be integral.
func (n Num) Int() (int64, error) {
	f, err := n.Float()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %s", string(n.raw))
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("out of range: %s", string(n.raw))
	}
	return int64(f), nil
}

// NullFloat maps absent to NULL. A present, uncoercible value is an error.
func (n Num) NullFloat() (sql.NullFloat64, error) {
	if !n.Present() {
		return sql.NullFloat64{}, nil
	}
	f, err := n.Float()
	if err != nil {
		return sql.NullFloat64{}, err
	}
	return sql.NullFloat64{Float64: f, Valid: true}, nil
}

// NullInt maps absent to NULL. A present, uncoercible value is an error.
func (n Num) NullInt() (sql.NullInt64, error) {
	if !n.Present() {
		return sql.NullInt64{}, nil
	}
	i, err := n.Int()
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: i, Valid: true}, nil
}

// Flag is a boolean field. Absent means false; "true"/"false" strings coerce.
type Flag struct{ rawValue }

// Bool coerces the value. ok is false for a present value of another type.
func (f Flag) Bool() (value bool, ok bool) {
	if !f.Present() {
		return false, true
	}
	var b bool
	if err := json.Unmarshal(f.raw, &b); err == nil {
		return b, true
	}
	var s string
	if err := json.Unmarshal(f.raw, &s); err == nil {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return parsed, true
		}
	}
	return false, false
}
