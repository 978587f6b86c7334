package kvstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the value union.
type Kind int

const (
	KindNil Kind = iota
	KindInteger
	KindBoolean
	KindString
)

// Reserved protocol tokens. They are valid values (except NIL) but never keys.
const (
	tokenTrue  = "TRUE"
	tokenFalse = "FALSE"
	tokenNil   = "NIL"
)

// Value is a typed protocol value: Integer, Boolean, String or Nil.
// Nil may be returned by operations but is never stored.
type Value struct {
	kind    Kind
	integer int64
	boolean bool
	str     string
}

// Nil is the sentinel returned for absent keys.
var Nil = Value{kind: KindNil}

// IntegerValue wraps an int64 as a protocol Integer.
func IntegerValue(n int64) Value {
	return Value{kind: KindInteger, integer: n}
}

// BooleanValue wraps a bool as a protocol Boolean.
func BooleanValue(b bool) Value {
	return Value{kind: KindBoolean, boolean: b}
}

// StringValue wraps a string as a protocol String.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// Kind returns the discriminator of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether the value is the Nil sentinel.
func (v Value) IsNil() bool { return v.kind == KindNil }

// Int returns the integer payload. Valid only for KindInteger.
func (v Value) Int() int64 { return v.integer }

// Bool returns the boolean payload. Valid only for KindBoolean.
func (v Value) Bool() bool { return v.boolean }

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.str }

// Equal reports whether two values have the same kind and payload.
// This is the equality used for commit-time read-set validation.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.integer == other.integer
	case KindBoolean:
		return v.boolean == other.boolean
	case KindString:
		return v.str == other.str
	default:
		return true
	}
}

// ParseValue parses the value token of a SET command. Rules, in order:
// NIL is rejected; TRUE/FALSE become booleans; a run of decimal digits
// becomes an integer; a leading double quote starts a quoted string that
// must also end with a double quote (the outer quotes are stripped and
// \" unescaped); anything else is a raw string.
func ParseValue(text string) (Value, error) {
	switch text {
	case tokenNil:
		return Nil, ErrNilValue
	case tokenTrue:
		return BooleanValue(true), nil
	case tokenFalse:
		return BooleanValue(false), nil
	}

	if isDigitRun(text) {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			// Digit run outside the int64 range: keep the text as a string.
			// The formatter quotes digit-run strings, so round-trips hold.
			return StringValue(text), nil
		}
		return IntegerValue(n), nil
	}

	if strings.HasPrefix(text, `"`) {
		if len(text) >= 2 && strings.HasSuffix(text, `"`) {
			inner := text[1 : len(text)-1]
			return StringValue(strings.ReplaceAll(inner, `\"`, `"`)), nil
		}
		return Nil, ErrUnclosedString
	}

	return StringValue(text), nil
}

// ParseKey validates a key token. Keys must not be runs of decimal digits
// and must not collide with the reserved tokens TRUE, FALSE and NIL.
func ParseKey(text string) (string, error) {
	if isDigitRun(text) || text == tokenTrue || text == tokenFalse || text == tokenNil {
		return "", &InvalidKeyError{Token: text}
	}
	return text, nil
}

// Render produces the wire form of the value. Strings are quoted when they
// could otherwise be read back as a different type: they contain a space,
// look like an integer, collide with a reserved token, or contain a quote.
func (v Value) Render() string {
	switch v.kind {
	case KindNil:
		return tokenNil
	case KindBoolean:
		if v.boolean {
			return tokenTrue
		}
		return tokenFalse
	case KindInteger:
		return strconv.FormatInt(v.integer, 10)
	default:
		if needsQuoting(v.str) {
			return quoteString(v.str)
		}
		return v.str
	}
}

func needsQuoting(s string) bool {
	return strings.Contains(s, " ") ||
		strings.Contains(s, `"`) ||
		isDigitRun(s) ||
		s == tokenTrue || s == tokenFalse || s == tokenNil
}

func quoteString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func isDigitRun(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// valueJSON is the self-describing on-disk form of a Value.
type valueJSON struct {
	Type    string  `json:"type"`
	Integer *int64  `json:"integer,omitempty"`
	Boolean *bool   `json:"boolean,omitempty"`
	String  *string `json:"string,omitempty"`
}

// MarshalJSON encodes the value in its self-describing persisted form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNil:
		return json.Marshal(valueJSON{Type: "nil"})
	case KindInteger:
		n := v.integer
		return json.Marshal(valueJSON{Type: "integer", Integer: &n})
	case KindBoolean:
		b := v.boolean
		return json.Marshal(valueJSON{Type: "boolean", Boolean: &b})
	case KindString:
		s := v.str
		return json.Marshal(valueJSON{Type: "string", String: &s})
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.kind)
	}
}

// UnmarshalJSON decodes the persisted form written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw valueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case "nil":
		*v = Nil
	case "integer":
		if raw.Integer == nil {
			return fmt.Errorf("integer value missing payload")
		}
		*v = IntegerValue(*raw.Integer)
	case "boolean":
		if raw.Boolean == nil {
			return fmt.Errorf("boolean value missing payload")
		}
		*v = BooleanValue(*raw.Boolean)
	case "string":
		if raw.String == nil {
			return fmt.Errorf("string value missing payload")
		}
		*v = StringValue(*raw.String)
	default:
		return fmt.Errorf("unknown value type %q", raw.Type)
	}
	return nil
}
