package kvstore

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseValue(t *testing.T) {
	t.Run("Nil", func(t *testing.T) {
		_, err := ParseValue("NIL")
		if !errors.Is(err, ErrNilValue) {
			t.Fatalf("Expected ErrNilValue, got %v", err)
		}
	})

	t.Run("Booleans", func(t *testing.T) {
		v, err := ParseValue("TRUE")
		if err != nil {
			t.Fatalf("ParseValue(TRUE) failed: %v", err)
		}
		if v.Kind() != KindBoolean || !v.Bool() {
			t.Errorf("Expected boolean true, got %+v", v)
		}

		v, err = ParseValue("FALSE")
		if err != nil {
			t.Fatalf("ParseValue(FALSE) failed: %v", err)
		}
		if v.Kind() != KindBoolean || v.Bool() {
			t.Errorf("Expected boolean false, got %+v", v)
		}
	})

	t.Run("Integers", func(t *testing.T) {
		v, err := ParseValue("42")
		if err != nil {
			t.Fatalf("ParseValue(42) failed: %v", err)
		}
		if v.Kind() != KindInteger || v.Int() != 42 {
			t.Errorf("Expected integer 42, got %+v", v)
		}

		v, err = ParseValue("0007")
		if err != nil {
			t.Fatalf("ParseValue(0007) failed: %v", err)
		}
		if v.Kind() != KindInteger || v.Int() != 7 {
			t.Errorf("Expected canonicalized integer 7, got %+v", v)
		}
	})

	t.Run("IntegerOverflowFallsBackToString", func(t *testing.T) {
		huge := "99999999999999999999999"
		v, err := ParseValue(huge)
		if err != nil {
			t.Fatalf("ParseValue(%s) failed: %v", huge, err)
		}
		if v.Kind() != KindString || v.Str() != huge {
			t.Errorf("Expected string fallback, got %+v", v)
		}
	})

	t.Run("NegativeIntegersNotRecognized", func(t *testing.T) {
		v, err := ParseValue("-42")
		if err != nil {
			t.Fatalf("ParseValue(-42) failed: %v", err)
		}
		if v.Kind() != KindString {
			t.Errorf("Expected string, got kind %d", v.Kind())
		}
	})

	t.Run("QuotedStrings", func(t *testing.T) {
		v, err := ParseValue(`"hello world"`)
		if err != nil {
			t.Fatalf("ParseValue failed: %v", err)
		}
		if v.Kind() != KindString || v.Str() != "hello world" {
			t.Errorf("Expected 'hello world', got %+v", v)
		}

		v, err = ParseValue(`"say \"hi\""`)
		if err != nil {
			t.Fatalf("ParseValue failed: %v", err)
		}
		if v.Str() != `say "hi"` {
			t.Errorf("Expected escaped quotes unescaped, got %q", v.Str())
		}

		v, err = ParseValue(`""`)
		if err != nil {
			t.Fatalf("ParseValue failed: %v", err)
		}
		if v.Str() != "" {
			t.Errorf("Expected empty string, got %q", v.Str())
		}
	})

	t.Run("UnclosedStrings", func(t *testing.T) {
		for _, text := range []string{`"unclosed`, `"`} {
			_, err := ParseValue(text)
			if !errors.Is(err, ErrUnclosedString) {
				t.Errorf("ParseValue(%s): expected ErrUnclosedString, got %v", text, err)
			}
		}
	})

	t.Run("RawStrings", func(t *testing.T) {
		v, err := ParseValue("hello")
		if err != nil {
			t.Fatalf("ParseValue failed: %v", err)
		}
		if v.Kind() != KindString || v.Str() != "hello" {
			t.Errorf("Expected raw string, got %+v", v)
		}
	})
}

func TestParseKey(t *testing.T) {
	t.Run("RejectsDigitRuns", func(t *testing.T) {
		_, err := ParseKey("123")
		var ke *InvalidKeyError
		if !errors.As(err, &ke) {
			t.Fatalf("Expected InvalidKeyError, got %v", err)
		}
		if err.Error() != "Value 123 is not valid as key" {
			t.Errorf("Unexpected message: %q", err.Error())
		}
	})

	t.Run("RejectsReservedTokens", func(t *testing.T) {
		for _, token := range []string{"TRUE", "FALSE", "NIL"} {
			if _, err := ParseKey(token); err == nil {
				t.Errorf("ParseKey(%s) should fail", token)
			}
		}
	})

	t.Run("AcceptsEverythingElse", func(t *testing.T) {
		for _, key := range []string{"my_key", "key-1", "true", "nil", "x123", "123x"} {
			got, err := ParseKey(key)
			if err != nil {
				t.Errorf("ParseKey(%s) failed: %v", key, err)
			}
			if got != key {
				t.Errorf("ParseKey(%s) = %q", key, got)
			}
		}
	})
}

func TestValueRender(t *testing.T) {
	cases := []struct {
		name  string
		value Value
		want  string
	}{
		{"Nil", Nil, "NIL"},
		{"True", BooleanValue(true), "TRUE"},
		{"False", BooleanValue(false), "FALSE"},
		{"Integer", IntegerValue(42), "42"},
		{"NegativeInteger", IntegerValue(-5), "-5"},
		{"PlainString", StringValue("hello"), "hello"},
		{"StringWithSpace", StringValue("hello world"), `"hello world"`},
		{"DigitRunString", StringValue("123"), `"123"`},
		{"ReservedString", StringValue("TRUE"), `"TRUE"`},
		{"StringWithQuote", StringValue(`say "hi"`), `"say \"hi\""`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.value.Render(); got != tc.want {
				t.Errorf("Render() = %q, want %q", got, tc.want)
			}
		})
	}
}

// Round-trip invariant: reparsing a rendered value yields the same value.
func TestValueRoundTrip(t *testing.T) {
	inputs := []string{
		"42", "TRUE", "FALSE", "hello",
		`"hello world"`, `"123"`, `"TRUE"`, `"say \"hi\""`,
		"99999999999999999999999",
	}

	for _, input := range inputs {
		v1, err := ParseValue(input)
		if err != nil {
			t.Fatalf("ParseValue(%s) failed: %v", input, err)
		}
		v2, err := ParseValue(v1.Render())
		if err != nil {
			t.Fatalf("ParseValue(Render(%s)) failed: %v", input, err)
		}
		if !v1.Equal(v2) {
			t.Errorf("Round trip changed %s: %+v != %+v", input, v1, v2)
		}
	}
}

func TestValueEqual(t *testing.T) {
	if !Nil.Equal(Nil) {
		t.Error("Nil should equal Nil")
	}
	if IntegerValue(1).Equal(IntegerValue(2)) {
		t.Error("Different integers should not be equal")
	}
	if IntegerValue(1).Equal(StringValue("1")) {
		t.Error("Integer and string should not be equal")
	}
	if !StringValue("x").Equal(StringValue("x")) {
		t.Error("Equal strings should be equal")
	}
	if BooleanValue(true).Equal(BooleanValue(false)) {
		t.Error("Different booleans should not be equal")
	}
}

func TestValueJSON(t *testing.T) {
	values := []Value{
		Nil,
		IntegerValue(42),
		IntegerValue(-1),
		BooleanValue(true),
		BooleanValue(false),
		StringValue("hello world"),
		StringValue(""),
	}

	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal(%+v) failed: %v", v, err)
		}

		var decoded Value
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", data, err)
		}

		if !v.Equal(decoded) {
			t.Errorf("JSON round trip changed %+v to %+v", v, decoded)
		}
	}

	t.Run("RejectsUnknownType", func(t *testing.T) {
		var v Value
		if err := json.Unmarshal([]byte(`{"type":"float","float":1.5}`), &v); err == nil {
			t.Error("Expected error for unknown value type")
		}
	})
}
