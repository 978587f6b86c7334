package kvstore

import (
	"errors"
	"testing"
)

func TestFormatSuccess(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		if got := FormatSuccess(OKResult()); got != "OK" {
			t.Errorf("FormatSuccess(OK) = %q", got)
		}
	})

	t.Run("SetPair", func(t *testing.T) {
		got := FormatSuccess(SetResult(Nil, IntegerValue(42)))
		if got != "NIL 42" {
			t.Errorf("FormatSuccess(set) = %q, want %q", got, "NIL 42")
		}

		got = FormatSuccess(SetResult(BooleanValue(true), BooleanValue(false)))
		if got != "TRUE FALSE" {
			t.Errorf("FormatSuccess(set) = %q, want %q", got, "TRUE FALSE")
		}

		got = FormatSuccess(SetResult(Nil, StringValue("hello world")))
		if got != `NIL "hello world"` {
			t.Errorf("FormatSuccess(set) = %q", got)
		}
	})

	t.Run("SingleValue", func(t *testing.T) {
		if got := FormatSuccess(ValueResult(Nil)); got != "NIL" {
			t.Errorf("FormatSuccess(value) = %q", got)
		}
		if got := FormatSuccess(ValueResult(StringValue("123"))); got != `"123"` {
			t.Errorf("FormatSuccess(value) = %q", got)
		}
	})
}

func TestFormatError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrInvalidCommand, `ERR "Invalid command"`},
		{ErrNilValue, `ERR "Cannot SET key to NIL"`},
		{ErrNoTransaction, `ERR "no_transaction"`},
		{&InvalidKeyError{Token: "123"}, `ERR "Value 123 is not valid as key"`},
		{&AtomicityError{Key: "atomic_key"}, `ERR "Atomicity failure (atomic_key)"`},
		{errors.New(`inner "quotes" escaped`), `ERR "inner \"quotes\" escaped"`},
	}

	for _, tc := range cases {
		if got := FormatError(tc.err); got != tc.want {
			t.Errorf("FormatError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
