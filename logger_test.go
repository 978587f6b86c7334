package kvstore

import "testing"

func TestNoOpLogger(t *testing.T) {
	logger := &NoOpLogger{}
	logger.Debug("msg", "k", "v")
	logger.Info("msg")
	logger.Warn("msg", "k", 1)
	logger.Error("msg", "error", nil)
}

func TestStdLogger(t *testing.T) {
	logger := NewStdLogger("test")
	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "count", 42)
	logger.Warn("warn message")
	logger.Error("error message", "odd", "pair", "dangling")
}

func TestToString(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, "<nil>"},
		{"s", "s"},
		{42, "42"},
		{true, "true"},
	}
	for _, tc := range cases {
		if got := toString(tc.in); got != tc.want {
			t.Errorf("toString(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
