package kvstore

import "testing"

func TestNewClientID(t *testing.T) {
	id := NewClientID()
	if len(id) != 32 {
		t.Errorf("Expected 32 hex characters, got %d (%q)", len(id), id)
	}
	for _, c := range id {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			t.Errorf("Non-hex character %q in id %q", c, id)
		}
	}

	if NewClientID() == NewClientID() {
		t.Error("Consecutive ids should differ")
	}
}
