package model

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestReactionsMapAddIsIdempotent(t *testing.T) {
	m := ReactionsMap{}
	user := uuid.New()

	if !m.Add("👍", user) {
		t.Fatal("first add should report true")
	}
	if m.Add("👍", user) {
		t.Fatal("second add of the same tuple should report false")
	}
	if len(m["👍"]) != 1 {
		t.Fatalf("expected 1 user under 👍, got %d", len(m["👍"]))
	}

	// A different emoji from the same user coexists
	if !m.Add("🎉", user) {
		t.Fatal("distinct emoji from same user should add")
	}
	if len(m) != 2 {
		t.Fatalf("expected 2 emoji keys, got %d", len(m))
	}
}

func TestReactionsMapRemoveDropsEmptyKey(t *testing.T) {
	m := ReactionsMap{}
	a, b := uuid.New(), uuid.New()
	m.Add("👍", a)
	m.Add("👍", b)

	m.Remove("👍", a)
	if len(m["👍"]) != 1 || !m["👍"].Contains(b) {
		t.Fatalf("expected only second user to remain, got %v", m["👍"])
	}

	m.Remove("👍", b)
	if _, ok := m["👍"]; ok {
		t.Fatal("empty emoji key should be dropped")
	}

	// Removing an absent tuple is a no-op
	m.Remove("👍", a)
}

func TestUUIDListContains(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	l := UUIDList{a}
	if !l.Contains(a) {
		t.Fatal("expected list to contain a")
	}
	if l.Contains(b) {
		t.Fatal("did not expect list to contain b")
	}
}

func TestJSONBRoundTrip(t *testing.T) {
	user := uuid.New()
	m := ReactionsMap{"❤️": UUIDList{user}}

	value, err := m.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	var decoded ReactionsMap
	if err := decoded.Scan(value); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if !decoded["❤️"].Contains(user) {
		t.Fatalf("round trip lost the reaction: %v", decoded)
	}
}

func TestWaveformScanFromString(t *testing.T) {
	raw, _ := json.Marshal([]float64{0.1, 0.8, 0.4})
	var w Waveform
	if err := w.Scan(string(raw)); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(w) != 3 || w[1] != 0.8 {
		t.Fatalf("unexpected waveform: %v", w)
	}
}
