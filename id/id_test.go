package id_test

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/xraph/charter/id"
)

func TestNew(t *testing.T) {
	i := id.New()
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if v := i.UUID().Version(); v != 4 {
		t.Errorf("expected version 4, got %d", v)
	}
	if len(i.String()) != 36 {
		t.Errorf("expected canonical 36-char form, got %q", i.String())
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := id.New()
	parsed, err := id.Parse(original.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != original {
		t.Errorf("round-trip mismatch: %q != %q", parsed, original)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"garbage", "not-a-uuid"},
		{"short", "0f8fad5b-d9cb-469f-a165"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := id.Parse(tt.input); err == nil {
				t.Errorf("expected error for %q, got nil", tt.input)
			}
		})
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if !id.FromUUID(uuid.Nil).IsNil() {
		t.Error("FromUUID(uuid.Nil) should be nil")
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.New()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored != original {
		t.Errorf("mismatch: %q != %q", restored, original)
	}

	// Nil round-trip.
	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.New()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned != original {
		t.Errorf("mismatch: %q != %q", scanned, original)
	}

	raw := original.UUID()
	var fromBytes id.ID
	if scanErr := fromBytes.Scan(raw[:]); scanErr != nil {
		t.Fatalf("Scan(bytes) failed: %v", scanErr)
	}
	if fromBytes != original {
		t.Errorf("bytes mismatch: %q != %q", fromBytes, original)
	}

	// Nil round-trip.
	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value for nil ID, got %v", val)
	}

	var scanned2 id.ID
	if err := scanned2.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of nil")
	}

	if err := scanned2.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestConcurrentUniqueness(t *testing.T) {
	const workers, perWorker = 16, 500

	var (
		mu   sync.Mutex
		seen = make(map[id.ID]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]id.ID, perWorker)
			for j := range local {
				local[j] = id.New()
			}
			mu.Lock()
			for _, v := range local {
				seen[v] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d distinct IDs, got %d", workers*perWorker, len(seen))
	}
}
