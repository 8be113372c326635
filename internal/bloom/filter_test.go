package bloom

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestAddContains(t *testing.T) {
	f := NewWithEstimates(100, 0.01)

	accounts := []string{"C1231006815", "C1666544295", "M1979787155", "C840083671"}
	for _, a := range accounts {
		f.Add([]byte(a))
	}

	for _, a := range accounts {
		if !f.Contains([]byte(a)) {
			t.Errorf("added item %s reported absent", a)
		}
	}
	if f.Count() != uint64(len(accounts)) {
		t.Errorf("expected count %d, got %d", len(accounts), f.Count())
	}
}

func TestEmptyFilterContainsNothing(t *testing.T) {
	f := New(1024, 7)
	if f.Contains([]byte("C12345")) {
		t.Error("empty filter should contain nothing")
	}
	if f.FalsePositiveRate() != 0 {
		t.Errorf("empty filter FPR should be 0, got %f", f.FalsePositiveRate())
	}
}

func TestFalsePositiveRateStaysNearTarget(t *testing.T) {
	n := 10000
	f := NewWithEstimates(n, 0.01)

	for i := 0; i < n; i++ {
		f.Add([]byte(fmt.Sprintf("C%010d", i)))
	}

	// Estimated rate should be in the same order of magnitude as the target
	if fpr := f.FalsePositiveRate(); fpr > 0.05 {
		t.Errorf("estimated FPR too high: %f", fpr)
	}

	// Measure actual false positives against values never added
	falsePositives := 0
	probes := 10000
	for i := 0; i < probes; i++ {
		if f.Contains([]byte(fmt.Sprintf("M%010d", i))) {
			falsePositives++
		}
	}
	if rate := float64(falsePositives) / float64(probes); rate > 0.05 {
		t.Errorf("measured false positive rate too high: %f", rate)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := NewWithEstimates(500, 0.01)
	for i := 0; i < 500; i++ {
		f.Add([]byte(fmt.Sprintf("C%d", i)))
	}

	decoded, err := DecodeBase64(f.EncodeBase64())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.NumBits() != f.NumBits() {
		t.Errorf("numBits mismatch: %d vs %d", decoded.NumBits(), f.NumBits())
	}
	if decoded.NumHashes() != f.NumHashes() {
		t.Errorf("numHashes mismatch: %d vs %d", decoded.NumHashes(), f.NumHashes())
	}
	if decoded.Count() != f.Count() {
		t.Errorf("count mismatch: %d vs %d", decoded.Count(), f.Count())
	}
	for i := 0; i < 500; i++ {
		if !decoded.Contains([]byte(fmt.Sprintf("C%d", i))) {
			t.Fatalf("decoded filter lost item C%d", i)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeBase64("not base64!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := DecodeBase64("QUJD"); err == nil {
		t.Error("expected error for truncated data")
	}
}

func TestNoFalseNegativesProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("added items are always reported present", prop.ForAll(
		func(items []string) bool {
			f := NewWithEstimates(len(items)+1, 0.01)
			for _, it := range items {
				f.Add([]byte(it))
			}
			for _, it := range items {
				if !f.Contains([]byte(it)) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
