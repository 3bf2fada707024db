package runtimex

import "testing"

func TestApplyProcessAffinityEmptySetIsNoop(t *testing.T) {
	if err := ApplyProcessAffinity(AffinitySpec{}); err != nil {
		t.Fatalf("expected an empty CPU set to be a no-op, got: %v", err)
	}
}
