package ci

import "testing"

func TestTravisStopIsNoop(t *testing.T) {
	d := NewTravisDriver("tok")
	if err := d.Stop([]string{"anything"}); err != nil {
		t.Fatalf("Stop() error = %v, want nil", err)
	}
}
