package ingest

import "testing"

func TestCancelJobRequiresTrackedJob(t *testing.T) {
	c := &Coordinator{cancelFlags: make(map[string]bool)}

	if c.CancelJob("unknown-job") {
		t.Fatal("expected CancelJob to fail for an untracked job")
	}

	c.setCancelFlag("job-1", false)
	if !c.CancelJob("job-1") {
		t.Fatal("expected CancelJob to succeed for a tracked job")
	}
	if !c.cancelFlag("job-1") {
		t.Fatal("expected cancellation flag to be set")
	}

	c.clearCancelFlag("job-1")
	if c.CancelJob("job-1") {
		t.Fatal("expected CancelJob to fail after the flag is cleared")
	}
}
