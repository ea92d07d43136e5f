package player

import (
	"errors"
	"testing"
)

func TestSequencerAdvanceWrapsToFirstSegment(t *testing.T) {
	t.Parallel()

	seq, err := NewSequencer([]string{"part-0.webm", "part-1.webm", "part-2.webm"})
	if err != nil {
		t.Fatalf("NewSequencer: %v", err)
	}

	if idx, ref := seq.Current(); idx != 0 || ref != "part-0.webm" {
		t.Fatalf("start position mismatch: got=%d/%q want=0/part-0.webm", idx, ref)
	}

	if idx, wrapped := seq.Advance(); idx != 1 || wrapped {
		t.Fatalf("first advance: got=%d wrapped=%v want=1 wrapped=false", idx, wrapped)
	}
	if idx, wrapped := seq.Advance(); idx != 2 || wrapped {
		t.Fatalf("second advance: got=%d wrapped=%v want=2 wrapped=false", idx, wrapped)
	}

	// End of the last segment loops back to the first.
	idx, wrapped := seq.Advance()
	if idx != 0 || !wrapped {
		t.Fatalf("wrap advance: got=%d wrapped=%v want=0 wrapped=true", idx, wrapped)
	}
	if idx, ref := seq.Current(); idx != 0 || ref != "part-0.webm" {
		t.Fatalf("post-wrap position mismatch: got=%d/%q", idx, ref)
	}
}

func TestSequencerSingleSegmentLoops(t *testing.T) {
	t.Parallel()

	seq, err := NewSequencer([]string{"only.webm"})
	if err != nil {
		t.Fatalf("NewSequencer: %v", err)
	}
	if idx, wrapped := seq.Advance(); idx != 0 || !wrapped {
		t.Fatalf("advance: got=%d wrapped=%v want=0 wrapped=true", idx, wrapped)
	}
}

func TestSequencerEmptyListRejected(t *testing.T) {
	t.Parallel()

	if _, err := NewSequencer(nil); !errors.Is(err, ErrEmptyRecording) {
		t.Fatalf("error mismatch: got=%v want=%v", err, ErrEmptyRecording)
	}
}

func TestSequencerStallPinsSegment(t *testing.T) {
	t.Parallel()

	seq, err := NewSequencer([]string{"a.webm", "b.webm"})
	if err != nil {
		t.Fatalf("NewSequencer: %v", err)
	}
	seq.Advance()

	cause := errors.New("segment fetch failed")
	seq.Stall(cause)

	stalled, got := seq.Stalled()
	if !stalled || !errors.Is(got, cause) {
		t.Fatalf("stall state mismatch: stalled=%v err=%v", stalled, got)
	}

	// A stalled sequencer never moves again; the failure is not retried.
	for i := 0; i < 3; i++ {
		if idx, wrapped := seq.Advance(); idx != 1 || wrapped {
			t.Fatalf("stalled advance moved: got=%d wrapped=%v", idx, wrapped)
		}
	}
}

func TestSequencerSeekRestoresPosition(t *testing.T) {
	t.Parallel()

	seq, err := NewSequencer([]string{"a.webm", "b.webm", "c.webm"})
	if err != nil {
		t.Fatalf("NewSequencer: %v", err)
	}

	if err := seq.Seek(2); err != nil {
		t.Fatalf("Seek(2): %v", err)
	}
	if idx, ref := seq.Current(); idx != 2 || ref != "c.webm" {
		t.Fatalf("position mismatch: got=%d/%q want=2/c.webm", idx, ref)
	}

	if err := seq.Seek(3); err == nil {
		t.Fatal("Seek(3) out of range must fail")
	}
	if err := seq.Seek(-1); err == nil {
		t.Fatal("Seek(-1) must fail")
	}
}

func TestSequencerSegmentLookup(t *testing.T) {
	t.Parallel()

	seq, err := NewSequencer([]string{"a.webm", "b.webm"})
	if err != nil {
		t.Fatalf("NewSequencer: %v", err)
	}

	ref, err := seq.Segment(1)
	if err != nil || ref != "b.webm" {
		t.Fatalf("Segment(1) = %q, %v", ref, err)
	}
	if _, err := seq.Segment(2); err == nil {
		t.Fatal("Segment(2) out of range must fail")
	}
}
