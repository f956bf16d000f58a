package encoding

import "testing"

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]uint16, 0, 200)
	in = append(in, 1, 1, 1, 2, 2, 3)
	for i := 0; i < 50; i++ {
		in = append(in, 7)
	}
	in = append(in, 9, 10, 10, 10)

	enc := EncodeRLE(in)
	out, err := DecodeRLE(enc)
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestRLE_Empty(t *testing.T) {
	out, err := DecodeRLE(EncodeRLE(nil))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("len: got %d want 0", len(out))
	}
}

func TestDecodeRLE_RejectsGarbage(t *testing.T) {
	if _, err := DecodeRLE("not base64!"); err == nil {
		t.Fatalf("expected base64 error")
	}
	// varint pair (1, 0): zero-length run.
	if _, err := DecodeRLE("AQA="); err == nil {
		t.Fatalf("expected zero run error")
	}
}

func TestRuns_Generic(t *testing.T) {
	type tile struct {
		Kind  uint8
		Solid bool
	}
	in := []tile{{1, true}, {1, true}, {2, false}, {1, true}}
	runs := EncodeRuns(in)
	if len(runs) != 3 {
		t.Fatalf("runs: got %d want 3", len(runs))
	}
	if got := RunsLen(runs); got != len(in) {
		t.Fatalf("RunsLen: got %d want %d", got, len(in))
	}
	out, err := DecodeRuns(runs)
	if err != nil {
		t.Fatalf("DecodeRuns: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %+v want %+v", i, out[i], in[i])
		}
	}
}

func TestDecodeRuns_RejectsBadLength(t *testing.T) {
	if _, err := DecodeRuns([]Run[int]{{Value: 1, Len: 2}, {Value: 3, Len: 0}}); err == nil {
		t.Fatalf("expected error for zero length run")
	}
}
