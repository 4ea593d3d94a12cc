package buffer

import "testing"

func TestNewZeroFilled(t *testing.T) {
	f, err := New(8, 2)
	if err != nil {
		t.Fatal(err)
	}
	if f.FrameCount() != 8 {
		t.Fatalf("FrameCount() = %d, want 8", f.FrameCount())
	}
	if len(f.Samples()) != 16 {
		t.Fatalf("len(Samples()) = %d, want 16", len(f.Samples()))
	}
	for i, v := range f.Samples() {
		if v != 0 {
			t.Fatalf("Samples()[%d] = %v, want 0", i, v)
		}
	}
}

func TestNewRejectsChannels(t *testing.T) {
	if _, err := New(4, 0); err == nil {
		t.Fatal("expected error for zero channels")
	}
	if _, err := FromInterleaved(nil, -1); err == nil {
		t.Fatal("expected error for negative channels")
	}
}

func TestFromInterleavedSharesMemory(t *testing.T) {
	s := []float32{1, 2, 3, 4, 5}
	f, err := FromInterleaved(s, 2)
	if err != nil {
		t.Fatal(err)
	}
	if f.FrameCount() != 2 {
		t.Fatalf("FrameCount() = %d, want 2 (partial frame ignored)", f.FrameCount())
	}
	f.Frame(1)[0] = 99
	if s[2] != 99 {
		t.Fatal("FromInterleaved should share underlying memory")
	}
}

func TestSliceAndChannel(t *testing.T) {
	f, _ := FromInterleaved([]float32{0, 10, 1, 11, 2, 12, 3, 13}, 2)

	right := f.Slice(1, 3).Channel(1, nil)
	if len(right) != 2 || right[0] != 11 || right[1] != 12 {
		t.Fatalf("Channel(1) = %v, want [11 12]", right)
	}
}

func TestCopyIsDeep(t *testing.T) {
	f, _ := FromInterleaved([]float32{1, 2}, 1)
	c := f.Copy()
	c.Samples()[0] = 5
	if f.Samples()[0] != 1 {
		t.Fatal("Copy should not share memory")
	}
	c.Zero()
	if c.Samples()[1] != 0 {
		t.Fatal("Zero did not clear samples")
	}
}

func TestFrameCapacity(t *testing.T) {
	if got := FrameCapacity(9, 2); got != 4 {
		t.Fatalf("FrameCapacity(9, 2) = %d, want 4", got)
	}
	if got := FrameCapacity(9, 0); got != 0 {
		t.Fatalf("FrameCapacity(9, 0) = %d, want 0", got)
	}
}
