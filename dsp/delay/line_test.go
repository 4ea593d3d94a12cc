package delay

import (
	"math"
	"testing"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestNewValidation(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for size=0")
	}

	if _, err := New(-1); err == nil {
		t.Fatal("expected error for size=-1")
	}

	if _, err := ForMaxDelay(math.NaN()); err == nil {
		t.Fatal("expected error for NaN max delay")
	}
}

func TestForMaxDelayCoversRange(t *testing.T) {
	d, err := ForMaxDelay(480.5)
	if err != nil {
		t.Fatal(err)
	}

	if d.MaxDelay() < 481 {
		t.Fatalf("MaxDelay = %v, want >= 481", d.MaxDelay())
	}
}

func TestReadWrite(t *testing.T) {
	d, err := New(8)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 8; i++ {
		d.Write(float64(i))
	}
	// delay=1 => most recently written (7)
	if got := d.Read(1); got != 7 {
		t.Fatalf("got %v want 7", got)
	}
	if got := d.Read(3); got != 5 {
		t.Fatalf("got %v want 5", got)
	}
}

func TestReadWraparound(t *testing.T) {
	d, err := New(4)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		d.Write(float64(i))
	}
	if got := d.Read(1); got != 9 {
		t.Fatalf("got %v want 9", got)
	}
}

func TestReset(t *testing.T) {
	d, err := New(4)
	if err != nil {
		t.Fatal(err)
	}

	d.Write(1)
	d.Write(2)
	d.Reset()

	for i := 0; i < 4; i++ {
		if got := d.Read(i); got != 0 {
			t.Fatalf("after reset Read(%d): got %v want 0", i, got)
		}
	}
}

func TestReadFractionalLinearRamp(t *testing.T) {
	d, err := New(16)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < d.Len(); i++ {
		d.Write(float64(i))
	}

	if got := d.ReadFractional(3.5); !approxEqual(got, 12.5, 1e-10) {
		t.Fatalf("got %v want 12.5", got)
	}
}

func TestReadFractionalClampsRange(t *testing.T) {
	d, err := New(8)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 8; i++ {
		d.Write(float64(i + 1))
	}

	for _, delay := range []float64{-1, 1e9} {
		got := d.ReadFractional(delay)
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Fatalf("delay %v produced %v", delay, got)
		}
	}
}

func TestProcessIntegerDelay(t *testing.T) {
	d, err := New(16)
	if err != nil {
		t.Fatal(err)
	}

	const delay = 5
	for i := 0; i < 12; i++ {
		x := 0.0
		if i == 0 {
			x = 1
		}
		y := d.Process(x, delay)
		want := 0.0
		if i == delay {
			want = 1
		}
		if !approxEqual(y, want, 1e-12) {
			t.Fatalf("sample %d: got %v want %v", i, y, want)
		}
	}
}

func TestProcessZeroDelayPassesThrough(t *testing.T) {
	d, err := New(4)
	if err != nil {
		t.Fatal(err)
	}

	if got := d.Process(0.75, 0); got != 0.75 {
		t.Fatalf("got %v want 0.75", got)
	}
}

func TestHermite(t *testing.T) {
	for _, tc := range []struct{ t, want float64 }{{0, 0}, {0.25, 0.25}, {0.5, 0.5}, {1, 1}} {
		if got := hermite(tc.t, -1, 0, 1, 2); !approxEqual(got, tc.want, 1e-12) {
			t.Fatalf("ramp t=%v: got %v want %v", tc.t, got, tc.want)
		}
	}
	if got := hermite(0, 3, 7, -2, 5); got != 7 {
		t.Fatalf("t=0: got %v want 7", got)
	}
	if got := hermite(1, 3, 7, -2, 5); got != -2 {
		t.Fatalf("t=1: got %v want -2", got)
	}
}

func BenchmarkReadFractional(b *testing.B) {
	d, _ := New(1024)
	for i := 0; i < d.Len(); i++ {
		d.Write(float64(i))
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		d.ReadFractional(100.37)
	}
}
