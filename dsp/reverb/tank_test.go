package reverb

import (
	"math"
	"testing"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", AlgorithmFreeverb, false},
		{"freeverb", AlgorithmFreeverb, false},
		{" FDN ", AlgorithmFDN, false},
		{"plate", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseAlgorithm(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewTankRejectsBadInput(t *testing.T) {
	if _, err := NewTank("spring", 48000); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
	for _, alg := range []Algorithm{AlgorithmFreeverb, AlgorithmFDN} {
		for _, sr := range []float64{0, -1, math.NaN(), math.Inf(1)} {
			if _, err := NewTank(alg, sr); err == nil {
				t.Fatalf("%s: expected error for sample rate %v", alg, sr)
			}
		}
	}
}

func TestTanksImpulseResponse(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmFreeverb, AlgorithmFDN} {
		t.Run(string(alg), func(t *testing.T) {
			tank, err := NewTank(alg, 48000)
			if err != nil {
				t.Fatal(err)
			}

			const n = 48000
			var early, late, diff float64
			for i := range n {
				in := 0.0
				if i == 0 {
					in = 1
				}
				l, r := tank.Tick(in, in)
				if math.IsNaN(l) || math.IsNaN(r) || math.IsInf(l, 0) || math.IsInf(r, 0) {
					t.Fatalf("non-finite output at %d", i)
				}
				switch {
				case i < n/4:
					early += l*l + r*r
				case i >= 3*n/4:
					late += l*l + r*r
				}
				diff += math.Abs(l - r)
			}

			if early == 0 {
				t.Fatal("no reverb tail")
			}
			if late >= early {
				t.Fatalf("tail does not decay: early=%g late=%g", early, late)
			}
			if diff == 0 {
				t.Fatal("left and right outputs are identical")
			}
		})
	}
}

func TestTanksFreezeSustains(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmFreeverb, AlgorithmFDN} {
		t.Run(string(alg), func(t *testing.T) {
			tank, err := NewTank(alg, 48000)
			if err != nil {
				t.Fatal(err)
			}

			for i := range 4800 {
				in := 0.0
				if i%100 == 0 {
					in = 1
				}
				tank.Tick(in, in)
			}

			p := DefaultParameters()
			p.Freeze = true
			tank.Configure(p)

			energy := func(n int) float64 {
				var e float64
				for range n {
					// Input is muted while frozen.
					l, r := tank.Tick(1, 1)
					e += l*l + r*r
				}
				return e
			}

			energy(24000)
			first := energy(24000)
			second := energy(24000)
			if first == 0 {
				t.Fatal("frozen tank is silent")
			}
			if second < 0.5*first || second > 1.5*first {
				t.Fatalf("frozen energy drifted: %g -> %g", first, second)
			}
		})
	}
}

func TestTanksReset(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmFreeverb, AlgorithmFDN} {
		tank, err := NewTank(alg, 44100)
		if err != nil {
			t.Fatal(err)
		}
		for range 5000 {
			tank.Tick(0.5, -0.5)
		}
		tank.Reset()
		for i := range 5000 {
			l, r := tank.Tick(0, 0)
			if l != 0 || r != 0 {
				t.Fatalf("%s: output %v,%v at %d after reset", alg, l, r, i)
			}
		}
	}
}

func TestFreeverbMapping(t *testing.T) {
	f, err := NewFreeverb(44100)
	if err != nil {
		t.Fatal(err)
	}

	f.Configure(Parameters{RoomSize: 1, Damping: 1})
	if math.Abs(f.Feedback()-0.98) > 1e-12 || math.Abs(f.Damp()-0.4) > 1e-12 {
		t.Fatalf("feedback=%v damp=%v", f.Feedback(), f.Damp())
	}

	f.Configure(Parameters{RoomSize: 0.3, Damping: 0.9, Freeze: true})
	if f.Feedback() != 1 || f.Damp() != 0 {
		t.Fatalf("frozen feedback=%v damp=%v", f.Feedback(), f.Damp())
	}
}

func TestRT60ForRoomSize(t *testing.T) {
	if got := RT60ForRoomSize(0); math.Abs(got-0.3) > 1e-12 {
		t.Fatalf("RT60(0) = %v, want 0.3", got)
	}
	if got := RT60ForRoomSize(1); math.Abs(got-8) > 1e-9 {
		t.Fatalf("RT60(1) = %v, want 8", got)
	}
	if RT60ForRoomSize(0.25) >= RT60ForRoomSize(0.75) {
		t.Fatal("RT60 not increasing with room size")
	}
	if got := RT60ForRoomSize(5); math.Abs(got-8) > 1e-9 {
		t.Fatalf("RT60(5) = %v, want clamp to 8", got)
	}
}
