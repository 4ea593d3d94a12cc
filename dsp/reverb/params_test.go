package reverb

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultParametersAreInRange(t *testing.T) {
	p := DefaultParameters()
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if _, changed := p.Clamp(DefaultMaxPreDelayMs); changed {
		t.Fatal("defaults changed by Clamp")
	}
}

func TestParametersClamp(t *testing.T) {
	tests := []struct {
		name    string
		in      Parameters
		want    Parameters
		changed bool
	}{
		{
			name:    "room size above range",
			in:      Parameters{RoomSize: 1.5, Width: 1},
			want:    Parameters{RoomSize: 1, Width: 1},
			changed: true,
		},
		{
			name:    "negative levels",
			in:      Parameters{WetLevel: -0.2, DryLevel: -3, Width: 0.5},
			want:    Parameters{Width: 0.5},
			changed: true,
		},
		{
			name:    "pre-delay above max",
			in:      Parameters{PreDelayMs: 900},
			want:    Parameters{PreDelayMs: DefaultMaxPreDelayMs},
			changed: true,
		},
		{
			name:    "in range",
			in:      Parameters{RoomSize: 0.2, Damping: 0.9, WetLevel: 0.1, DryLevel: 0.4, PreDelayMs: 20, Width: 0.3, Freeze: true},
			want:    Parameters{RoomSize: 0.2, Damping: 0.9, WetLevel: 0.1, DryLevel: 0.4, PreDelayMs: 20, Width: 0.3, Freeze: true},
			changed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := tt.in.Clamp(DefaultMaxPreDelayMs)
			if got != tt.want {
				t.Fatalf("Clamp() = %+v, want %+v", got, tt.want)
			}
			if changed != tt.changed {
				t.Fatalf("changed = %v, want %v", changed, tt.changed)
			}
		})
	}
}

func TestParametersClampIsIdempotent(t *testing.T) {
	p := Parameters{RoomSize: 3, Damping: -1, WetLevel: 2, DryLevel: 0.5, PreDelayMs: -10, Width: 7}
	once, _ := p.Clamp(100)
	twice, changed := once.Clamp(100)
	if once != twice || changed {
		t.Fatalf("second clamp changed %+v to %+v", once, twice)
	}
}

func TestParametersClampNaNToLowerBound(t *testing.T) {
	got, changed := Parameters{RoomSize: math.NaN(), PreDelayMs: math.Inf(1)}.Clamp(50)
	if !changed {
		t.Fatal("expected change")
	}
	if got.RoomSize != 0 || got.PreDelayMs != 50 {
		t.Fatalf("got %+v", got)
	}
}

func TestParametersValidateRejectsNonFinite(t *testing.T) {
	for _, p := range []Parameters{
		{RoomSize: math.NaN()},
		{Damping: math.Inf(1)},
		{PreDelayMs: math.Inf(-1)},
		{Width: math.NaN()},
	} {
		err := p.Validate()
		if !errors.Is(err, ErrNonFinite) {
			t.Fatalf("Validate(%+v) = %v, want ErrNonFinite", p, err)
		}
	}
}
