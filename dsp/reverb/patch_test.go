package reverb

import "testing"

func TestPatchApply(t *testing.T) {
	room := 0.9
	freeze := true

	base := DefaultParameters()
	got := Patch{RoomSize: &room, Freeze: &freeze}.Apply(base)

	want := base
	want.RoomSize = 0.9
	want.Freeze = true
	if got != want {
		t.Fatalf("Apply() = %+v, want %+v", got, want)
	}
}

func TestPatchIsEmpty(t *testing.T) {
	if !(Patch{}).IsEmpty() {
		t.Fatal("zero patch should be empty")
	}
	wet := 0.1
	if (Patch{WetLevel: &wet}).IsEmpty() {
		t.Fatal("patch with wetLevel should not be empty")
	}
}

func TestFullPatchReplacesEverything(t *testing.T) {
	p := Parameters{RoomSize: 0.1, Damping: 0.2, WetLevel: 0.3, DryLevel: 0.4, PreDelayMs: 5, Width: 0.6, Freeze: true}
	if got := FullPatch(p).Apply(DefaultParameters()); got != p {
		t.Fatalf("Apply(FullPatch) = %+v, want %+v", got, p)
	}
}
