package math

import "testing"

func TestEmptyBox(t *testing.T) {
	b := EmptyBox()
	if !b.IsEmpty() {
		t.Fatal("EmptyBox() should be empty")
	}
	if b.Size() != (Vec3{}) {
		t.Errorf("empty Size() = %v, want zero", b.Size())
	}
	if b.Center() != (Vec3{}) {
		t.Errorf("empty Center() = %v, want origin", b.Center())
	}
}

func TestBoxExtend(t *testing.T) {
	b := EmptyBox().
		Extend(Vec3{-10, -5, -20}).
		Extend(Vec3{10, 5, 20}).
		Extend(Vec3{0, 0, 0})

	if b.IsEmpty() {
		t.Fatal("extended box is empty")
	}
	if got, want := b.Size(), (Vec3{20, 10, 40}); got != want {
		t.Errorf("Size() = %v, want %v", got, want)
	}
	if got, want := b.Center(), (Vec3{0, 0, 0}); got != want {
		t.Errorf("Center() = %v, want %v", got, want)
	}
}

func TestBoxSinglePoint(t *testing.T) {
	b := EmptyBox().Extend(Vec3{3, 4, 5})
	if b.IsEmpty() {
		t.Fatal("single point box reported empty")
	}
	if b.Size() != (Vec3{}) {
		t.Errorf("Size() = %v, want zero", b.Size())
	}
	if got, want := b.Center(), (Vec3{3, 4, 5}); got != want {
		t.Errorf("Center() = %v, want %v", got, want)
	}
}

func TestBoxUnion(t *testing.T) {
	a := Box{Min: Vec3{0, 0, 0}, Max: Vec3{1, 1, 1}}
	b := Box{Min: Vec3{-1, 2, 0.5}, Max: Vec3{0, 3, 4}}

	got := a.Union(b)
	want := Box{Min: Vec3{-1, 0, 0}, Max: Vec3{1, 3, 4}}
	if got != want {
		t.Errorf("Union() = %v, want %v", got, want)
	}
	if got := a.Union(EmptyBox()); got != a {
		t.Errorf("Union(empty) = %v, want %v", got, a)
	}
	if got := EmptyBox().Union(a); got != a {
		t.Errorf("empty.Union(a) = %v, want %v", got, a)
	}
}

func TestBoxCorners(t *testing.T) {
	b := Box{Min: Vec3{-1, -2, -3}, Max: Vec3{1, 2, 3}}
	corners := b.Corners()
	for _, c := range corners {
		if c.X != -1 && c.X != 1 || c.Y != -2 && c.Y != 2 || c.Z != -3 && c.Z != 3 {
			t.Errorf("corner %v is not on the box", c)
		}
	}
	seen := make(map[Vec3]bool)
	for _, c := range corners {
		seen[c] = true
	}
	if len(seen) != 8 {
		t.Errorf("expected 8 distinct corners, got %d", len(seen))
	}
}
