package math

import "math"

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max Vec3
}

// EmptyBox returns a box that contains nothing. Extending it with a point
// yields a zero-size box at that point.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// IsEmpty reports whether the box contains no points.
func (b Box) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

// Extend returns the smallest box containing b and p.
func (b Box) Extend(p Vec3) Box {
	return Box{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Union returns the smallest box containing b and other.
func (b Box) Union(other Box) Box {
	if other.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return other
	}
	return Box{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}

// Center returns (Min + Max) / 2, or the origin for an empty box.
func (b Box) Center() Vec3 {
	if b.IsEmpty() {
		return Vec3{}
	}
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns Max - Min, or zero for an empty box.
func (b Box) Size() Vec3 {
	if b.IsEmpty() {
		return Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// Corners returns the eight corners, bottom face first.
func (b Box) Corners() [8]Vec3 {
	lo, hi := b.Min, b.Max
	return [8]Vec3{
		{lo.X, lo.Y, lo.Z}, {hi.X, lo.Y, lo.Z}, {hi.X, lo.Y, hi.Z}, {lo.X, lo.Y, hi.Z},
		{lo.X, hi.Y, lo.Z}, {hi.X, hi.Y, lo.Z}, {hi.X, hi.Y, hi.Z}, {lo.X, hi.Y, hi.Z},
	}
}
