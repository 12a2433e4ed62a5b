package arena

import "testing"

func TestSplitConservesMass(t *testing.T) {
	parent := NewCell(1, 1, 100, 100, 2000)
	oldMass := parent.Mass

	child := splitCell(parent, 1, 0, 1.0, 1000, 2)

	if got := parent.Mass + child.Mass; got != oldMass {
		t.Errorf("mass not conserved: parent %.2f + child %.2f = %.2f, want %.2f",
			parent.Mass, child.Mass, got, oldMass)
	}
}

func TestSplitRejectsBelowMinMass(t *testing.T) {
	parent := NewCell(1, 1, 0, 0, MinMass)
	child := splitCell(parent, 1, 0, 1.0, 0, 2)

	if child.Mass < MinMass {
		t.Errorf("child mass %.2f below MinMass %.2f", child.Mass, MinMass)
	}
	if parent.Mass < MinMass {
		t.Errorf("parent mass %.2f below MinMass %.2f", parent.Mass, MinMass)
	}
}

func TestSplitGrantsImmunityAndDirectionLock(t *testing.T) {
	parent := NewCell(1, 1, 0, 0, 2000)
	nowMs := int64(5000)
	child := splitCell(parent, 1, 0, 1.0, nowMs, 2)

	if !parent.inSplitImmunity(nowMs) {
		t.Error("parent should be split-immune immediately after splitting")
	}
	if !child.inSplitImmunity(nowMs) {
		t.Error("child should be split-immune immediately after splitting")
	}
	if !child.inDirectionLock(nowMs) {
		t.Error("child should be in direction lock immediately after splitting")
	}
	if parent.inSplitImmunity(nowMs + SplitImmunity.Milliseconds() + 1) {
		t.Error("split immunity should expire after SplitImmunity elapses")
	}
}

func TestMinMassInvariantUnderDecay(t *testing.T) {
	c := NewCell(1, 1, 100, 100, MinMass+1)
	for i := 0; i < 10000; i++ {
		c.integrate(0, 0, 10000, 10000, int64(i)*16)
	}
	if c.Mass < MinMass {
		t.Errorf("mass decayed below MinMass: got %.4f", c.Mass)
	}
}

func TestIntegrateClampsToWorldBounds(t *testing.T) {
	c := NewCell(1, 1, 5, 5, 1000)
	c.VX, c.VY = -100, -100
	c.integrate(0, 0, 2000, 2000, 0)

	r := c.Radius()
	if c.X < r || c.Y < r {
		t.Errorf("cell escaped world bounds: (%.2f, %.2f), radius %.2f", c.X, c.Y, r)
	}
}

func TestRadiusMonotonicInMass(t *testing.T) {
	if Radius(100) >= Radius(1000) {
		t.Error("Radius should increase with mass")
	}
	if BaseRadius(100) >= BaseRadius(1000) {
		t.Error("BaseRadius should increase with mass")
	}
}

func TestMaxCellsInvariant(t *testing.T) {
	cases := []struct {
		mass float64
		want int
	}{
		{0, 1},
		{MinMass - 1, 1},
		{MinMass * 5, 5},
		{MinMass * 1000, MaxCellsPerPlayer},
	}
	for _, c := range cases {
		if got := MaxCells(c.mass); got != c.want {
			t.Errorf("MaxCells(%.0f) = %d, want %d", c.mass, got, c.want)
		}
	}
}
