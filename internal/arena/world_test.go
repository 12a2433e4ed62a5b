package arena

import (
	"testing"
	"time"
)

func newTestWorld() *World {
	return NewWorld(4000, 4000, PopulationTargets{Pellets: 0, Viruses: 0, Bots: 0})
}

func TestAddPlayerSpawnsOneCell(t *testing.T) {
	w := newTestWorld()
	p := w.AddPlayer(1, "alice", "#fff", false)

	if len(p.CellIDs) != 1 {
		t.Fatalf("expected 1 starting cell, got %d", len(p.CellIDs))
	}
	c := w.cells[p.CellIDs[0]]
	if c.Mass != RespawnMass {
		t.Errorf("starting cell mass = %.0f, want %.0f", c.Mass, RespawnMass)
	}
}

func TestSplitConservesTotalMass(t *testing.T) {
	w := newTestWorld()
	p := w.AddPlayer(1, "alice", "#fff", false)
	c := w.cells[p.CellIDs[0]]
	c.Mass = 2000
	p.CursorX, p.CursorY = c.X+100, c.Y

	before := p.TotalMass(w.cells)
	w.Split(p, 2)
	after := p.TotalMass(w.cells)

	if len(p.CellIDs) != 2 {
		t.Fatalf("expected 2 cells after split, got %d", len(p.CellIDs))
	}
	if diff := before - after; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("total mass not conserved across split: before %.4f, after %.4f", before, after)
	}
}

func TestDoubleSplitFanOut(t *testing.T) {
	w := newTestWorld()
	p := w.AddPlayer(1, "alice", "#fff", false)
	c := w.cells[p.CellIDs[0]]
	c.Mass = 4 * MinMass
	p.CursorX, p.CursorY = c.X+100, c.Y

	w.Split(p, 4)

	if len(p.CellIDs) != 4 {
		t.Fatalf("expected 4 cells after double split, got %d", len(p.CellIDs))
	}
	total := p.TotalMass(w.cells)
	want := 4 * MinMass
	if diff := total - want; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("double split mass = %.4f, want %.4f", total, want)
	}
}

func TestSplitRespectsMaxCells(t *testing.T) {
	w := newTestWorld()
	p := w.AddPlayer(1, "alice", "#fff", false)
	c := w.cells[p.CellIDs[0]]
	c.Mass = MinMass * MaxCellsPerPlayer * 2
	p.CursorX, p.CursorY = c.X+100, c.Y

	w.Split(p, 32)
	w.Split(p, 32)
	w.Split(p, 32)

	if len(p.CellIDs) > p.MaxCells(w.cells) {
		t.Errorf("cell count %d exceeds MaxCells %d", len(p.CellIDs), p.MaxCells(w.cells))
	}
}

func TestMergeCollapsesOverlappingCells(t *testing.T) {
	w := newTestWorld()
	p := w.AddPlayer(1, "alice", "#fff", false)

	a := w.cells[p.CellIDs[0]]
	a.Mass = 1000
	a.X, a.Y = 1000, 1000

	b := NewCell(w.nextID(), p.ID, a.X+1, a.Y, 1000)
	w.cells[b.ID] = b
	p.addCell(b.ID)

	nowMs := int64(10_000_000) // well past merge cooldown for both cells
	w.rebuildCellGrid()
	w.runMergeCheck(p, nowMs)
	w.rebuildCellGrid()
	w.runMergeCheck(p, nowMs+int64(MergeDelayMin.Milliseconds())+1)

	if len(p.CellIDs) != 1 {
		t.Fatalf("expected cells to collapse into 1, got %d", len(p.CellIDs))
	}
	if got := p.TotalMass(w.cells); got != 2000 {
		t.Errorf("merged mass = %.0f, want 2000", got)
	}
}

func TestMergeBlockedDuringCooldown(t *testing.T) {
	w := newTestWorld()
	p := w.AddPlayer(1, "alice", "#fff", false)

	a := w.cells[p.CellIDs[0]]
	a.Mass = 1000
	a.X, a.Y = 1000, 1000
	a.LastSplitTime = 10_000
	a.SplitImmunityUntil = 0

	b := NewCell(w.nextID(), p.ID, a.X+1, a.Y, 1000)
	b.LastSplitTime = 10_000
	w.cells[b.ID] = b
	p.addCell(b.ID)

	// Still inside MergeCooldown relative to LastSplitTime on both calls,
	// so the pair must never even enter the MERGING state.
	nowMs := a.LastSplitTime + MergeCooldown.Milliseconds() - 1
	w.rebuildCellGrid()
	w.runMergeCheck(p, nowMs)
	w.rebuildCellGrid()
	w.runMergeCheck(p, nowMs)

	if len(p.CellIDs) != 2 {
		t.Errorf("cells should not merge during cooldown, got %d cells", len(p.CellIDs))
	}
	if a.State == CellMerging {
		t.Error("cooldown should prevent entering MERGING state at all")
	}
}

func TestEatByMargin(t *testing.T) {
	w := newTestWorld()
	predator := w.AddPlayer(1, "predator", "#fff", false)
	prey := w.AddPlayer(2, "prey", "#000", false)

	pc := w.cells[predator.CellIDs[0]]
	pc.Mass = 10000
	pc.X, pc.Y = 1000, 1000

	vc := w.cells[prey.CellIDs[0]]
	vc.Mass = 100
	vc.X, vc.Y = pc.X, pc.Y

	w.rebuildCellGrid()
	w.runEatingDominance(100_000)

	if len(prey.CellIDs) != 0 {
		t.Error("prey cell should have been eaten")
	}
	if got := pc.Mass; got != 10100 {
		t.Errorf("predator mass after eating = %.0f, want 10100", got)
	}
}

func TestNoEatOnSplitImmunity(t *testing.T) {
	w := newTestWorld()
	predator := w.AddPlayer(1, "predator", "#fff", false)
	prey := w.AddPlayer(2, "prey", "#000", false)

	nowMs := int64(100_000)

	pc := w.cells[predator.CellIDs[0]]
	pc.Mass = 10000
	pc.X, pc.Y = 1000, 1000

	vc := w.cells[prey.CellIDs[0]]
	vc.Mass = 100
	vc.X, vc.Y = pc.X, pc.Y
	vc.SplitImmunityUntil = nowMs + 1

	w.rebuildCellGrid()
	w.runEatingDominance(nowMs)

	if len(prey.CellIDs) != 1 {
		t.Error("split-immune prey should not be eaten")
	}
}

func TestNoEatSameOwner(t *testing.T) {
	w := newTestWorld()
	p := w.AddPlayer(1, "alice", "#fff", false)

	a := w.cells[p.CellIDs[0]]
	a.Mass = 10000
	a.X, a.Y = 1000, 1000

	b := NewCell(w.nextID(), p.ID, a.X, a.Y, 100)
	w.cells[b.ID] = b
	p.addCell(b.ID)

	w.rebuildCellGrid()
	w.runEatingDominance(100_000)

	if len(p.CellIDs) != 2 {
		t.Error("same-owner cells should never eat each other")
	}
}

func TestVirusBurstCapsAtRoomAndPieceLimit(t *testing.T) {
	w := newTestWorld()
	p := w.AddPlayer(1, "alice", "#fff", false)

	c := w.cells[p.CellIDs[0]]
	c.Mass = VirusMassThreshold + 1000
	c.X, c.Y = 1000, 1000

	v := NewVirus(w.nextID(), c.X, c.Y)
	w.burstSplit(c, v)

	if len(p.CellIDs) < 2 {
		t.Fatalf("expected burst to create multiple cells, got %d", len(p.CellIDs))
	}
	if len(p.CellIDs) > p.MaxCells(w.cells) {
		t.Errorf("virus burst exceeded MaxCells: %d > %d", len(p.CellIDs), p.MaxCells(w.cells))
	}
}

func TestIdleTickDoesNotPanicOrDesync(t *testing.T) {
	w := newTestWorld()
	w.AddPlayer(1, "alice", "#fff", false)

	for i := 0; i < 120; i++ {
		w.Tick(time.Unix(0, 0).Add(time.Duration(i) * TickInterval))
	}

	if len(w.players) != 1 {
		t.Errorf("player count changed across idle ticks: %d", len(w.players))
	}
}

func TestRespawnResetsToSingleStartingCell(t *testing.T) {
	w := newTestWorld()
	p := w.AddPlayer(1, "alice", "#fff", false)
	c := w.cells[p.CellIDs[0]]
	c.Mass = 5000
	p.CursorX, p.CursorY = c.X + 100, c.Y
	w.Split(p, 2)

	w.Respawn(p)

	if len(p.CellIDs) != 1 {
		t.Fatalf("expected 1 cell after respawn, got %d", len(p.CellIDs))
	}
	if w.cells[p.CellIDs[0]].Mass != RespawnMass {
		t.Errorf("respawn cell mass = %.0f, want %.0f", w.cells[p.CellIDs[0]].Mass, RespawnMass)
	}
}

func TestRemovePlayerClearsAllCells(t *testing.T) {
	w := newTestWorld()
	p := w.AddPlayer(1, "alice", "#fff", false)
	cellID := p.CellIDs[0]

	w.RemovePlayer(1)

	if _, ok := w.players[1]; ok {
		t.Error("player should be removed")
	}
	if _, ok := w.cells[cellID]; ok {
		t.Error("player's cells should be removed with the player")
	}
}
