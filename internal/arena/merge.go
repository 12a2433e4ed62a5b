package arena

import "math"

// runMergeCheck implements spec.md §4.9 for one player: for each unordered
// pair of same-owner cells, gate on split immunity / merge cooldown, then
// require 90% radius overlap sustained for MergeDelayMin before collapsing.
// Also applies the auto-split rule for any cell at or above AutoSplitMass.
// Candidate pairs are drawn from cellGrid and filtered to this player's own
// cells, rather than a full pairwise scan.
func (w *World) runMergeCheck(p *Player, nowMs int64) {
	live := cellsByMassDesc(p.CellIDs, w.cells)
	if len(live) < 2 {
		w.checkAutoSplit(p, nowMs)
		return
	}

	maxR := 0.0
	for _, c := range live {
		if r := c.Radius(); r > maxR {
			maxR = r
		}
	}

	for _, a := range live {
		if !a.IsAlive {
			continue
		}
		for _, bid := range w.cellGrid.QueryRadius(a.X, a.Y, a.Radius()+maxR) {
			if bid <= a.ID {
				continue
			}
			b, ok := w.cells[bid]
			if !ok || !b.IsAlive || b.OwnerID != p.ID {
				continue
			}

			if a.inSplitImmunity(nowMs) || b.inSplitImmunity(nowMs) {
				continue
			}
			if nowMs-a.LastSplitTime < MergeCooldown.Milliseconds() ||
				nowMs-b.LastSplitTime < MergeCooldown.Milliseconds() {
				continue
			}

			dist := math.Hypot(a.X-b.X, a.Y-b.Y)
			mergeRadius := MergeOverlap * (a.Radius() + b.Radius())

			if dist < mergeRadius {
				if a.State != CellMerging || a.MergeTargetID != b.ID {
					a.State = CellMerging
					a.MergeTargetID = b.ID
					a.MergeStartTime = nowMs
					b.State = CellMerging
					b.MergeTargetID = a.ID
					b.MergeStartTime = nowMs
					continue
				}
				if nowMs-a.MergeStartTime >= MergeDelayMin.Milliseconds() {
					w.collapseMerge(p, a, b)
					w.recordEvent(EventMerge, p.ID, map[string]interface{}{
						"survivor": a.ID, "absorbed": b.ID, "mass": a.Mass,
					})
					continue
				}
			} else {
				if a.State == CellMerging && a.MergeTargetID == b.ID {
					a.State = CellMoving
					a.MergeTargetID = 0
				}
				if b.State == CellMerging && b.MergeTargetID == a.ID {
					b.State = CellMoving
					b.MergeTargetID = 0
				}
			}
		}
	}

	w.checkAutoSplit(p, nowMs)
}

// collapseMerge atomically replaces a and b with a single surviving cell a
// at their mass-weighted centroid, mass summed, velocity zeroed
// (spec.md §4.9 "Collapse").
func (w *World) collapseMerge(p *Player, a, b *Cell) {
	total := a.Mass + b.Mass
	a.X = (a.X*a.Mass + b.X*b.Mass) / total
	a.Y = (a.Y*a.Mass + b.Y*b.Mass) / total
	a.Mass = total
	a.VX, a.VY = 0, 0
	a.State = CellIdle
	a.MergeTargetID = 0

	b.IsAlive = false
	p.removeCell(b.ID)
	delete(w.cells, b.ID)
}

// checkAutoSplit implements spec.md §4.9's high-mass auto-split: any cell
// at or above AutoSplitMass splits in two along the cursor direction.
func (w *World) checkAutoSplit(p *Player, nowMs int64) {
	for _, id := range append([]int64(nil), p.CellIDs...) {
		c, ok := w.cells[id]
		if !ok || !c.IsAlive || c.Mass < AutoSplitMass {
			continue
		}
		if len(p.CellIDs) >= p.MaxCells(w.cells) {
			continue
		}
		dx, dy := unitDirection(c.X, c.Y, p.CursorX, p.CursorY)
		child := splitCell(c, dx, dy, 1.0, nowMs, w.nextID())
		c.AutoSplitTime = nowMs
		child.AutoSplitTime = nowMs
		w.cells[child.ID] = child
		p.addCell(child.ID)
	}
}
