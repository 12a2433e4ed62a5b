package arena

import (
	"math"
	"sort"
)

// runEatingDominance implements spec.md §4.8: a manual, per-tick dominance
// pass (not a collision callback). Every eater consumes at most one victim,
// chosen as the nearest qualifying victim; an "eaten this tick" guard set
// prevents a victim from being eaten twice or from eating after being
// eaten in the same tick. Victim candidates are drawn from cellGrid instead
// of a full scan of every other live cell.
func (w *World) runEatingDominance(nowMs int64) {
	eaten := make(map[int64]bool)

	ids := w.liveCellIDsSorted()

	for _, eaterID := range ids {
		if eaten[eaterID] {
			continue
		}
		eater, ok := w.cells[eaterID]
		if !ok || !eater.IsAlive {
			continue
		}

		rb := eater.BaseRadius()
		type candidate struct {
			cell *Cell
			dist float64
		}
		var candidates []candidate

		for _, victimID := range w.cellGrid.QueryRadius(eater.X, eater.Y, rb) {
			if victimID == eaterID || eaten[victimID] {
				continue
			}
			victim, ok := w.cells[victimID]
			if !ok || !victim.IsAlive {
				continue
			}
			if victim.OwnerID == eater.OwnerID {
				continue
			}
			if eater.Mass <= victim.Mass {
				continue
			}
			rbV := victim.BaseRadius()
			if rb < rbV*EatRadiusRatio {
				continue
			}
			dist := math.Hypot(eater.X-victim.X, eater.Y-victim.Y)
			if dist >= rb-rbV*EatDistanceFactor {
				continue
			}
			if victim.inSplitImmunity(nowMs) {
				continue
			}
			candidates = append(candidates, candidate{victim, dist})
		}

		if len(candidates) == 0 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

		victim := candidates[0].cell
		eater.Mass += victim.Mass
		eater.VX, eater.VY = 0, 0

		victim.IsAlive = false
		eaten[victim.ID] = true
		w.removeCellFromOwner(victim)
		delete(w.cells, victim.ID)

		w.recordEvent(EventEat, eater.OwnerID, map[string]interface{}{
			"eaterCell": eater.ID, "victimCell": victim.ID, "victimMass": victim.Mass,
		})
	}
}

// liveCellIDsSorted returns all currently-alive cell ids in a deterministic
// order (ascending id), matching spec.md §4.8's "iterate in a deterministic
// order" requirement.
func (w *World) liveCellIDsSorted() []int64 {
	ids := make([]int64, 0, len(w.cells))
	for id, c := range w.cells {
		if c.IsAlive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
