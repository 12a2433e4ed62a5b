package arena

// SplitOrchestrator implements the player-level split strategies of
// spec.md §4.4, operating on a World's cell collection so it can allocate
// ids and insert new cells. It is a method set on World rather than Player
// because splitting both reads and writes the shared entity map — matching
// the teacher's convention that cross-entity mutation lives on Engine, not
// on the individual entity (see internal/game/engine.go's ProcessAttack).

// Split performs the single power-of-two split path (target_count=2 and
// higher powers of two except the 4-way double split) described in
// spec.md §4.4.
func (w *World) Split(p *Player, targetCount int) {
	if targetCount == 4 {
		w.doubleSplit(p)
		return
	}

	maxCells := p.MaxCells(w.cells)
	current := len(p.CellIDs)
	next := nextPowerOfTwo(current)
	if next < targetCount {
		next = targetCount
	}
	if next > maxCells {
		next = maxCells
	}
	if next <= current {
		return
	}

	toCreate := next - current

	nowMs := nowMillis(w.now)
	created := make([]*Cell, 0, toCreate)
	// Each pass splits every eligible cell once, largest first; passes repeat
	// until the target count is reached or no cell can split any more.
	for toCreate > 0 {
		createdBefore := len(created)
		for _, c := range cellsByMassDesc(p.CellIDs, w.cells) {
			if toCreate <= 0 {
				break
			}
			if c.Mass < SplitMinMass {
				continue
			}
			dx, dy := unitDirection(c.X, c.Y, p.CursorX, p.CursorY)
			child := splitCell(c, dx, dy, 1.0, nowMs, w.nextID())
			w.cells[child.ID] = child
			p.addCell(child.ID)
			created = append(created, child)
			toCreate--
		}
		if len(created) == createdBefore {
			break
		}
	}

	if len(created) == 0 {
		return
	}

	// Redistribute mass uniformly across every resulting cell (spec.md
	// §4.4: "splits always produce even-mass cells").
	redistributeMassEvenly(p, w.cells)
	p.LastSplitTime = nowMs
	p.SplitSequence++

	w.recordEvent(EventSplit, p.ID, map[string]interface{}{"cellCount": len(p.CellIDs)})
}

// doubleSplit implements the 4-way burst described in spec.md §4.4.
func (w *World) doubleSplit(p *Player) {
	total := p.TotalMass(w.cells)
	if total < 4*MinMass {
		return
	}
	maxCells := p.MaxCells(w.cells)
	current := len(p.CellIDs)
	if current+3 > maxCells {
		// Removing the parent and adding 4 pieces must fit under the cap.
		return
	}

	parent := largestCell(p.CellIDs, w.cells)
	if parent == nil || parent.Mass < SplitMinMass {
		return
	}

	d1x, d1y := unitDirection(parent.X, parent.Y, p.CursorX, p.CursorY)
	d2x, d2y := rot90(d1x, d1y)
	d3x, d3y := rotNeg90(d1x, d1y)
	d4x, d4y := -d1x, -d1y

	directions := [4][2]float64{{d1x, d1y}, {d2x, d2y}, {d3x, d3y}, {d4x, d4y}}

	nowMs := nowMillis(w.now)
	pieceMass := parent.Mass / 4
	parentX, parentY := parent.X, parent.Y
	parentVX, parentVY := parent.VX, parent.VY

	p.removeCell(parent.ID)
	parent.IsAlive = false
	delete(w.cells, parent.ID)

	for _, dir := range directions {
		child := &Cell{
			ID:      w.nextID(),
			OwnerID: p.ID,
			X:       parentX,
			Y:       parentY,
			Mass:    pieceMass,
			VX:      parentVX,
			VY:      parentVY,
			IsAlive: true,
		}
		markSplit(child, dir[0], dir[1], nowMs)

		r := Radius(pieceMass)
		offset := r * SplitEjectionGap * 2
		child.X += dir[0] * offset
		child.Y += dir[1] * offset

		base := SplitBaseImpulse + clampF(r*0.12, 0, 6) + clampF(pieceMass*0.0015, 0, 3)
		child.VX += dir[0] * base * SplitForwardMult
		child.VY += dir[1] * base * SplitForwardMult

		w.cells[child.ID] = child
		p.addCell(child.ID)
	}

	p.LastSplitTime = nowMs
	p.SplitSequence++
	w.recordEvent(EventDoubleSplit, p.ID, map[string]interface{}{"cellCount": len(p.CellIDs)})
}

// rot90 rotates a unit vector by +90 degrees; rotNeg90 by -90 degrees.
func rot90(x, y float64) (float64, float64)    { return -y, x }
func rotNeg90(x, y float64) (float64, float64) { return y, -x }

// redistributeMassEvenly spreads the player's total mass evenly across all
// of its live cells, with any integer-rounding remainder spread one unit
// at a time starting from the first cell (spec.md §4.4).
func redistributeMassEvenly(p *Player, cells map[int64]*Cell) {
	live := make([]*Cell, 0, len(p.CellIDs))
	total := 0.0
	for _, id := range p.CellIDs {
		if c, ok := cells[id]; ok && c.IsAlive {
			live = append(live, c)
			total += c.Mass
		}
	}
	if len(live) == 0 {
		return
	}
	share := total / float64(len(live))
	for _, c := range live {
		c.Mass = share
	}
}

// nextPowerOfTwo returns the smallest power of two >= n (n >= 1).
func nextPowerOfTwo(n int) int {
	if n < 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
