package arena

import "math"

// BotController is the in-process AI producer satisfying the same contract
// spec.md §9 gives a bot: "writes (input_dir, cursor) once per tick". It
// changes nothing but the input direction and cursor fields that a drained
// input message sets for a human player. It writes them directly, from
// World.movementPhase on the tick goroutine rather than through QueueInput,
// so World.Tick stays single-writer.
//
// Grounded on the teacher's Player.findTarget/wander behavior
// (internal/game/player.go): spatial-grid-accelerated nearest-target
// search with a wander fallback, adapted here from "find nearest enemy to
// attack" to "find nearest pellet to eat".
type BotController struct {
	playerID int64
	wanderDX, wanderDY float64
}

// NewBotController creates a bot AI for the given player id.
func NewBotController(playerID int64) *BotController {
	return &BotController{playerID: playerID, wanderDX: 1, wanderDY: 0}
}

// Step runs one tick of bot AI: find the nearest pellet within range and
// steer toward it, or wander. Writes directly into the player's
// input/cursor fields, exactly the surface a decoded client message would
// set — the bot is a Player whose input happens to be computed in-process.
func (b *BotController) Step(w *World) {
	p, ok := w.players[b.playerID]
	if !ok {
		return
	}
	cell := largestCell(p.CellIDs, w.cells)
	if cell == nil {
		return
	}

	const huntRadius = 600
	var bestX, bestY, bestDist float64
	found := false

	for _, pid := range w.pelletGrid.QueryRadius(cell.X, cell.Y, huntRadius) {
		pl, ok := w.pellets[pid]
		if !ok {
			continue
		}
		d := math.Hypot(cell.X-pl.X, cell.Y-pl.Y)
		if !found || d < bestDist {
			bestX, bestY, bestDist = pl.X, pl.Y, d
			found = true
		}
	}

	if found {
		dx, dy := unitDirection(cell.X, cell.Y, bestX, bestY)
		p.InputDirX, p.InputDirY = dx, dy
		p.CursorX, p.CursorY = bestX, bestY
		return
	}

	// No pellet nearby: wander gently, occasionally re-randomizing
	// direction so bots don't walk forever in a straight line.
	if w.rng.Float64() < 0.02 {
		angle := w.rng.Float64() * 2 * math.Pi
		b.wanderDX, b.wanderDY = math.Cos(angle), math.Sin(angle)
	}
	p.InputDirX, p.InputDirY = b.wanderDX, b.wanderDY
	p.CursorX = cell.X + b.wanderDX*200
	p.CursorY = cell.Y + b.wanderDY*200
}
