package arena

import (
	"sort"
	"strings"
)

// Player owns an ordered set of cell ids plus the input state written by a
// connection (or, for bots, by an in-process controller). Structured after
// the teacher's Player struct (internal/game/player.go) generalized from
// "one body" to "an ordered set of Cell ids" per spec.md §3.
type Player struct {
	ID    int64
	Name  string
	Color string

	CellIDs []int64 // ordered, no duplicates; order is an iteration handle only

	InputDirX, InputDirY float64
	CursorX, CursorY     float64

	LastSplitTime int64
	SplitSequence int

	IsBot bool
}

// NewPlayer constructs a player with no cells yet; the World assigns the
// starting cell on join/respawn.
func NewPlayer(id int64, name, color string, isBot bool) *Player {
	return &Player{
		ID:    id,
		Name:  name,
		Color: color,
		IsBot: isBot,
	}
}

// addCell appends a cell id, rejecting duplicates (spec.md §3: "duplicates
// forbidden").
func (p *Player) addCell(id int64) {
	for _, existing := range p.CellIDs {
		if existing == id {
			return
		}
	}
	p.CellIDs = append(p.CellIDs, id)
}

// removeCell deletes a cell id from the player's ordered set.
func (p *Player) removeCell(id int64) {
	for i, existing := range p.CellIDs {
		if existing == id {
			p.CellIDs = append(p.CellIDs[:i], p.CellIDs[i+1:]...)
			return
		}
	}
}

// TotalMass sums the mass of every live cell this player owns.
func (p *Player) TotalMass(cells map[int64]*Cell) float64 {
	total := 0.0
	for _, id := range p.CellIDs {
		if c, ok := cells[id]; ok && c.IsAlive {
			total += c.Mass
		}
	}
	return total
}

// Score is floor(total_mass) per spec.md §3.
func (p *Player) Score(cells map[int64]*Cell) int {
	return int(p.TotalMass(cells))
}

// MaxCells is clamp(floor(total_mass/MinMass), 1, 32) per spec.md §3.
func (p *Player) MaxCells(cells map[int64]*Cell) int {
	return MaxCells(p.TotalMass(cells))
}

// cellsByMassDesc returns this player's live cells sorted by mass
// descending, the iteration order spec.md §4.4 requires for split
// orchestration ("sorted by mass DESC — largest first").
func cellsByMassDesc(ids []int64, cells map[int64]*Cell) []*Cell {
	out := make([]*Cell, 0, len(ids))
	for _, id := range ids {
		if c, ok := cells[id]; ok && c.IsAlive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mass > out[j].Mass })
	return out
}

// largestCell returns the player's heaviest live cell, or nil if the
// player owns none.
func largestCell(ids []int64, cells map[int64]*Cell) *Cell {
	best := cellsByMassDesc(ids, cells)
	if len(best) == 0 {
		return nil
	}
	return best[0]
}

// SetName trims and truncates a requested display name to MaxNameLength
// code points (spec.md §6: "trimmed and truncated to 20 code points").
func (p *Player) SetName(name string) {
	p.Name = truncateName(name)
}

func truncateName(name string) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) > MaxNameLength {
		runes = runes[:MaxNameLength]
	}
	return string(runes)
}
