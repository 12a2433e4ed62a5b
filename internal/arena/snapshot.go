package arena

import (
	"math"
	"sync/atomic"
	"time"
)

// CellSnapshot is one cell inside a PlayerSnapshot, wire-shaped per
// spec.md §6.
type CellSnapshot struct {
	ID      int64   `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Mass    int     `json:"mass"`
	OwnerID int64   `json:"ownerId"`
}

// PlayerSnapshot is one player inside a Snapshot, wire-shaped per spec.md §6.
type PlayerSnapshot struct {
	ID    int64          `json:"id"`
	Name  string         `json:"name"`
	Score int            `json:"score"`
	Color string         `json:"color"`
	IsBot bool           `json:"isBot"`
	Cells []CellSnapshot `json:"cells"`
}

// PelletSnapshot is a pellet or virus inside a Snapshot.
type PelletSnapshot struct {
	ID    int64   `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Mass  int     `json:"mass"`
	Color string  `json:"color"`
}

// SimpleEntitySnapshot covers feed pellets and virus projectiles, which
// carry no color in the wire format (spec.md §6).
type SimpleEntitySnapshot struct {
	ID   int64   `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Mass int     `json:"mass"`
}

// Snapshot is the full per-tick `snapshot` message body (spec.md §6).
type Snapshot struct {
	Timestamp        int64                  `json:"timestamp"`
	Players          []PlayerSnapshot       `json:"players"`
	Pellets          []PelletSnapshot       `json:"pellets"`
	Viruses          []PelletSnapshot       `json:"viruses"`
	FeedPellets      []SimpleEntitySnapshot `json:"feedPellets"`
	VirusProjectiles []SimpleEntitySnapshot `json:"virusProjectiles"`
}

// SnapshotPool triple-buffers snapshots so the tick goroutine can write the
// next one while readers (the session layer's broadcast loop) serialize
// the previous one concurrently, grounded on the teacher's
// game_snapshot.go SnapshotPool (atomic read/write index rotation over a
// fixed-size array of value-type snapshots).
type SnapshotPool struct {
	buf      [3]Snapshot
	writeIdx uint32
	readIdx  uint32
	sequence uint64
}

// NewSnapshotPool constructs an empty triple buffer.
func NewSnapshotPool() *SnapshotPool { return &SnapshotPool{} }

// acquireWrite returns the buffer slot not currently exposed to readers.
func (sp *SnapshotPool) acquireWrite() *Snapshot {
	w := atomic.LoadUint32(&sp.writeIdx)
	next := (w + 1) % 3
	if next == atomic.LoadUint32(&sp.readIdx) {
		next = (next + 1) % 3
	}
	atomic.StoreUint32(&sp.writeIdx, next)
	return &sp.buf[next]
}

// publish exposes the just-written slot to readers.
func (sp *SnapshotPool) publish() {
	atomic.StoreUint32(&sp.readIdx, atomic.LoadUint32(&sp.writeIdx))
	atomic.AddUint64(&sp.sequence, 1)
}

// Latest returns the most recently published snapshot.
func (sp *SnapshotPool) Latest() Snapshot {
	return sp.buf[atomic.LoadUint32(&sp.readIdx)]
}

// buildSnapshot assembles the current world state into the wire format,
// applying the rounding rules of spec.md §6 (coordinates to 0.1, mass to
// integer). Only the pellet array is capped (at maxEntitiesInSnapshot), so a
// pathological pellet population can't blow up message size; the other
// arrays are not capped. Caller must hold w.mu.
func (w *World) buildSnapshot(now time.Time) Snapshot {
	const maxEntitiesInSnapshot = 4000

	s := w.snapshots.acquireWrite()
	s.Timestamp = now.UnixMilli()

	s.Players = s.Players[:0]
	for _, p := range w.players {
		ps := PlayerSnapshot{
			ID: p.ID, Name: p.Name, Score: p.Score(w.cells),
			Color: p.Color, IsBot: p.IsBot,
		}
		for _, cid := range p.CellIDs {
			c, ok := w.cells[cid]
			if !ok || !c.IsAlive {
				continue
			}
			ps.Cells = append(ps.Cells, CellSnapshot{
				ID: c.ID, X: round1(c.X), Y: round1(c.Y),
				Mass: int(math.Round(c.Mass)), OwnerID: c.OwnerID,
			})
		}
		s.Players = append(s.Players, ps)
	}

	s.Pellets = s.Pellets[:0]
	count := 0
	for _, pl := range w.pellets {
		if count >= maxEntitiesInSnapshot {
			break
		}
		s.Pellets = append(s.Pellets, PelletSnapshot{
			ID: pl.ID, X: round1(pl.X), Y: round1(pl.Y),
			Mass: int(math.Round(pl.Mass)), Color: pl.Color,
		})
		count++
	}

	s.Viruses = s.Viruses[:0]
	for _, v := range w.viruses {
		s.Viruses = append(s.Viruses, PelletSnapshot{
			ID: v.ID, X: round1(v.X), Y: round1(v.Y),
			Mass: int(math.Round(v.Mass)), Color: "#8e44ad",
		})
	}

	s.FeedPellets = s.FeedPellets[:0]
	for _, fp := range w.feedPellets {
		s.FeedPellets = append(s.FeedPellets, SimpleEntitySnapshot{
			ID: fp.ID, X: round1(fp.X), Y: round1(fp.Y), Mass: int(math.Round(fp.Mass)),
		})
	}

	s.VirusProjectiles = s.VirusProjectiles[:0]
	for _, pr := range w.projectiles {
		s.VirusProjectiles = append(s.VirusProjectiles, SimpleEntitySnapshot{
			ID: pr.ID, X: round1(pr.X), Y: round1(pr.Y), Mass: int(math.Round(pr.Mass)),
		})
	}

	w.snapshots.publish()
	return *s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
