package arena

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"cellarena/internal/arena/spatial"
)

// PopulationTargets are the counts World.populationPhase refills toward
// (spec.md §3, §4.6 step 7).
type PopulationTargets struct {
	Pellets int
	Viruses int
	Bots    int
}

// DefaultPopulationTargets matches spec.md's defaults.
func DefaultPopulationTargets() PopulationTargets {
	return PopulationTargets{Pellets: 1000, Viruses: 20, Bots: 10}
}

// SnapshotSink receives the read-only snapshot produced at the end of every
// tick. The session layer registers one to broadcast to connections; World
// itself never touches a network connection (spec.md §1 out-of-scope list).
type SnapshotSink interface {
	PublishSnapshot(Snapshot)
}

// World owns every entity in the arena and runs the fixed-order tick
// pipeline of spec.md §4.6. It is a single-writer structure: only the tick
// goroutine mutates entity collections, matching the teacher's Engine
// holding e.mu.Lock() for a tick's entire duration (internal/game/engine.go).
type World struct {
	mu sync.RWMutex

	width, height float64
	targets       PopulationTargets

	cells       map[int64]*Cell
	players     map[int64]*Player
	pellets     map[int64]*Pellet
	viruses     map[int64]*Virus
	feedPellets map[int64]*FeedPellet
	projectiles map[int64]*VirusProjectile

	cellGrid   *spatial.Grid
	pelletGrid *spatial.Grid

	bots map[int64]*BotController

	leaderboard  *Leaderboard
	eventLog     *EventLog
	snapshots    *SnapshotPool
	sink         SnapshotSink
	tickObserver func(time.Duration)

	nextID_    int64
	rng        *rand.Rand
	now        time.Time
	tickCount  uint64

	inputMu sync.Mutex
	inbox   []inboundMessage

	ticker       *time.Ticker
	stopChan     chan struct{}
	running      bool
	eventLogPath string
}

// NewWorld constructs an empty arena of the given dimensions.
func NewWorld(width, height float64, targets PopulationTargets) *World {
	w := &World{
		width:       width,
		height:      height,
		targets:     targets,
		cells:       make(map[int64]*Cell),
		players:     make(map[int64]*Player),
		pellets:     make(map[int64]*Pellet),
		viruses:     make(map[int64]*Virus),
		feedPellets: make(map[int64]*FeedPellet),
		projectiles: make(map[int64]*VirusProjectile),
		bots:        make(map[int64]*BotController),
		leaderboard: NewLeaderboard(),
		eventLog:    NewEventLog(),
		snapshots:   NewSnapshotPool(),
		rng:         rand.New(rand.NewSource(1)),
		now:         time.Now(),
		stopChan:    make(chan struct{}),
	}
	w.cellGrid = spatial.NewGrid(width, height, 500, 4096)
	w.pelletGrid = spatial.NewGrid(width, height, 500, targets.Pellets+targets.Viruses+64)
	return w
}

// SetSnapshotSink registers the session layer's broadcast target.
func (w *World) SetSnapshotSink(sink SnapshotSink) { w.sink = sink }

// SetTickObserver registers a callback invoked with each tick's wall-clock
// duration, for the session layer's Prometheus histogram. Optional; nil by
// default so World has no observability dependency of its own.
func (w *World) SetTickObserver(fn func(time.Duration)) { w.tickObserver = fn }

// SetEventLogPath sets the JSONL file Start writes simulation events to.
// Must be called before Start; an empty path (the default) disables disk
// output while still counting events.
func (w *World) SetEventLogPath(path string) { w.eventLogPath = path }

func (w *World) nextID() int64 {
	w.nextID_++
	return w.nextID_
}

// Start launches the 60Hz ticker goroutine. Matches the teacher's
// Engine.Start/Stop pattern: background work does not begin until Start is
// called, so the World is safe to unit-test by calling Tick directly.
func (w *World) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.ticker = time.NewTicker(TickInterval)
	w.mu.Unlock()

	if err := w.eventLog.Start(w.eventLogPath); err != nil {
		log.Printf("arena: event log failed to start: %v", err)
	}

	go func() {
		for {
			select {
			case t := <-w.ticker.C:
				w.Tick(t)
			case <-w.stopChan:
				return
			}
		}
	}()
}

// Stop halts the ticker goroutine and the event log.
func (w *World) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.ticker.Stop()
	w.mu.Unlock()
	close(w.stopChan)
	w.eventLog.Stop()
}

// Tick runs the full seven-phase pipeline of spec.md §4.6 exactly once, in
// fixed order. `now` is the wall-clock time this tick represents.
func (w *World) Tick(now time.Time) {
	start := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tickObserver != nil {
		defer func() { w.tickObserver(time.Since(start)) }()
	}

	w.now = now
	w.tickCount++
	nowMs := nowMillis(now)

	w.drainInputs()

	w.movementPhase(nowMs)
	w.rebuildCellGrid()
	w.pushOutPhase(nowMs)
	w.rebuildCellGrid()
	w.runEatingDominance(nowMs)
	for _, p := range w.players {
		w.runMergeCheck(p, nowMs)
	}
	w.entityUpdatePhase()
	w.collisionPhase()
	w.populationPhase()

	w.updateLeaderboard()

	if w.sink != nil {
		w.sink.PublishSnapshot(w.buildSnapshot(now))
	}
}

// movementPhase is spec.md §4.6 step 1.
func (w *World) movementPhase(nowMs int64) {
	for _, p := range w.players {
		for _, id := range p.CellIDs {
			c, ok := w.cells[id]
			if !ok || !c.IsAlive {
				continue
			}
			c.integrate(p.InputDirX, p.InputDirY, w.width, w.height, nowMs)
		}
	}
	for _, b := range w.bots {
		b.Step(w)
	}
}

// pushOutPhase is spec.md §4.6 step 2: same-owner cells that overlap and
// are not split-immune are pushed apart, mass-weighted. Candidate pairs are
// drawn from cellGrid rather than a full pairwise scan of the player's
// cells; the grid query is filtered down to this player's own live,
// non-immune cells.
func (w *World) pushOutPhase(nowMs int64) {
	for _, p := range w.players {
		live := cellsByMassDesc(p.CellIDs, w.cells)
		if len(live) < 2 {
			continue
		}
		maxR := 0.0
		for _, c := range live {
			if r := c.Radius(); r > maxR {
				maxR = r
			}
		}
		for _, a := range live {
			if a.inSplitImmunity(nowMs) {
				continue
			}
			for _, bid := range w.cellGrid.QueryRadius(a.X, a.Y, a.Radius()+maxR) {
				if bid <= a.ID {
					continue
				}
				b, ok := w.cells[bid]
				if !ok || b.OwnerID != p.ID || b.inSplitImmunity(nowMs) {
					continue
				}
				dx, dy := b.X-a.X, b.Y-a.Y
				dist := math.Hypot(dx, dy)
				minDist := a.Radius() + b.Radius()
				if dist >= minDist || dist < 1e-9 {
					continue
				}
				overlap := minDist - dist
				ux, uy := dx/dist, dy/dist
				totalMass := a.Mass + b.Mass
				aShare := (b.Mass / totalMass) * overlap * 0.5
				bShare := (a.Mass / totalMass) * overlap * 0.5
				a.X -= ux * aShare
				a.Y -= uy * aShare
				b.X += ux * bShare
				b.Y += uy * bShare
			}
		}
	}
}

// rebuildCellGrid reindexes every live cell by position. Called twice per
// tick (post-movement, post-push-out) so push-out's own candidate search
// and the eating/merge passes that follow it both query current positions.
func (w *World) rebuildCellGrid() {
	w.cellGrid.Clear()
	for id, c := range w.cells {
		if !c.IsAlive {
			continue
		}
		w.cellGrid.Insert(id, c.X, c.Y)
	}
}

// entityUpdatePhase is spec.md §4.6 step 5: advance viruses (stationary
// aside from feed/pop), feed pellets, and projectiles; expire by age.
func (w *World) entityUpdatePhase() {
	for id, fp := range w.feedPellets {
		if !fp.update(w.now) {
			delete(w.feedPellets, id)
		}
	}
	for id, pr := range w.projectiles {
		if !pr.update(w.now) {
			delete(w.projectiles, id)
		}
	}
}

// collisionPhase is spec.md §4.6 step 6: cell↔pellet, cell↔feed-pellet,
// cell↔virus, cell↔virus-projectile, feed-pellet↔virus.
func (w *World) collisionPhase() {
	w.rebuildPelletGrid()
	w.cellPelletCollisions()
	w.cellFeedPelletCollisions()
	w.cellVirusCollisions()
	w.cellProjectileCollisions()
	w.feedVirusCollisions()
}

func (w *World) rebuildPelletGrid() {
	w.pelletGrid.Clear()
	for id, pl := range w.pellets {
		w.pelletGrid.Insert(id, pl.X, pl.Y)
	}
}

func (w *World) cellPelletCollisions() {
	for _, c := range w.cells {
		if !c.IsAlive {
			continue
		}
		r := c.Radius()
		for _, pid := range w.pelletGrid.QueryRadius(c.X, c.Y, r) {
			pl, ok := w.pellets[pid]
			if !ok {
				continue
			}
			if math.Hypot(c.X-pl.X, c.Y-pl.Y) >= r {
				continue
			}
			c.Mass += pl.Mass
			w.respawnPellet(pl)
		}
	}
}

func (w *World) cellFeedPelletCollisions() {
	for _, c := range w.cells {
		if !c.IsAlive {
			continue
		}
		r := c.Radius()
		for id, fp := range w.feedPellets {
			if math.Hypot(c.X-fp.X, c.Y-fp.Y) >= r {
				continue
			}
			c.Mass += fp.Mass * FeedAbsorbMult
			delete(w.feedPellets, id)
		}
	}
}

func (w *World) cellVirusCollisions() {
	for _, c := range w.cells {
		if !c.IsAlive || c.Mass < VirusMassThreshold {
			continue
		}
		for id, v := range w.viruses {
			if math.Hypot(c.X-v.X, c.Y-v.Y) >= c.Radius()+Radius(v.Mass) {
				continue
			}
			w.burstSplit(c, v)
			w.respawnVirus(v, id)
			break
		}
	}
}

func (w *World) cellProjectileCollisions() {
	for _, c := range w.cells {
		if !c.IsAlive {
			continue
		}
		for id, pr := range w.projectiles {
			if math.Hypot(c.X-pr.X, c.Y-pr.Y) >= c.Radius() {
				continue
			}
			if c.Mass >= VirusMassThreshold {
				v := &Virus{ID: id, X: pr.X, Y: pr.Y, Mass: pr.Mass}
				w.burstSplit(c, v)
			} else {
				c.Mass += pr.Mass
			}
			delete(w.projectiles, id)
		}
	}
}

func (w *World) feedVirusCollisions() {
	for fid, fp := range w.feedPellets {
		for vid, v := range w.viruses {
			if math.Hypot(fp.X-v.X, fp.Y-v.Y) >= Radius(v.Mass) {
				continue
			}
			dx, dy := fp.direction()
			popped := v.feed(fp.Mass)
			delete(w.feedPellets, fid)
			if popped {
				pid := w.nextID()
				w.projectiles[pid] = &VirusProjectile{
					ID: pid, X: v.X, Y: v.Y,
					VX: dx * VirusPopProjSpeed, VY: dy * VirusPopProjSpeed,
					Mass: VirusStartMass / 4, CreatedAt: w.now,
				}
				w.respawnVirus(v, vid)
			}
			break
		}
	}
}

// burstSplit implements spec.md §4.7's virus-induced radial burst.
func (w *World) burstSplit(c *Cell, v *Virus) {
	p, ok := w.players[c.OwnerID]
	if !ok {
		return
	}
	pieces := VirusSplitMaxPieces
	if byMass := int(c.Mass / MinMass); byMass < pieces {
		pieces = byMass
	}
	if room := p.MaxCells(w.cells) - len(p.CellIDs) + 1; room < pieces {
		pieces = room
	}
	if pieces < 1 {
		pieces = 1
	}

	parentMass := c.Mass
	pieceMass := parentMass / float64(pieces)
	cx, cy := c.X, c.Y
	pvx, pvy := c.VX, c.VY
	nowMs := nowMillis(w.now)

	p.removeCell(c.ID)
	c.IsAlive = false
	delete(w.cells, c.ID)

	for i := 0; i < pieces; i++ {
		angle := 2 * math.Pi * float64(i) / float64(pieces)
		dx, dy := math.Cos(angle), math.Sin(angle)
		child := &Cell{
			ID:      w.nextID(),
			OwnerID: p.ID,
			X:       cx + dx*Radius(pieceMass),
			Y:       cy + dy*Radius(pieceMass),
			Mass:    pieceMass,
			VX:      dx*VirusSplitImpulse + pvx*VirusVelocityInherit,
			VY:      dy*VirusSplitImpulse + pvy*VirusVelocityInherit,
			IsAlive: true,
		}
		markSplit(child, dx, dy, nowMs)
		w.cells[child.ID] = child
		p.addCell(child.ID)
	}

	w.recordEvent(EventVirusBurst, p.ID, map[string]interface{}{"pieces": pieces, "mass": parentMass})
}

func (w *World) respawnPellet(pl *Pellet) {
	pl.X = w.rng.Float64() * w.width
	pl.Y = w.rng.Float64() * w.height
	pl.Mass = PelletMassMin + w.rng.Float64()*(PelletMassMax-PelletMassMin)
}

func (w *World) respawnVirus(v *Virus, id int64) {
	v.X = w.rng.Float64() * w.width
	v.Y = w.rng.Float64() * w.height
	v.Mass = VirusStartMass
	w.recordEvent(EventVirusPop, 0, map[string]interface{}{"virus": id})
}

// populationPhase is spec.md §4.6 step 7: refill pellets/viruses/bots to
// their targets, grounded on the teacher-adjacent MaintainFoodCount
// deficit-refill idiom (other_examples sonpython/slether server-world.go).
func (w *World) populationPhase() {
	for len(w.pellets) < w.targets.Pellets {
		id := w.nextID()
		w.pellets[id] = &Pellet{
			ID: id, X: w.rng.Float64() * w.width, Y: w.rng.Float64() * w.height,
			Mass: PelletMassMin + w.rng.Float64()*(PelletMassMax-PelletMassMin),
		}
	}
	for len(w.viruses) < w.targets.Viruses {
		id := w.nextID()
		w.viruses[id] = NewVirus(id, w.rng.Float64()*w.width, w.rng.Float64()*w.height)
	}
	botCount := 0
	for _, p := range w.players {
		if p.IsBot {
			botCount++
		}
	}
	for botCount < w.targets.Bots {
		w.spawnBot()
		botCount++
	}
}

func (w *World) spawnBot() {
	id := w.nextID()
	p := NewPlayer(id, fmt.Sprintf("bot-%d", id), randomColor(w.rng), true)
	w.players[id] = p
	w.respawnPlayer(p)
	w.bots[id] = NewBotController(id)
}

func randomColor(rng *rand.Rand) string {
	palette := []string{"#e74c3c", "#3498db", "#2ecc71", "#f1c40f", "#9b59b6", "#1abc9c", "#e67e22"}
	return palette[rng.Intn(len(palette))]
}

// updateLeaderboard refreshes ranked scores; this never feeds back into
// the tick pipeline, matching spec.md §3's score = floor(total_mass)
// being purely derived, not authoritative state.
func (w *World) updateLeaderboard() {
	for id, p := range w.players {
		w.leaderboard.Update(fmt.Sprint(id), float64(p.Score(w.cells)))
	}
}

func (w *World) removeCellFromOwner(c *Cell) {
	if p, ok := w.players[c.OwnerID]; ok {
		p.removeCell(c.ID)
	}
}

func (w *World) recordEvent(t EventType, playerID int64, payload interface{}) {
	pidStr := ""
	if playerID != 0 {
		pidStr = fmt.Sprint(playerID)
	}
	w.eventLog.Emit(NewEvent(t, w.tickCount, pidStr, payload, w.now))
}

// AddPlayer creates a player with no cells yet and spawns its starting
// cell, as join/respawn do (spec.md §3 lifecycles).
func (w *World) AddPlayer(id int64, name, color string, isBot bool) *Player {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := NewPlayer(id, name, color, isBot)
	w.players[id] = p
	w.respawnPlayer(p)
	w.recordEvent(EventJoin, id, nil)
	return p
}

// RemovePlayer deletes a player and all of its cells (spec.md §3: "a Player
// is... destroyed on disconnect").
func (w *World) RemovePlayer(id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return
	}
	for _, cid := range append([]int64(nil), p.CellIDs...) {
		delete(w.cells, cid)
	}
	delete(w.players, id)
	delete(w.bots, id)
	w.leaderboard.Remove(fmt.Sprint(id))
	w.recordEvent(EventLeave, id, nil)
}

// respawnPlayer resets a player to a single starting cell of RespawnMass at
// a random location (spec.md §3: "respawn resets the owner's cell set to a
// single starting cell of mass 1500"). Caller must hold w.mu.
func (w *World) respawnPlayer(p *Player) {
	for _, cid := range append([]int64(nil), p.CellIDs...) {
		delete(w.cells, cid)
	}
	p.CellIDs = p.CellIDs[:0]

	id := w.nextID()
	x := w.width/2 + (w.rng.Float64()-0.5)*w.width*0.5
	y := w.height/2 + (w.rng.Float64()-0.5)*w.height*0.5
	c := NewCell(id, p.ID, x, y, RespawnMass)
	w.cells[id] = c
	p.addCell(id)
}

// Respawn is the public entry point for the "respawn" action (spec.md
// §4.10/§6).
func (w *World) Respawn(p *Player) {
	w.respawnPlayer(p)
	w.recordEvent(EventRespawn, p.ID, nil)
}

// Player looks up a player by id under the World's lock, for HTTP/session
// introspection callers.
func (w *World) Player(id int64) (*Player, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[id]
	return p, ok
}

// Dimensions returns the world's map size, echoed in the session layer's
// `init` message (spec.md §6).
func (w *World) Dimensions() (float64, float64) { return w.width, w.height }

// Leaderboard exposes the read-only ranking API for GET /api/leaderboard.
func (w *World) Leaderboard() *Leaderboard { return w.leaderboard }

// EventLogStats exposes the event log's cumulative counters for metrics
// polling.
func (w *World) EventLogStats() map[string]uint64 { return w.eventLog.Stats() }

// PopulationCounts reports current entity counts for GET /api/state.
func (w *World) PopulationCounts() map[string]int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return map[string]int{
		"players":     len(w.players),
		"cells":       len(w.cells),
		"pellets":     len(w.pellets),
		"viruses":     len(w.viruses),
		"feedPellets": len(w.feedPellets),
		"projectiles": len(w.projectiles),
	}
}
