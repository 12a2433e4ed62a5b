package arena

// Pellet is a stationary food entity (spec.md §3). Pellets never move or
// expire; they are consumed and respawned by World.collisionPhase and
// replenished to the population target by World.populationPhase.
type Pellet struct {
	ID    int64
	X, Y  float64
	Mass  float64
	Color string
}
