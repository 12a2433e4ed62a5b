package arena

// Virus starts at VirusStartMass, can be fed by FeedPellets, and pops into
// a VirusProjectile on reaching VirusMaxMass (spec.md §3, §4.7).
type Virus struct {
	ID   int64
	X, Y float64
	Mass float64
}

// NewVirus constructs a virus at its starting mass.
func NewVirus(id int64, x, y float64) *Virus {
	return &Virus{ID: id, X: x, Y: y, Mass: VirusStartMass}
}

// feed increases virus mass from an absorbed FeedPellet and reports
// whether the virus should pop this tick.
func (v *Virus) feed(mass float64) (popped bool) {
	v.Mass += mass
	return v.Mass >= VirusMaxMass
}
