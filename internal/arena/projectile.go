package arena

import "time"

// VirusProjectile is the burst entity ejected when a virus pops
// (spec.md §3, §4.7).
type VirusProjectile struct {
	ID        int64
	X, Y      float64
	VX, VY    float64
	Mass      float64
	CreatedAt time.Time
}

// update advances the projectile one tick. Returns false once expired.
func (pr *VirusProjectile) update(now time.Time) bool {
	if now.Sub(pr.CreatedAt) > ProjectileLifetime {
		return false
	}
	pr.VX *= ProjectileDamping
	pr.VY *= ProjectileDamping
	pr.X += pr.VX
	pr.Y += pr.VY
	return true
}
