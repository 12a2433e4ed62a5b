package arena

import "cellarena/internal/arena/spatial"

// Leaderboard ranks connected players by score using a skip list, giving
// O(log n) updates and O(log n + k) top-N / rank queries regardless of how
// many players are in the arena. It holds no simulation authority — it is
// read by GET /api/leaderboard and updated once per tick by
// World.updateLeaderboard,
// never consulted by the tick pipeline itself.
type Leaderboard struct {
	skipList *spatial.SkipList
}

// LeaderboardEntry is a ranked player as exposed to the leaderboard API.
type LeaderboardEntry struct {
	PlayerID string  `json:"playerId"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}

// NewLeaderboard creates an empty leaderboard.
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{skipList: spatial.NewSkipList()}
}

// Update sets a player's score, which for cellarena is floor(total_mass)
// per spec.md §3 ("score = floor(total_mass)").
func (lb *Leaderboard) Update(playerID string, score float64) {
	lb.skipList.Insert(playerID, score)
}

// Remove drops a player from the leaderboard, called on disconnect.
func (lb *Leaderboard) Remove(playerID string) {
	lb.skipList.Remove(playerID)
}

// Rank returns a player's 1-indexed rank, or 0 if absent.
func (lb *Leaderboard) Rank(playerID string) int {
	return lb.skipList.GetRank(playerID)
}

// Top returns the top n players by score.
func (lb *Leaderboard) Top(n int) []LeaderboardEntry {
	entries := lb.skipList.GetRange(1, n)
	result := make([]LeaderboardEntry, len(entries))
	for i, e := range entries {
		result[i] = LeaderboardEntry{PlayerID: e.Key, Score: e.Score, Rank: i + 1}
	}
	return result
}

// Length returns the number of ranked players.
func (lb *Leaderboard) Length() int {
	return lb.skipList.Length()
}
