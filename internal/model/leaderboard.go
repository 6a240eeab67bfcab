package model

// MaxLeaderboardSize caps the trader leaderboard.
const MaxLeaderboardSize = 100

// TraderVolume is a leaderboard row.
type TraderVolume struct {
	Identity Identity `json:"identity"`
	Volume   int64    `json:"volume"`
}
