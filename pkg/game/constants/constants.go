package constants

import "time"

const (
	// HandSize is the number of cards dealt to each player at game start
	HandSize = 3
	// MinPlayers is the number of players required to start a game
	MinPlayers = 2
	// MaxPlayers is the room capacity
	MaxPlayers = 6
	// LoseThreshold is the total at or above which the acting player loses
	LoseThreshold = 95
	// KingSetValue is the total a King resets to
	KingSetValue = 70
	// QueenSubtractValue is the amount a Queen takes off the total
	QueenSubtractValue = 10
	// FaceCardBaseValue is the opening-card value of J, Q and K
	FaceCardBaseValue = 10
	// MinReversePlayers is the queue size below which a Jack has no effect
	MinReversePlayers = 3

	// RiverSize is the number of cards laid out for the autoroute
	RiverSize = 5
	// AceLow and AceHigh are the two values a player may give aces in the autoroute
	AceLow  = 1
	AceHigh = 14

	// RoomIDLength is the length of generated room codes
	RoomIDLength = 5
	// RoomLifetime is how long a room and its game live before teardown
	RoomLifetime = 90 * time.Minute
)

// AlertThresholds are the totals that trigger a room-wide alert.
var AlertThresholds = []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
