package types

type AutorouteStatus string

const (
	AutorouteInactive           AutorouteStatus = "inactive"
	AutorouteAceSelection       AutorouteStatus = "ace_selection"
	AutorouteDirectionSelection AutorouteStatus = "direction_selection"
	AutorouteGuessing           AutorouteStatus = "guessing"
	AutorouteAwaitingRestart    AutorouteStatus = "awaiting_restart"
	AutorouteCompleted          AutorouteStatus = "completed"
)

type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
)

func (d Direction) Valid() bool {
	return d == DirectionIncreasing || d == DirectionDecreasing
}

// Start is the river index evaluated first in this direction.
func (d Direction) Start(riverSize int) int {
	if d == DirectionDecreasing {
		return riverSize - 1
	}
	return 0
}

// Step is the position delta after a correct guess.
func (d Direction) Step() int {
	if d == DirectionDecreasing {
		return -1
	}
	return 1
}

type Call string

const (
	CallHigher Call = "higher"
	CallLower  Call = "lower"
)

func (c Call) Valid() bool {
	return c == CallHigher || c == CallLower
}

// Guess records one higher/lower attempt against a river position.
type Guess struct {
	Position  int  `json:"position"`
	RiverCard Card `json:"riverCard"`
	DrawnCard Card `json:"drawnCard"`
	Call      Call `json:"guess"`
	Correct   bool `json:"correct"`
	Tie       bool `json:"tie,omitempty"`
}

// AutorouteState is the higher/lower forfeit played by the loser.
// Position is -1 until a direction is chosen.
type AutorouteState struct {
	Status       AutorouteStatus `json:"status"`
	PlayerID     string          `json:"currentPlayerId"`
	AceValue     int             `json:"aceValue,omitempty"`
	River        []Card          `json:"river"`
	Position     int             `json:"currentPosition"`
	Direction    Direction       `json:"direction,omitempty"`
	GuessHistory []Guess         `json:"guessHistory"`
	Discard      []Card          `json:"discard"`
	Attempts     int             `json:"attempts"`
}

func NewAutorouteState(playerID string, river []Card) *AutorouteState {
	return &AutorouteState{
		Status:       AutorouteAceSelection,
		PlayerID:     playerID,
		River:        river,
		Position:     -1,
		GuessHistory: []Guess{},
		Discard:      []Card{},
		Attempts:     1,
	}
}

// InProgress reports whether the autoroute still accepts moves.
func (a *AutorouteState) InProgress() bool {
	switch a.Status {
	case AutorouteAceSelection, AutorouteDirectionSelection, AutorouteGuessing, AutorouteAwaitingRestart:
		return true
	default:
		return false
	}
}

// CardValue ranks a card for higher/lower: aces use the chosen ace value,
// J/Q/K are 11/12/13.
func (a *AutorouteState) CardValue(c Card) int {
	switch c.Rank {
	case RankAce:
		return a.AceValue
	case RankJack:
		return 11
	case RankQueen:
		return 12
	case RankKing:
		return 13
	}
	n, _ := c.Rank.Numeric()
	return n
}

func (a *AutorouteState) Copy() *AutorouteState {
	if a == nil {
		return nil
	}
	cp := *a
	cp.River = append([]Card{}, a.River...)
	cp.GuessHistory = append([]Guess{}, a.GuessHistory...)
	cp.Discard = append([]Card{}, a.Discard...)
	return &cp
}
