package types

import "encoding/json"

type PlayerStatus string

const (
	PlayerStatusActive PlayerStatus = "active"
	PlayerStatusWon    PlayerStatus = "won"
	PlayerStatusLost   PlayerStatus = "lost"
)

type PlayerState struct {
	ID        string       `json:"id"`
	Username  string       `json:"username"`
	Avatar    string       `json:"avatar"`
	Hand      []Card       `json:"cards"`
	Penalties int          `json:"penalties"`
	Status    PlayerStatus `json:"status"`
}

func NewPlayerState(id, username, avatar string) *PlayerState {
	return &PlayerState{
		ID:       id,
		Username: username,
		Avatar:   avatar,
		Hand:     []Card{},
		Status:   PlayerStatusActive,
	}
}

func (p *PlayerState) Active() bool {
	return p.Status == PlayerStatusActive
}

func (p *PlayerState) HasLost() bool {
	return p.Status == PlayerStatusLost
}

func (p *PlayerState) HasWon() bool {
	return p.Status == PlayerStatusWon
}

// Finish moves an active player to a terminal status. Terminal statuses never change.
func (p *PlayerState) Finish(status PlayerStatus) bool {
	if !p.Active() || status == PlayerStatusActive {
		return false
	}
	p.Status = status
	return true
}

func (p *PlayerState) Holds(c Card) bool {
	return IndexOf(p.Hand, c) != -1
}

func (p *PlayerState) Copy() *PlayerState {
	cp := *p
	cp.Hand = append([]Card{}, p.Hand...)
	return &cp
}

// MarshalJSON adds the hasLost/hasWon flags clients render from.
func (p *PlayerState) MarshalJSON() ([]byte, error) {
	type alias PlayerState
	return json.Marshal(struct {
		*alias
		HasLost bool `json:"hasLost"`
		HasWon  bool `json:"hasWon"`
	}{
		alias:   (*alias)(p),
		HasLost: p.HasLost(),
		HasWon:  p.HasWon(),
	})
}
