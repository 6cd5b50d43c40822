package models

// User is a player profile from the users collection.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Credentials is a self-hosted login keyed by username.
type Credentials struct {
	Username     string `json:"username"`
	UserID       string `json:"userId"`
	PasswordHash []byte `json:"passwordHash"`
}

type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting"
	RoomStatusPlaying RoomStatus = "playing"
)

type RoomPlayer struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type RoomSettings struct {
	MaxPlayers   int  `json:"maxPlayers"`
	SpecialRules bool `json:"specialRules"`
}

// Room is a lobby document. Players are kept in join order.
type Room struct {
	ID        string       `json:"id"`
	HostID    string       `json:"hostId"`
	Players   []RoomPlayer `json:"players"`
	Settings  RoomSettings `json:"settings"`
	Status    RoomStatus   `json:"status"`
	CreatedAt int64        `json:"createdAt"`
	ExpiresAt int64        `json:"expiresAt"`
}

// HasPlayer reports whether userID is seated in the room.
func (r *Room) HasPlayer(userID string) bool {
	for _, p := range r.Players {
		if p.ID == userID {
			return true
		}
	}
	return false
}

func (r *Room) Copy() *Room {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Players = append([]RoomPlayer{}, r.Players...)
	return &cp
}
