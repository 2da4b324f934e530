package models

// RoomsRoot is the document path holding every room
const RoomsRoot = "rooms"

// AbortUnplayable marks a lobby reset caused by too few citizens
const AbortUnplayable = "unplayable"

// Room represents one shared room document
type Room struct {
	Code             string                 `json:"-"`
	Status           Status                 `json:"status"`
	PhaseSeq         int64                  `json:"phaseSeq"`
	CreatedAt        int64                  `json:"createdAt"`
	Host             string                 `json:"host"`
	HostID           string                 `json:"hostId"`
	HostAvatar       int                    `json:"hostAvatar"`
	HostDisconnected bool                   `json:"hostDisconnected,omitempty"`
	HostLeft         bool                   `json:"hostLeft,omitempty"`
	AbortReason      string                 `json:"abortReason,omitempty"`
	Settings         *Settings              `json:"settings,omitempty"`
	Players          map[string]PlayerEntry `json:"players,omitempty"`
	GameState        *GameState             `json:"gameState,omitempty"`
	Lease            *Lease                 `json:"lease,omitempty"`
	Chat             map[string]ChatMessage `json:"chat,omitempty"`
}

// Settings are the start options kept for restarts
type Settings struct {
	ImposterCount int      `json:"imposterCount"`
	Categories    []string `json:"categories,omitempty"`
	Language      string   `json:"language,omitempty"`
}

// Lease is an explicit duty-holder heartbeat
type Lease struct {
	Holder    string `json:"holder"`
	ExpiresAt int64  `json:"expiresAt"`
}

// ChatMessage is one entry of the room chat log
type ChatMessage struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Type       string `json:"type"`
	Timestamp  int64  `json:"timestamp"`
}

// RoomPath returns the document path of a room
func RoomPath(code string) string {
	return RoomsRoot + "/" + code
}

// HostDeparted reports whether the host flagged a disconnect or leave
func (r *Room) HostDeparted() bool {
	return r.HostDisconnected || r.HostLeft
}

// Members returns the lobby roster with the host first
func (r *Room) Members() []Member {
	members := make([]Member, 0, len(r.Players)+1)
	for id, p := range r.Players {
		members = append(members, Member{
			ID:       id,
			Name:     p.Name,
			AvatarID: p.AvatarID,
			UID:      p.UID,
			JoinedAt: p.JoinedAt,
		})
	}
	SortMembers(members)
	if !r.HostLeft {
		host := Member{ID: HostID, Name: r.Host, AvatarID: r.HostAvatar, UID: r.HostID, JoinedAt: r.CreatedAt}
		members = append([]Member{host}, members...)
	}
	return members
}

// HasMember reports whether id is currently part of the room
func (r *Room) HasMember(id string) bool {
	if id == HostID {
		return !r.HostLeft
	}
	_, ok := r.Players[id]
	return ok
}
