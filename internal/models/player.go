package models

import "sort"

// HostID is the reserved player id of the session creator
const HostID = "host-id"

// PlayerWaiting is the status of a freshly joined player entry
const PlayerWaiting = "waiting"

// Profile is what a player brings to a room
type Profile struct {
	UID      string `json:"uid"`
	Name     string `json:"name"`
	AvatarID int    `json:"avatarId"`
}

// PlayerEntry represents a joined player in the room roster
type PlayerEntry struct {
	Name     string `json:"name"`
	AvatarID int    `json:"avatarId"`
	UID      string `json:"uid"`
	Status   string `json:"status"`
	JoinedAt int64  `json:"joinedAt,omitempty"`
}

// Member is a roster entry with its id, the host included
type Member struct {
	ID       string
	Name     string
	AvatarID int
	UID      string
	JoinedAt int64
}

// PlayerRef identifies a player in results
type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SortMembers orders members by join time, then id
func SortMembers(members []Member) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].JoinedAt == members[j].JoinedAt {
			return members[i].ID < members[j].ID
		}
		return members[i].JoinedAt < members[j].JoinedAt
	})
}
