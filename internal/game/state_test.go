package game

import (
	"context"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
)

func fourPlayers() *models.GameState {
	return &models.GameState{
		ImposterCount: 1,
		Assignments: map[string]models.Assignment{
			"host-id": {ID: "host-id", Order: 0},
			"b":       {ID: "b", Order: 1},
			"c":       {ID: "c", Order: 2, IsImposter: true},
			"d":       {ID: "d", Order: 3},
		},
	}
}

func TestCountVotes(t *testing.T) {
	tests := []struct {
		name    string
		votes   map[string][]string
		tie     bool
		ejected string
	}{
		{"no votes is a tie", nil, true, ""},
		{"unique plurality", map[string][]string{"a": {"c"}, "b": {"c"}, "c": {"a"}}, false, "c"},
		{"two-way tie", map[string][]string{"a": {"b"}, "b": {"a"}, "c": {"d"}, "d": {"c"}}, true, ""},
		{"multi-suspect ballots", map[string][]string{"a": {"b", "c"}, "b": {"c", "d"}, "c": {"a", "b"}, "d": {"c", "a"}}, false, "c"},
		{"empty ballots count as no votes", map[string][]string{"a": {}, "b": {}}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CountVotes(tt.votes)
			assert.Equal(t, tt.tie, result.IsTie)
			assert.Equal(t, tt.ejected, result.Ejected)
		})
	}
}

func TestCountVotesTieProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ids := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < 500; i++ {
		votes := map[string][]string{}
		for _, voter := range ids {
			if rng.Intn(4) == 0 {
				continue
			}
			votes[voter] = []string{ids[rng.Intn(len(ids))]}
		}
		result := CountVotes(votes)

		top := 0
		holders := 0
		for _, n := range result.VoteCount {
			if n > top {
				top, holders = n, 1
			} else if n == top {
				holders++
			}
		}
		if top == 0 || holders > 1 {
			require.True(t, result.IsTie, "votes=%v", votes)
			require.Empty(t, result.Ejected)
		} else {
			require.False(t, result.IsTie, "votes=%v", votes)
			require.Equal(t, top, result.VoteCount[result.Ejected])
		}
	}
}

func TestConsensusActivatesAtThreeOfFour(t *testing.T) {
	gs := fourPlayers()
	now := int64(10_000)

	gs.EndRequests = map[string]bool{"host-id": true, "b": true}
	assert.Equal(t, ConsensusNone, EvaluateConsensus(gs, now))

	gs.EndRequests["d"] = true
	assert.Equal(t, ConsensusStart, EvaluateConsensus(gs, now))

	gs.ConsensusExpiresAt = now + 20_000
	assert.Equal(t, ConsensusNone, EvaluateConsensus(gs, now+1_000))
	assert.Equal(t, ConsensusExpired, EvaluateConsensus(gs, now+20_000))

	delete(gs.EndRequests, "b")
	assert.Equal(t, ConsensusCancel, EvaluateConsensus(gs, now+2_000))

	gs.ConsensusExpiresAt = 0
	gs.EndRequests = map[string]bool{"host-id": true, "b": true, "c": true, "d": true}
	assert.Equal(t, ConsensusFull, EvaluateConsensus(gs, now))
}

func TestConsensusIgnoresDepartedFlags(t *testing.T) {
	gs := fourPlayers()
	gs.EndRequests = map[string]bool{"host-id": true, "b": true, "gone": true}
	assert.Equal(t, ConsensusNone, EvaluateConsensus(gs, 0))
}

func TestConsensusNeedsImpostors(t *testing.T) {
	gs := fourPlayers()
	gs.ImposterCount = 0
	gs.EndRequests = map[string]bool{"host-id": true, "b": true, "c": true}
	assert.Equal(t, ConsensusNone, EvaluateConsensus(gs, 0))
}

func TestMaxImpostors(t *testing.T) {
	assert.Equal(t, 1, MaxImpostors(3))
	assert.Equal(t, 1, MaxImpostors(4))
	assert.Equal(t, 2, MaxImpostors(5))
	assert.Equal(t, 3, MaxImpostors(8))
}

func TestValidateVote(t *testing.T) {
	gs := fourPlayers()
	assert.NoError(t, ValidateVote(gs, "b", []string{"c"}))
	assert.ErrorIs(t, ValidateVote(gs, "b", []string{"b"}), ErrInvalidVote)
	assert.ErrorIs(t, ValidateVote(gs, "b", []string{"c", "d"}), ErrInvalidVote)
	assert.ErrorIs(t, ValidateVote(gs, "b", []string{"zz"}), ErrInvalidVote)

	gs.ImposterCount = 2
	assert.ErrorIs(t, ValidateVote(gs, "b", []string{"c", "c"}), ErrInvalidVote)
	assert.NoError(t, ValidateVote(gs, "b", []string{"c", "d"}))
}

func TestAssignRoles(t *testing.T) {
	members := []models.Member{
		{ID: models.HostID, Name: "Host"},
		{ID: "p1", Name: "Ana"},
		{ID: "p2", Name: "Ben"},
		{ID: "p3", Name: "Cy"},
		{ID: "p4", Name: "Di"},
	}
	word := models.Word{Word: "Paris", Hint: "City of Lights", ImpostorHint: "Cities"}

	cards := AssignRoles(members, 2, word, rand.New(rand.NewSource(42)))
	require.Len(t, cards, 5)

	orders := map[int]bool{}
	impostors := 0
	for id, card := range cards {
		assert.Equal(t, id, card.ID)
		orders[card.Order] = true
		if card.IsImposter {
			impostors++
			assert.Equal(t, models.RoleImpostor, card.Role)
			assert.Equal(t, ImpostorWord, card.Word)
			assert.Equal(t, "Cities", card.Hint)
		} else {
			assert.Equal(t, models.RoleCitizen, card.Role)
			assert.Equal(t, "Paris", card.Word)
			assert.Equal(t, "Paris", card.OriginalWord)
		}
	}
	assert.Equal(t, 2, impostors)
	assert.Len(t, orders, 5)
}

func TestGenerateRoomCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := GenerateRoomCode()
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, RoomCodeMin)
		require.LessOrEqual(t, n, RoomCodeMax)
	}
}

func TestUniqueRoomCodeRetriesOnCollision(t *testing.T) {
	calls := 0
	code, err := UniqueRoomCode(context.Background(), 5, func(context.Context, string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Equal(t, 3, calls)

	_, err = UniqueRoomCode(context.Background(), 2, func(context.Context, string) (bool, error) {
		return true, nil
	})
	assert.ErrorIs(t, err, ErrRoomCodeExhausted)
}
