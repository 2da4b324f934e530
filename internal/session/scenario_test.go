package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
)

func TestScenarioTimerRunsOutThenPluralityEjects(t *testing.T) {
	h := newHarness(t, fastTimings(), "Ana", "Ben")
	h.deal()

	h.waitRoom("discussion timer expired", func(r *models.Room) bool { return r.Status == models.StatusVoting })
	h.waitAll(ScreenVoting)
	assert.Empty(t, h.room().GameState.EndRequests)
	assert.NotEmpty(t, h.room().GameState.StartingPlayerID, "the duty holder picked a starter")

	impostor, citizens := h.roles()
	require.NotNil(t, impostor)
	for _, s := range h.seats {
		target := impostor.id
		if s == impostor {
			target = citizens[0].id
		}
		require.NoError(t, s.client.SubmitVote(h.ctx, []string{target}))
	}

	r := h.waitRoom("result written", func(r *models.Room) bool { return r.Status == models.StatusResult })
	assert.Equal(t, models.RoleCitizen, r.GameState.Winners)
	require.NotNil(t, r.GameState.EjectedPlayer)
	assert.Equal(t, impostor.id, r.GameState.EjectedPlayer.ID)
	assert.Equal(t, "Lighthouse", r.GameState.SecretWord)
	assert.True(t, r.GameState.VotingConcluded)

	for _, s := range h.seats {
		h.waitScreen(s, ScreenResult)
		require.Eventually(t, func() bool { return s.rec.count(EventResult) == 1 }, waitFor, 5*time.Millisecond)
		e, _ := s.rec.find(EventResult)
		assert.Equal(t, models.RoleCitizen, e.Outcome.Winners)
		assert.Equal(t, 1, s.rec.count(EventTimerInitialized), s.id)
		assert.Contains(t, s.voice.Calls(), "join:"+h.code)
		assert.False(t, s.voice.State().Joined, "voice is left on the result screen")
	}
}

func TestScenarioTiedVoteReturnsToDiscussion(t *testing.T) {
	h := newHarness(t, fastTimings(), "Ana", "Ben")
	h.deal()
	h.waitRoom("voting", func(r *models.Room) bool { return r.Status == models.StatusVoting })
	h.waitAll(ScreenVoting)
	voting := h.room()

	// everyone gets exactly one vote
	for i, s := range h.seats {
		target := h.seats[(i+1)%len(h.seats)].id
		require.NoError(t, s.client.SubmitVote(h.ctx, []string{target}))
	}

	r := h.waitRoom("tie resolved", func(r *models.Room) bool {
		return r.Status == models.StatusDiscussion && r.GameState.VoteTied
	})
	assert.Empty(t, r.GameState.Votes)
	assert.Zero(t, r.GameState.VotingExpiresAt)
	assert.False(t, r.GameState.VotingConcluded)
	assert.Equal(t, int64(time.Minute/time.Millisecond), r.GameState.DiscussionDuration)
	assert.Greater(t, r.GameState.DiscussionStartedAt, voting.GameState.DiscussionStartedAt)
	assert.Equal(t, voting.PhaseSeq+1, r.PhaseSeq)

	for _, s := range h.seats {
		h.waitScreen(s, ScreenDiscussion)
		require.Eventually(t, func() bool { return s.rec.count(EventVoteTied) == 1 }, waitFor, 5*time.Millisecond)
		assert.Equal(t, 2, s.rec.count(EventTimerInitialized), "one per discussion round")
		v, err := s.client.View(h.ctx)
		require.NoError(t, err)
		assert.Empty(t, v.Vote)
		assert.Greater(t, v.Remaining, 50*time.Second)
	}
}

func TestScenarioDepartureMakesGameUnplayable(t *testing.T) {
	timings := fastTimings()
	timings.DiscussionPerPlayer = time.Minute
	h := newHarness(t, timings, "Ana", "Ben")
	h.deal()
	h.waitRoom("discussion", func(r *models.Room) bool { return r.Status == models.StatusDiscussion })
	h.waitAll(ScreenDiscussion)

	_, citizens := h.roles()
	var leaver *seat
	for _, s := range citizens {
		if s.id != models.HostID {
			leaver = s
		}
	}
	require.NotNil(t, leaver)
	require.NoError(t, leaver.client.Leave(h.ctx))
	assert.NoError(t, leaver.wait(t), "a voluntary leave ends the session cleanly")

	for _, s := range h.seats {
		if s == leaver {
			continue
		}
		assert.ErrorIs(t, s.wait(t), game.ErrUnplayableGame, s.id)
		notice, ok := s.rec.find(EventNotice)
		require.True(t, ok)
		assert.ErrorIs(t, notice.Err, game.ErrUnplayableGame)
	}

	r := h.waitRoom("reset to lobby", func(r *models.Room) bool { return r.Status == models.StatusLobby })
	assert.Nil(t, r.GameState)
	assert.Equal(t, models.AbortUnplayable, r.AbortReason)

	assert.Zero(t, leaver.rec.count(EventNotice), "the leaver goes home silently")
	events := leaver.rec.all()
	require.NotEmpty(t, events)
	assert.Equal(t, Event{Kind: EventNavigate, Screen: ScreenHome}, events[len(events)-1])
}

func TestScenarioImpostorDepartureMakesGameUnplayable(t *testing.T) {
	timings := fastTimings()
	timings.DiscussionPerPlayer = time.Minute
	h := newHarness(t, timings, "Ana", "Ben")
	h.deal()
	h.waitRoom("discussion", func(r *models.Room) bool { return r.Status == models.StatusDiscussion })
	h.waitAll(ScreenDiscussion)

	// hand the impostor card to a guest so the host stays seated
	impostor, _ := h.roles()
	require.NotNil(t, impostor)
	leaver := impostor
	if impostor.id == models.HostID {
		leaver = h.seats[1]
		cards := "gameState/assignments/"
		require.NoError(t, h.mem.Connect().Update(h.ctx, models.RoomPath(h.code), map[string]any{
			cards + models.HostID + "/isImposter": false,
			cards + models.HostID + "/role":       string(models.RoleCitizen),
			cards + leaver.id + "/isImposter":     true,
			cards + leaver.id + "/role":           string(models.RoleImpostor),
		}))
		h.waitRoom("cards swapped", func(r *models.Room) bool { return r.GameState.Assignments[leaver.id].IsImposter })
	}

	require.NoError(t, leaver.client.Leave(h.ctx))
	assert.NoError(t, leaver.wait(t))

	for _, s := range h.seats {
		if s == leaver {
			continue
		}
		assert.ErrorIs(t, s.wait(t), game.ErrUnplayableGame, s.id)
	}

	r := h.waitRoom("reset to lobby", func(r *models.Room) bool { return r.Status == models.StatusLobby })
	assert.Nil(t, r.GameState)
	assert.Equal(t, models.AbortUnplayable, r.AbortReason)
}

func TestScenarioHostDisconnectDuringVoting(t *testing.T) {
	timings := fastTimings()
	timings.DiscussionPerPlayer = 20 * time.Millisecond
	timings.Voting = time.Minute
	h := newHarness(t, timings, "Ana", "Ben")
	h.deal()
	h.waitRoom("voting", func(r *models.Room) bool { return r.Status == models.StatusVoting })
	h.waitAll(ScreenVoting)

	host := h.byID(models.HostID)
	h.mem.Drop(host.conn)

	r := h.waitRoom("host flagged", func(r *models.Room) bool { return r.HostDisconnected })
	assert.Equal(t, models.StatusVoting, r.Status)
	assert.ErrorIs(t, host.wait(t), game.ErrStoreLost, "the host's own session ends with its connection")

	for _, s := range h.seats[1:] {
		h.waitScreen(s, ScreenLobby)
		notice, ok := s.rec.find(EventNotice)
		require.True(t, ok, s.id)
		assert.ErrorIs(t, notice.Err, game.ErrHostDeparted)
		assert.False(t, s.voice.State().Joined)
	}

	// nobody keeps driving a game whose host is gone
	time.Sleep(5 * timings.Tick)
	assert.Equal(t, models.StatusVoting, h.room().Status)
	assert.Equal(t, r.PhaseSeq, h.room().PhaseSeq)
}
