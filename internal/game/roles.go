package game

import (
	"math/rand"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
)

// AssignRoles deals impostor and citizen cards to members.
// Cards are dealt on one shuffle and play order comes from a second one.
func AssignRoles(members []models.Member, impostors int, word models.Word, rng *rand.Rand) map[string]models.Assignment {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	dealt := make([]models.Member, len(members))
	copy(dealt, members)
	rng.Shuffle(len(dealt), func(i, j int) { dealt[i], dealt[j] = dealt[j], dealt[i] })

	cards := make([]models.Assignment, len(dealt))
	for i, m := range dealt {
		card := models.Assignment{
			ID:       m.ID,
			Name:     m.Name,
			AvatarID: m.AvatarID,
		}
		if i < impostors {
			card.Role = models.RoleImpostor
			card.IsImposter = true
			card.Word = ImpostorWord
			card.OriginalWord = ImpostorWord
			card.Hint = word.ImpostorHint
			if card.Hint == "" {
				card.Hint = "Blend in"
			}
		} else {
			card.Role = models.RoleCitizen
			card.Word = word.Word
			card.OriginalWord = word.Word
			card.Hint = word.Hint
		}
		cards[i] = card
	}

	rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	out := make(map[string]models.Assignment, len(cards))
	for i, card := range cards {
		card.Order = i
		out[card.ID] = card
	}
	return out
}
