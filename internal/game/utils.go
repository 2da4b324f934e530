package game

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"math/big"
	"math/rand"
	"strconv"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
)

// GenerateRoomCode creates a random 6-digit room code
func GenerateRoomCode() string {
	span := int64(RoomCodeMax - RoomCodeMin + 1)
	n, err := crand.Int(crand.Reader, big.NewInt(span))
	if err != nil {
		// fallback to math/rand if crypto fails
		return strconv.Itoa(RoomCodeMin + rand.Intn(int(span)))
	}
	return strconv.FormatInt(RoomCodeMin+n.Int64(), 10)
}

// UniqueRoomCode retries GenerateRoomCode until taken reports a free code
func UniqueRoomCode(ctx context.Context, attempts int, taken func(ctx context.Context, code string) (bool, error)) (string, error) {
	if attempts < 1 {
		attempts = RoomCodeAttempts
	}
	for i := 0; i < attempts; i++ {
		code := GenerateRoomCode()
		used, err := taken(ctx, code)
		if err != nil {
			return "", err
		}
		if !used {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrRoomCodeExhausted, attempts)
}

// PhaseLabel returns the player-facing name of a status
func PhaseLabel(status models.Status) string {
	switch status {
	case models.StatusReveal:
		return "Role reveal"
	case models.StatusWhoStarts:
		return "Who starts"
	case models.StatusDiscussion:
		return "Discussion"
	case models.StatusVoting:
		return "Voting"
	case models.StatusResult:
		return "Result"
	default:
		return "Lobby"
	}
}
