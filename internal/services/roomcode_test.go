package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/winniek75/flashinput-sub005/internal/security"
	"github.com/winniek75/flashinput-sub005/internal/services"
)

func TestRandomRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := services.RandomRoomCode()

		normalized, err := security.NormalizeRoomCode(code)
		assert.NoError(t, err)
		assert.Equal(t, code, normalized, "codes are generated upper-case")
		seen[code] = true
	}

	// 36^6 possible codes; 200 draws colliding more than a couple of times means the generator is broken
	assert.Greater(t, len(seen), 195)
}
