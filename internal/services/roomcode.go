package services

import (
	"math/rand/v2"
	"strings"

	"github.com/winniek75/flashinput-sub005/internal/config"
)

// CodeGenerator produces candidate room codes. Uniqueness is enforced by the
// registry, not the generator.
type CodeGenerator func() string

// RandomRoomCode draws config.RoomCodeLength symbols uniformly from
// config.RoomCodeAlphabet.
func RandomRoomCode() string {
	var b strings.Builder
	b.Grow(config.RoomCodeLength)
	for i := 0; i < config.RoomCodeLength; i++ {
		b.WriteByte(config.RoomCodeAlphabet[rand.IntN(len(config.RoomCodeAlphabet))])
	}
	return b.String()
}
