package infra

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// UUIDGenerator gera ids a partir de um UUID v4 (122 bits aleatórios),
// codificado em base64url sem padding (22 caracteres).
type UUIDGenerator struct {
	// Rand troca a fonte de aleatoriedade (nil => crypto/rand via uuid).
	Rand io.Reader
}

func (g UUIDGenerator) Generate() (string, error) {
	var (
		id  uuid.UUID
		err error
	)
	if g.Rand != nil {
		id, err = uuid.NewRandomFromReader(g.Rand)
	} else {
		id, err = uuid.NewRandom()
	}
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(id[:]), nil
}
