package hash

import (
	"github.com/alexedwards/argon2id"
	customErrors "github.com/nordfeed/identity-service/internal/domain/identity/errors"
	"github.com/nordfeed/identity-service/internal/infra/config"
)

// Hasher is the password hashing port: one-way salted hash with an adaptive
// work factor, constant-time verify.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}

type Argon2Hasher struct {
	params *argon2id.Params
}

// NewArgon2Hasher takes its work factor from the config at construction;
// nothing in the request path reads ambient state.
func NewArgon2Hasher(cfg *config.Config) *Argon2Hasher {
	return &Argon2Hasher{
		params: &argon2id.Params{
			Memory:      cfg.HashMemory,
			Iterations:  cfg.HashIterations,
			Parallelism: cfg.HashParallelism,
			SaltLength:  cfg.HashSaltLength,
			KeyLength:   cfg.HashKeyLength,
		},
	}
}

func (h *Argon2Hasher) Hash(plaintext string) (string, error) {
	hashed, err := argon2id.CreateHash(plaintext, h.params)
	if err != nil {
		return "", customErrors.WrapInternal(err, "Hash")
	}
	return hashed, nil
}

func (h *Argon2Hasher) Verify(plaintext, hash string) (bool, error) {
	ok, err := argon2id.ComparePasswordAndHash(plaintext, hash)
	if err != nil {
		return false, customErrors.WrapInternal(err, "Verify")
	}
	return ok, nil
}
