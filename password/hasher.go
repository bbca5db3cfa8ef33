package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword is returned when hashing an empty string.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned when the input exceeds the hasher's byte limit.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrUnknownHash is returned when a stored hash matches no configured algorithm.
	ErrUnknownHash = errors.New("unsupported password hash format")
)

// Hasher turns plaintext into a self-describing hash and checks candidates against it.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

type recognizer interface {
	recognizes(encodedHash string) bool
}

// bcrypt truncates silently past 72 bytes, so longer inputs are refused instead.
const bcryptMaxBytes = 72

// Bcrypt hashes with golang.org/x/crypto/bcrypt at a fixed cost.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. cost 0 selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > bcryptMaxBytes {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (b *Bcrypt) Verify(password, encodedHash string) (bool, error) {
	if !b.recognizes(encodedHash) {
		return false, ErrUnknownHash
	}
	if len(password) > bcryptMaxBytes {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}

func (b *Bcrypt) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, err
	}
	return cost < b.cost, nil
}

func (b *Bcrypt) recognizes(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}

// Chain hashes with its primary hasher and verifies against whichever member
// recognizes the stored format. Hashes owned by a secondary member always
// report NeedsUpgrade so they migrate to the primary on the next login.
type Chain struct {
	primary Hasher
	others  []Hasher
}

// NewChain builds a chain. Every member must be one of this package's hashers.
func NewChain(primary Hasher, others ...Hasher) *Chain {
	return &Chain{primary: primary, others: others}
}

func (c *Chain) Hash(password string) (string, error) {
	return c.primary.Hash(password)
}

func (c *Chain) Verify(password, encodedHash string) (bool, error) {
	h, err := c.owner(encodedHash)
	if err != nil {
		return false, err
	}
	return h.Verify(password, encodedHash)
}

func (c *Chain) NeedsUpgrade(encodedHash string) (bool, error) {
	h, err := c.owner(encodedHash)
	if err != nil {
		return false, err
	}
	if h != c.primary {
		return true, nil
	}
	return h.NeedsUpgrade(encodedHash)
}

func (c *Chain) owner(encodedHash string) (Hasher, error) {
	if r, ok := c.primary.(recognizer); ok && r.recognizes(encodedHash) {
		return c.primary, nil
	}
	for _, h := range c.others {
		if r, ok := h.(recognizer); ok && r.recognizes(encodedHash) {
			return h, nil
		}
	}
	return nil, ErrUnknownHash
}
