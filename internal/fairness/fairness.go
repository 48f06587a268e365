// Package fairness implements the provably-fair shuffle protocol: server
// seed generation, HMAC-SHA256 commitments over the initial tile order,
// reveal verification, and the deterministic RNG the committed shuffle
// consumes.
package fairness

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"
)

// seedBytes is the server seed entropy (128 bits).
const seedBytes = 16

// NewServerSeed draws a fresh server seed from the CSPRNG, hex encoded.
func NewServerSeed() (string, error) {
	buf := make([]byte, seedBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read server seed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NonceSource hands out monotonically increasing nonces for the process.
type NonceSource struct {
	n atomic.Uint64
}

// Next returns the next nonce. The first call returns 1.
func (s *NonceSource) Next() uint64 {
	return s.n.Add(1)
}

// Commitment seals a shuffled tile order until the game ends.
type Commitment struct {
	ServerSeed   string
	InitialState string
	Nonce        uint64
	ClientSeed   string
	Hash         string
	CreatedAt    time.Time
	Revealed     bool
	RevealedAt   time.Time
}

// NewCommitment computes the commitment hash over the serialized initial
// state. The wire formula is fixed:
//
//	hash = hex(HMAC-SHA256(key=serverSeed, msg=initialState ":" nonce [":" clientSeed]))
func NewCommitment(serverSeed, initialState string, nonce uint64, clientSeed string, now time.Time) Commitment {
	return Commitment{
		ServerSeed:   serverSeed,
		InitialState: initialState,
		Nonce:        nonce,
		ClientSeed:   clientSeed,
		Hash:         CommitmentHash(serverSeed, initialState, nonce, clientSeed),
		CreatedAt:    now,
	}
}

// CommitmentHash computes the lowercase hex commitment digest.
func CommitmentHash(serverSeed, initialState string, nonce uint64, clientSeed string) string {
	msg := initialState + ":" + strconv.FormatUint(nonce, 10)
	if clientSeed != "" {
		msg += ":" + clientSeed
	}
	mac := hmac.New(sha256.New, []byte(serverSeed))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// Reveal is the post-game disclosure that lets anyone re-derive the hash.
type Reveal struct {
	ServerSeed   string `json:"serverSeed"`
	InitialState string `json:"initialState"`
	Nonce        uint64 `json:"nonce"`
	ClientSeed   string `json:"clientSeed,omitempty"`
	Hash         string `json:"commitmentHash"`
}

// Reveal marks the commitment revealed and returns the disclosure record.
func (c *Commitment) Reveal(now time.Time) Reveal {
	c.Revealed = true
	c.RevealedAt = now
	return Reveal{
		ServerSeed:   c.ServerSeed,
		InitialState: c.InitialState,
		Nonce:        c.Nonce,
		ClientSeed:   c.ClientSeed,
		Hash:         c.Hash,
	}
}

// Verify re-derives the commitment from a reveal and compares in constant
// time. Any single-field tamper fails.
func Verify(r Reveal) bool {
	want := CommitmentHash(r.ServerSeed, r.InitialState, r.Nonce, r.ClientSeed)
	return subtle.ConstantTimeCompare([]byte(want), []byte(r.Hash)) == 1
}

// DetRNG is a deterministic HMAC-SHA256 counter RNG. Two instances built
// from the same (serverSeed, clientSeed, nonce) yield identical streams,
// which makes the committed shuffle reproducible from the reveal.
type DetRNG struct {
	key     []byte
	counter uint64
	buf     []byte
}

// NewDetRNG derives the stream key from serverSeed || clientSeed || nonce.
func NewDetRNG(serverSeed, clientSeed string, nonce uint64) *DetRNG {
	material := serverSeed + clientSeed + strconv.FormatUint(nonce, 10)
	sum := sha256.Sum256([]byte(material))
	return &DetRNG{key: sum[:]}
}

func (r *DetRNG) nextBlock() {
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], r.counter)
	r.counter++
	mac := hmac.New(sha256.New, r.key)
	mac.Write(ctr[:])
	r.buf = mac.Sum(r.buf[:0])
}

// Uint64 returns the next 64 bits of the stream.
func (r *DetRNG) Uint64() uint64 {
	if len(r.buf) < 8 {
		r.nextBlock()
	}
	v := binary.BigEndian.Uint64(r.buf[:8])
	r.buf = r.buf[8:]
	return v
}

// IntN returns a uniform value in [0, n) using rejection sampling.
// It satisfies rules.Source.
func (r *DetRNG) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	bound := uint64(n)
	// Largest multiple of bound below 2^64; values at or above it would
	// bias the modulo.
	limit := ^uint64(0) - ^uint64(0)%bound
	for {
		v := r.Uint64()
		if v < limit {
			return int(v % bound)
		}
	}
}
