package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/okeynet/okeyd/internal/fairness"
)

// VerifyCmd recomputes a commitment hash from a published reveal, so
// players and operators can check a game offline.
type VerifyCmd struct {
	File string `kong:"arg='',optional='',type='existingfile',help='JSON reveal record as published in OnGameEnded'"`

	ServerSeed   string `kong:"help='Server seed from the reveal'"`
	InitialState string `kong:"help='Serialized initial tile order'"`
	Nonce        uint64 `kong:"help='Commitment nonce'"`
	ClientSeed   string `kong:"help='Client seed, if one was set'"`
	Hash         string `kong:"help='Published commitment hash'"`
}

func (c *VerifyCmd) Run() error {
	reveal := fairness.Reveal{
		ServerSeed:   c.ServerSeed,
		InitialState: c.InitialState,
		Nonce:        c.Nonce,
		ClientSeed:   c.ClientSeed,
		Hash:         c.Hash,
	}
	if c.File != "" {
		raw, err := os.ReadFile(c.File)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &reveal); err != nil {
			return fmt.Errorf("decode reveal record: %w", err)
		}
	}
	if reveal.ServerSeed == "" || reveal.InitialState == "" || reveal.Hash == "" {
		return fmt.Errorf("serverSeed, initialState and commitmentHash are required")
	}

	if fairness.Verify(reveal) {
		fmt.Printf("OK: commitment %s verifies\n", reveal.Hash)
		return nil
	}
	recomputed := fairness.CommitmentHash(reveal.ServerSeed, reveal.InitialState, reveal.Nonce, reveal.ClientSeed)
	return fmt.Errorf("MISMATCH: published %s, recomputed %s", reveal.Hash, recomputed)
}
