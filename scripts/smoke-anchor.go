//go:build ignore

// smoke-anchor.go exercises a locally running anchord end to end:
// token exchange, one-shot initialize, a couple of anchor submissions,
// the public counter, and a journal verification.
//
// Run with: go run scripts/smoke-anchor.go
//
// Expects anchord on localhost:8080 with:
//
//	ANCHOR_OWNER=SMOKE-OWNER
//	AUTH_SECRET_HASH=<bcrypt of "smoke-secret">
package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/siash1/bhulekh-chain/pkg/client"
)

const (
	baseURL   = "http://localhost:8080"
	secret    = "smoke-secret"
	owner     = "SMOKE-OWNER"
	authority = "SMOKE-BRIDGE"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "smoke: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("smoke test passed")
}

func run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ownerClient := client.MustNew(baseURL, client.WithCredentials(owner, secret))
	bridgeClient := client.MustNew(baseURL, client.WithCredentials(authority, secret))

	state, err := ownerClient.Authority(ctx)
	if err != nil {
		return fmt.Errorf("read authority: %w", err)
	}
	if !state.Initialized {
		if err := ownerClient.Initialize(ctx, authority); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		fmt.Printf("initialized authority %s\n", authority)
	} else {
		fmt.Printf("authority already set: %s\n", state.Authority)
	}

	before, err := ownerClient.AnchorCount(ctx)
	if err != nil {
		return fmt.Errorf("count before: %w", err)
	}

	for i := 0; i < 2; i++ {
		root := sha256.Sum256(fmt.Appendf(nil, "smoke batch %d at %d", i, time.Now().UnixNano()))
		rec, err := bridgeClient.SubmitAnchor(ctx, client.AnchorSubmission{
			SourceNamespace: "UP",
			ChannelID:       "land-registry-channel",
			BlockStart:      uint64(i * 100),
			BlockEnd:        uint64(i*100 + 99),
			StateRoot:       root[:],
			TxCount:         10,
		})
		if err != nil {
			return fmt.Errorf("submit anchor %d: %w", i, err)
		}
		fmt.Printf("anchor accepted: sequence %d, journal index %d\n", rec.Sequence, rec.JournalIndex)
	}

	after, err := ownerClient.AnchorCount(ctx)
	if err != nil {
		return fmt.Errorf("count after: %w", err)
	}
	if after.TotalAnchors != before.TotalAnchors+2 {
		return fmt.Errorf("counter mismatch: %d before, %d after", before.TotalAnchors, after.TotalAnchors)
	}

	report, err := ownerClient.VerifyJournal(ctx)
	if err != nil {
		return fmt.Errorf("verify journal: %w", err)
	}
	if !report.Valid {
		return fmt.Errorf("journal integrity broken: %s", report.Error)
	}
	fmt.Printf("journal verified after %d total anchors\n", after.TotalAnchors)
	return nil
}
