// Package client is the Go SDK for the Bhulekh Chain anchoring service.
//
// It covers the full HTTP surface: principal authentication, anchor
// submission, the public anchor counter, journal auditing, and title
// certificates.
//
// # Connecting as an anchoring principal
//
// Mutating operations require a principal token. Pass the shared anchoring
// secret and the principal address you act as; the client exchanges them for
// a token on first use and refreshes it before expiry:
//
//	c, err := client.New("https://anchors.bhulekh.example",
//	    client.WithCredentials("BRIDGE-NODE-1", os.Getenv("BHULEKH_SECRET")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rec, err := c.SubmitAnchor(ctx, client.AnchorSubmission{
//	    SourceNamespace: "UP",
//	    ChannelID:       "land-registry-channel",
//	    BlockStart:      100,
//	    BlockEnd:        199,
//	    StateRoot:       rootBytes,
//	    TxCount:         42,
//	})
//
// # Public reads
//
// The anchor counter, anchor lookups, and the journal are public; a client
// with no credentials can call them:
//
//	c := client.MustNew("https://anchors.bhulekh.example")
//	count, err := c.AnchorCount(ctx)
//
// # Auditing the journal
//
// VerifyJournal asks the service to walk its full hash chain:
//
//	report, err := c.VerifyJournal(ctx)
//	if err == nil && !report.Valid {
//	    log.Fatalf("journal integrity broken: %s", report.Error)
//	}
package client
