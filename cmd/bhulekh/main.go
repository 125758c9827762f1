package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/siash1/bhulekh-chain/internal/identity"
	"github.com/siash1/bhulekh-chain/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile   string
	serverURL string
	address   string
	secret    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bhulekh",
	Short: "Bhulekh Chain anchoring CLI",
	Long: `bhulekh is the command-line interface for the Bhulekh Chain
anchoring service.

It submits state anchors, manages the anchor authority, audits the
append-only journal, and works with land-title certificates.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.bhulekh")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if address == "" {
			address = viper.GetString("address")
		}
		if secret == "" {
			secret = viper.GetString("secret")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.bhulekh/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "anchoring service URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&address, "address", "", "principal address to act as")
	rootCmd.PersistentFlags().StringVar(&secret, "secret", "", "shared anchoring secret (or BHULEKH_SECRET env var)")

	rootCmd.AddCommand(authorityCmd)
	rootCmd.AddCommand(anchorCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(titleCmd)
	rootCmd.AddCommand(secretHashCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an SDK client; credentials attach only when configured.
func newClient() *client.Client {
	if secret == "" {
		secret = os.Getenv("BHULEKH_SECRET")
	}
	opts := []client.Option{}
	if address != "" && secret != "" {
		opts = append(opts, client.WithCredentials(address, secret))
	}
	return client.MustNew(serverURL, opts...)
}

func cmdCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── authority ────────────────────────────────────────────────────────────────

var authorityCmd = &cobra.Command{
	Use:   "authority",
	Short: "Show or change the anchor authority",
}

var authorityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current anchor authority",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		state, err := newClient().Authority(ctx)
		if err != nil {
			return err
		}
		if !state.Initialized {
			fmt.Println("authority: not initialized")
			return nil
		}
		fmt.Printf("authority: %s\n", state.Authority)
		return nil
	},
}

var authorityInitCmd = &cobra.Command{
	Use:   "init <principal>",
	Short: "Initialize the anchor authority (owner only, one-shot)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		if err := newClient().Initialize(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("authority initialized: %s\n", args[0])
		return nil
	},
}

var authorityRotateCmd = &cobra.Command{
	Use:   "rotate <principal>",
	Short: "Rotate the anchor authority (current authority only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		if err := newClient().RotateAuthority(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("authority rotated to: %s\n", args[0])
		return nil
	},
}

func init() {
	authorityCmd.AddCommand(authorityShowCmd)
	authorityCmd.AddCommand(authorityInitCmd)
	authorityCmd.AddCommand(authorityRotateCmd)
}

// ── anchor ───────────────────────────────────────────────────────────────────

var anchorCmd = &cobra.Command{
	Use:   "anchor",
	Short: "Submit and inspect state anchors",
}

var (
	anchorNamespace string
	anchorChannel   string
	anchorStart     uint64
	anchorEnd       uint64
	anchorRoot      string
	anchorTxCount   uint64
)

var anchorSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a state anchor for a block range",
	Example: `  bhulekh anchor submit --namespace UP --channel land-registry-channel \
      --start 100 --end 199 --root ab12...cd34 --tx-count 42`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := hex.DecodeString(anchorRoot)
		if err != nil {
			return fmt.Errorf("--root must be hex-encoded: %w", err)
		}

		ctx, cancel := cmdCtx()
		defer cancel()

		rec, err := newClient().SubmitAnchor(ctx, client.AnchorSubmission{
			SourceNamespace: anchorNamespace,
			ChannelID:       anchorChannel,
			BlockStart:      anchorStart,
			BlockEnd:        anchorEnd,
			StateRoot:       root,
			TxCount:         anchorTxCount,
		})
		if err != nil {
			return err
		}
		fmt.Printf("anchor accepted: sequence %d (journal index %d)\n", rec.Sequence, rec.JournalIndex)
		return nil
	},
}

var anchorCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the total number of accepted anchors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		result, err := newClient().AnchorCount(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("total anchors: %d\n", result.TotalAnchors)
		if result.LastMarker != nil {
			fmt.Printf("last anchor:   journal index %d at %s\n",
				result.LastMarker.JournalIndex,
				result.LastMarker.RecordedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var anchorGetCmd = &cobra.Command{
	Use:   "get <sequence>",
	Short: "Fetch an accepted anchor by sequence number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("sequence must be a positive integer")
		}

		ctx, cancel := cmdCtx()
		defer cancel()

		rec, err := newClient().AnchorBySequence(ctx, seq)
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

func init() {
	anchorSubmitCmd.Flags().StringVar(&anchorNamespace, "namespace", "", "source jurisdiction namespace, e.g. UP")
	anchorSubmitCmd.Flags().StringVar(&anchorChannel, "channel", "", "source ledger channel name")
	anchorSubmitCmd.Flags().Uint64Var(&anchorStart, "start", 0, "first block of the batch (inclusive)")
	anchorSubmitCmd.Flags().Uint64Var(&anchorEnd, "end", 0, "last block of the batch (inclusive)")
	anchorSubmitCmd.Flags().StringVar(&anchorRoot, "root", "", "hex-encoded Merkle state root of the batch")
	anchorSubmitCmd.Flags().Uint64Var(&anchorTxCount, "tx-count", 0, "number of transactions summarized")
	_ = anchorSubmitCmd.MarkFlagRequired("namespace")
	_ = anchorSubmitCmd.MarkFlagRequired("channel")
	_ = anchorSubmitCmd.MarkFlagRequired("root")

	anchorCmd.AddCommand(anchorSubmitCmd)
	anchorCmd.AddCommand(anchorCountCmd)
	anchorCmd.AddCommand(anchorGetCmd)
}

// ── journal ──────────────────────────────────────────────────────────────────

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Audit the append-only anchor journal",
}

var journalShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show journal length and current root hash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		overview, err := newClient().Journal(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "entries:\t%d\n", overview.Entries)
		fmt.Fprintf(w, "root:\t%s\n", overview.Root)
		return w.Flush()
	},
}

var journalVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the journal's full hash chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		report, err := newClient().VerifyJournal(ctx)
		if err != nil {
			return err
		}
		if !report.Valid {
			return fmt.Errorf("journal integrity BROKEN: %s", report.Error)
		}
		fmt.Println("journal integrity OK")
		return nil
	},
}

var journalEntryCmd = &cobra.Command{
	Use:   "entry <index>",
	Short: "Fetch a single journal entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("index must be a non-negative integer")
		}

		ctx, cancel := cmdCtx()
		defer cancel()

		entry, err := newClient().GetJournalEntry(ctx, idx)
		if err != nil {
			return err
		}
		return printJSON(entry)
	},
}

func init() {
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalVerifyCmd)
	journalCmd.AddCommand(journalEntryCmd)
}

// ── title ────────────────────────────────────────────────────────────────────

var titleCmd = &cobra.Command{
	Use:   "title",
	Short: "Manage land-title certificates",
}

var (
	titleProperty string
	titleOwner    string
	titleTx       string
	titleDocument string
	titleNewOwner string
)

var titleIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a title certificate for a property",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		cert, err := newClient().IssueTitle(ctx, client.IssueTitleRequest{
			PropertyID:   titleProperty,
			OwnerHash:    titleOwner,
			FabricTxID:   titleTx,
			DocumentHash: titleDocument,
		})
		if err != nil {
			return err
		}
		fmt.Printf("certificate issued: %s\n", cert.ID)
		return nil
	},
}

var titleGetCmd = &cobra.Command{
	Use:   "get <certificate-id>",
	Short: "Fetch a certificate by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		cert, err := newClient().GetTitle(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cert)
	},
}

var titleTransferCmd = &cobra.Command{
	Use:   "transfer <certificate-id>",
	Short: "Record an ownership transfer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		rec, err := newClient().TransferTitle(ctx, args[0], titleNewOwner, titleTx)
		if err != nil {
			return err
		}
		fmt.Printf("transfer recorded: %s\n", rec.ID)
		return nil
	},
}

var titleFreezeCmd = &cobra.Command{
	Use:   "freeze <certificate-id>",
	Short: "Place a certificate under dispute freeze",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		if err := newClient().FreezeTitle(ctx, args[0], titleTx); err != nil {
			return err
		}
		fmt.Println("certificate frozen")
		return nil
	},
}

var titleUnfreezeCmd = &cobra.Command{
	Use:   "unfreeze <certificate-id>",
	Short: "Lift a dispute freeze",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		if err := newClient().UnfreezeTitle(ctx, args[0], titleTx); err != nil {
			return err
		}
		fmt.Println("certificate unfrozen")
		return nil
	},
}

var titleHistoryCmd = &cobra.Command{
	Use:   "history <certificate-id>",
	Short: "Show a certificate's transfer history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		records, err := newClient().TitleHistory(ctx, args[0])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RECORDED\tACTION\tFROM\tTO\tTX")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				r.RecordedAt.Format(time.RFC3339),
				r.Action, r.PreviousOwnerHash, r.NewOwnerHash, r.FabricTxID)
		}
		return w.Flush()
	},
}

func init() {
	titleIssueCmd.Flags().StringVar(&titleProperty, "property", "", "government property ID")
	titleIssueCmd.Flags().StringVar(&titleOwner, "owner-hash", "", "SHA-256 hash of the owner identity (hex)")
	titleIssueCmd.Flags().StringVar(&titleTx, "tx", "", "source ledger transaction ID")
	titleIssueCmd.Flags().StringVar(&titleDocument, "document-hash", "", "SHA-256 hash of the title document (hex)")
	_ = titleIssueCmd.MarkFlagRequired("property")
	_ = titleIssueCmd.MarkFlagRequired("owner-hash")
	_ = titleIssueCmd.MarkFlagRequired("tx")

	titleTransferCmd.Flags().StringVar(&titleNewOwner, "new-owner-hash", "", "SHA-256 hash of the new owner identity (hex)")
	titleTransferCmd.Flags().StringVar(&titleTx, "tx", "", "source ledger transaction ID")
	_ = titleTransferCmd.MarkFlagRequired("new-owner-hash")
	_ = titleTransferCmd.MarkFlagRequired("tx")

	titleFreezeCmd.Flags().StringVar(&titleTx, "tx", "", "source ledger transaction ID")
	_ = titleFreezeCmd.MarkFlagRequired("tx")
	titleUnfreezeCmd.Flags().StringVar(&titleTx, "tx", "", "source ledger transaction ID")
	_ = titleUnfreezeCmd.MarkFlagRequired("tx")

	titleCmd.AddCommand(titleIssueCmd)
	titleCmd.AddCommand(titleGetCmd)
	titleCmd.AddCommand(titleTransferCmd)
	titleCmd.AddCommand(titleFreezeCmd)
	titleCmd.AddCommand(titleUnfreezeCmd)
	titleCmd.AddCommand(titleHistoryCmd)
}

// ── secret-hash ──────────────────────────────────────────────────────────────

var secretHashCmd = &cobra.Command{
	Use:   "secret-hash",
	Short: "Hash an anchoring secret for the server's auth.secret_hash config",
	Long: `Reads a secret from stdin and prints its bcrypt hash. Put the hash
in anchord's auth.secret_hash setting; the plaintext secret is what
principals present to POST /auth/token.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(os.Stderr, "secret: ")
		reader := bufio.NewReader(os.Stdin)
		raw, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read secret: %w", err)
		}
		raw = strings.TrimRight(raw, "\r\n")

		hash, err := identity.HashSecret(raw)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bhulekh %s\n", version)
	},
}
