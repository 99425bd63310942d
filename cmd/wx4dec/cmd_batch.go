package wx4dec

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sjzar/wx4dec/internal/batch"
	"github.com/sjzar/wx4dec/internal/decrypt/database"
)

var (
	batchInPath         string
	batchOutPath        string
	batchKey            string
	batchParallel       int
	batchSkipValidation bool
	batchScanOnly       bool
	batchIncremental    bool
	batchWatch          bool
	batchVerify         bool
)

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVarP(&batchInPath, "input", "i", "", "root directory to scan for *.db files, or a name from the config file's roots table (required)")
	batchCmd.Flags().StringVarP(&batchOutPath, "output", "o", "", "output root, mirrors input's directory layout (required)")
	batchCmd.Flags().StringVarP(&batchKey, "key", "k", "", "64-character hex master key (required)")
	batchCmd.Flags().IntVar(&batchParallel, "parallel", -1, "worker count; 0 = sequential, -1 = auto")
	batchCmd.Flags().BoolVar(&batchSkipValidation, "skip-validation", false, "skip the page-0 key check on every file")
	batchCmd.Flags().BoolVar(&batchScanOnly, "scan-only", false, "list matching files without decrypting them")
	batchCmd.Flags().BoolVar(&batchIncremental, "incremental", false, "skip files unchanged since the last run")
	batchCmd.Flags().BoolVar(&batchWatch, "watch", false, "keep running, decrypting new files as they appear")
	batchCmd.Flags().BoolVar(&batchVerify, "verify", false, "open each decrypted output with go-sqlite3 and run PRAGMA quick_check")
	_ = batchCmd.MarkFlagRequired("input")
	_ = batchCmd.MarkFlagRequired("key")
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Scan a directory tree and decrypt every WeChat V4 database in it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !batchScanOnly && batchOutPath == "" {
			return fmt.Errorf("--output is required unless --scan-only is set")
		}

		key, err := parseKey(batchKey)
		if err != nil {
			return err
		}

		settings := loadSettings()
		if !cmd.Flags().Changed("parallel") {
			batchParallel = settings.Workers
		}
		if !cmd.Flags().Changed("incremental") {
			batchIncremental = settings.Incremental
		}
		if !cmd.Flags().Changed("verify") {
			batchVerify = settings.Verify
		}
		batchInPath = settings.resolveRoot(batchInPath)

		opts := batch.Options{
			Workers:        batchParallel,
			SkipValidation: batchSkipValidation,
			ScanOnly:       batchScanOnly,
			Incremental:    batchIncremental,
			Progress: func(e batch.Entry) {
				log.Debugf("processing %s", e.RelPath)
			},
		}

		if batchWatch {
			return runWatch(batchInPath, batchOutPath, key, opts)
		}

		ctx := context.Background()
		results, err := batch.DecryptBatch(ctx, batchInPath, batchOutPath, key, opts)
		if err != nil {
			return err
		}

		if batchVerify {
			verifyBatchResults(results)
		}

		return reportBatchResults(results)
	},
}

// verifyBatchResults runs the optional post-decrypt integrity check on
// every file that decrypted without error, demoting it to a failure in
// place if go-sqlite3 rejects the output.
func verifyBatchResults(results []batch.Result) {
	for i := range results {
		r := &results[i]
		if r.Err != nil || r.Skipped || r.Stats == nil {
			continue
		}
		if err := database.Verify(r.OutPath); err != nil {
			r.Err = err
		}
	}
}

func runWatch(root, outRoot string, key []byte, opts batch.Options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	results, err := batch.Watch(ctx, root, outRoot, key, opts)
	if err != nil {
		return err
	}

	for r := range results {
		printBatchResult(r)
	}
	return nil
}

func reportBatchResults(results []batch.Result) error {
	var failed int
	for _, r := range results {
		printBatchResult(r)
		if r.Err != nil {
			failed++
		}
	}

	if Quiet {
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(results))
		}
		return nil
	}

	fmt.Printf("%d files processed, %d failed\n", len(results), failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

func printBatchResult(r batch.Result) {
	if Quiet {
		return
	}
	switch {
	case r.Err != nil:
		fmt.Printf("FAIL  %s: %v\n", r.Entry.RelPath, r.Err)
	case r.Skipped:
		fmt.Printf("SKIP  %s (unchanged)\n", r.Entry.RelPath)
	case r.Stats == nil:
		fmt.Printf("FOUND %s\n", r.Entry.RelPath)
	default:
		fmt.Printf("OK    %s (%d pages)\n", r.Entry.RelPath, r.Stats.DecryptedPages)
	}
}
