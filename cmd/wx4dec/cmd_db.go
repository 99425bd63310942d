package wx4dec

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sjzar/wx4dec/internal/decrypt/database"
	"github.com/sjzar/wx4dec/internal/decrypt/page"
	"github.com/sjzar/wx4dec/pkg/util"
)

var (
	dbInPath         string
	dbOutPath        string
	dbKey            string
	dbSkipValidation bool
	dbVerify         bool
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.Flags().StringVarP(&dbInPath, "input", "i", "", "encrypted database path, or a name from the config file's roots table (required)")
	dbCmd.Flags().StringVarP(&dbOutPath, "output", "o", "", "decrypted output path (required)")
	dbCmd.Flags().StringVarP(&dbKey, "key", "k", "", "64-character hex master key (required)")
	dbCmd.Flags().BoolVar(&dbSkipValidation, "skip-validation", false, "skip the page-0 key check and decrypt straight through")
	dbCmd.Flags().BoolVar(&dbVerify, "verify", false, "open the decrypted output with go-sqlite3 and run PRAGMA quick_check")
	_ = dbCmd.MarkFlagRequired("input")
	_ = dbCmd.MarkFlagRequired("output")
	_ = dbCmd.MarkFlagRequired("key")
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Decrypt a single WeChat V4 database file",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseKey(dbKey)
		if err != nil {
			return err
		}

		settings := loadSettings()
		if !cmd.Flags().Changed("verify") {
			dbVerify = settings.Verify
		}
		dbInPath = settings.resolveRoot(dbInPath)

		stats, err := database.DecryptDatabase(context.Background(), dbInPath, dbOutPath, key, database.Options{
			SkipValidation: dbSkipValidation,
			Progress: func(page, total int64) {
				log.Debugf("page %d/%d", page+1, total)
			},
		})
		if err != nil {
			return err
		}

		if dbVerify {
			if err := database.Verify(dbOutPath); err != nil {
				return err
			}
		}

		if !Quiet {
			fmt.Printf("decrypted %s -> %s (%d pages, %d zero pages, %s)\n",
				dbInPath, dbOutPath, stats.DecryptedPages, stats.ZeroPages,
				util.ByteCountSI(stats.TotalPages*page.PageSize))
		}
		return nil
	},
}
