package wx4dec

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sjzar/wx4dec/internal/decrypt/database"
	"github.com/sjzar/wx4dec/pkg/util"
)

var infoInPath string

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVarP(&infoInPath, "input", "i", "", "database path (required)")
	_ = infoCmd.MarkFlagRequired("input")
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Report a database file's page layout without decrypting it",
	RunE: func(cmd *cobra.Command, args []string) error {
		infoInPath = loadSettings().resolveRoot(infoInPath)
		info, err := database.GetDatabaseInfo(infoInPath)
		if err != nil {
			return err
		}

		if Quiet {
			return nil
		}
		fmt.Printf("path:        %s\n", info.Path)
		fmt.Printf("size:        %d bytes (%s)\n", info.SizeBytes, util.ByteCountSI(info.SizeBytes))
		fmt.Printf("page size:   %d\n", info.PageSize)
		fmt.Printf("page count:  %d\n", info.TotalPages)
		fmt.Printf("encrypted:   %t\n", info.IsEncrypted)
		if info.IsEncrypted {
			fmt.Printf("salt:        %s\n", hex.EncodeToString(info.Salt))
		}
		return nil
	},
}
