package wx4dec

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sjzar/wx4dec/internal/decrypt/database"
)

var (
	validateInPath string
	validateKeyHex string
)

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateInPath, "input", "i", "", "encrypted database path (required)")
	validateCmd.Flags().StringVarP(&validateKeyHex, "key", "k", "", "64-character hex master key (required)")
	_ = validateCmd.MarkFlagRequired("input")
	_ = validateCmd.MarkFlagRequired("key")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check whether a key opens a database file without decrypting it",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseKey(validateKeyHex)
		if err != nil {
			return err
		}
		validateInPath = loadSettings().resolveRoot(validateInPath)

		ok, err := database.ValidateKey(validateInPath, key)
		if err != nil {
			return err
		}
		if !ok {
			if !Quiet {
				fmt.Println("key does not match")
			}
			os.Exit(exitInvalidKey)
		}

		if !Quiet {
			fmt.Println("key matches")
		}
		return nil
	},
}
