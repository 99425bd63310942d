// Package wx4dec implements the command-line front end over the
// decrypt core: database and image decryption, batch runs, and the
// key/version probes that support them.
package wx4dec

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	cobra.MousetrapHelpText = ""

	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&Quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentPreRun = initLog
}

// Execute runs the root command and exits non-zero on failure. Exit
// code policy lives in exitCode: InvalidKey and a MacMismatch on page
// 1 share the same class, since from the caller's perspective both
// mean "this key does not open this file."
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "wx4dec",
	Short: "Decrypt WeChat V4 databases and dat images",
	Long: `wx4dec decrypts WeChat's Windows V4 encrypted SQLite databases
and "dat" image attachments, one file or a whole export tree at a time.`,
	Args: cobra.ArbitraryArgs,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceErrors: true,
	SilenceUsage:  true,
}
