package wx4dec

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	imgcodec "github.com/sjzar/wx4dec/internal/decrypt/image"
	"github.com/sjzar/wx4dec/internal/errors"
)

var detectInPath string

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().StringVarP(&detectInPath, "input", "i", "", "dat file path (required)")
	_ = detectCmd.MarkFlagRequired("input")
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Report a dat file's encoding version and, for V3, its XOR key",
	RunE: func(cmd *cobra.Command, args []string) error {
		detectInPath = loadSettings().resolveRoot(detectInPath)

		data, err := os.ReadFile(detectInPath)
		if err != nil {
			return errors.ReadFileFailed(detectInPath, err)
		}

		version := imgcodec.DetectVersion(data)

		if Quiet {
			return nil
		}

		switch version {
		case imgcodec.VersionV4v1:
			fmt.Println("version: v4-v1")
		case imgcodec.VersionV4v2:
			fmt.Println("version: v4-v2")
		default:
			fmt.Println("version: v3")
			if key, ok := imgcodec.DetectXorKey(data); ok {
				fmt.Printf("xor key: 0x%02x\n", key)
			} else {
				fmt.Println("xor key: not found")
			}
		}
		return nil
	},
}
