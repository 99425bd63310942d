package wx4dec

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	imgcodec "github.com/sjzar/wx4dec/internal/decrypt/image"
	"github.com/sjzar/wx4dec/internal/errors"
)

var (
	imageInPath  string
	imageOutPath string
	imageXorKey  string
	imageAesKey  string
)

func init() {
	rootCmd.AddCommand(imageCmd)
	imageCmd.Flags().StringVarP(&imageInPath, "input", "i", "", "encrypted dat file path (required)")
	imageCmd.Flags().StringVarP(&imageOutPath, "output", "o", "", "decrypted output path (required)")
	imageCmd.Flags().StringVar(&imageXorKey, "xor-key", "", "single-byte xor key as hex, e.g. 3a (v3 and v4 tail)")
	imageCmd.Flags().StringVar(&imageAesKey, "aes-key", "", "16-byte v4-v2 aes key as hex (v4-v1 uses a fixed well-known key)")
	_ = imageCmd.MarkFlagRequired("input")
	_ = imageCmd.MarkFlagRequired("output")
}

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Decrypt a single WeChat dat image file",
	RunE: func(cmd *cobra.Command, args []string) error {
		imageInPath = loadSettings().resolveRoot(imageInPath)

		data, err := os.ReadFile(imageInPath)
		if err != nil {
			return errors.ReadFileFailed(imageInPath, err)
		}

		var xorKey byte
		if imageXorKey != "" {
			k, err := strconv.ParseUint(imageXorKey, 16, 8)
			if err != nil {
				return errors.CorruptInput("xor-key must be one hex byte")
			}
			xorKey = byte(k)
		} else if detected, ok := imgcodec.DetectXorKey(data); ok {
			xorKey = detected
		}

		var v4v2Key []byte
		if imageAesKey != "" {
			v4v2Key, err = hex.DecodeString(imageAesKey)
			if err != nil {
				return errors.DecodeKeyFailed(err)
			}

			if imgcodec.DetectVersion(data) == imgcodec.VersionV4v2 && len(data) >= imgcodec.HeaderSize+16 {
				sample := data[imgcodec.HeaderSize : imgcodec.HeaderSize+16]
				if !imgcodec.ValidateImageKey(sample, v4v2Key) {
					return errors.InvalidKey(nil)
				}
			}
		}

		out, ext, err := imgcodec.AutoDecrypt(data, imgcodec.FixedV4v1Key, v4v2Key, xorKey)
		if err != nil {
			return err
		}

		finalOut := imageOutPath
		if filepath.Ext(finalOut) == "" {
			finalOut += "." + ext
		}
		if err := os.WriteFile(finalOut, out, 0o644); err != nil {
			return errors.WriteOutputFailed(err)
		}

		if !Quiet {
			fmt.Printf("decrypted %s -> %s (%s)\n", imageInPath, finalOut, ext)
		}
		return nil
	},
}
