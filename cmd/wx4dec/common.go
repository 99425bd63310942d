package wx4dec

import (
	"encoding/hex"

	"github.com/sjzar/wx4dec/internal/decrypt/page"
	"github.com/sjzar/wx4dec/internal/errors"
)

// parseKey decodes a 64-character hex master key into its 32 raw
// bytes. Case-insensitive, per the key's external representation.
func parseKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.DecodeKeyFailed(err)
	}
	if len(key) != page.KeySize {
		return nil, errors.InvalidKey(nil)
	}
	return key, nil
}
