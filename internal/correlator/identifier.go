package correlator

import (
	"crypto/sha256"
	"encoding/hex"

	"wifitap/internal/types"
)

// electIdentifier applies the precedence rule from spec.md §3:
// serial > registration > utm > operator-ID > hash(MAC). The mac_hash form
// is spec.md's §9 Open Question, resolved here as stated: the first 8 hex
// characters of SHA-256(mac).
func electIdentifier(state *types.UavState) string {
	switch {
	case state.IDSerial != "":
		return state.IDSerial
	case state.IDRegistration != "":
		return state.IDRegistration
	case state.IDUTM != "":
		return state.IDUTM
	case state.OperatorID != "":
		return state.OperatorID
	default:
		return macHash(state.MAC)
	}
}

func macHash(mac string) string {
	sum := sha256.Sum256([]byte(mac))
	return hex.EncodeToString(sum[:])[:8]
}
