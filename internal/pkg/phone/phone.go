// internal/pkg/phone/phone.go
package phone

import (
	"strings"

	xerrors "wifipay-service/internal/pkg/errors"
)

// Carrier identifies the mobile network a number belongs to. Used for
// routing hints and UX only, never for business decisions.
type Carrier string

const (
	CarrierMTN     Carrier = "mtn"
	CarrierOrange  Carrier = "orange"
	CarrierNextel  Carrier = "nextel"
	CarrierUnknown Carrier = "unknown"
)

const countryCode = "237"

// Normalize converts user input into the single international form the
// gateway expects: 237XXXXXXXXX (12 digits, no plus sign).
//
// Accepted inputs: "+2376...", "2376...", "002376...", "6XXXXXXXX" and any
// of those with spaces, dots or dashes mixed in.
func Normalize(input string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, input)

	switch {
	case strings.HasPrefix(digits, "00"+countryCode):
		digits = digits[2+len(countryCode):]
	case strings.HasPrefix(digits, countryCode):
		digits = digits[len(countryCode):]
	}

	if len(digits) != 9 || digits[0] != '6' {
		return "", xerrors.Wrap(xerrors.ErrInvalidInput, "invalid phone number "+input)
	}

	return countryCode + digits, nil
}

// CarrierOf infers the carrier from the three-digit prefix of a normalized
// number. Returns CarrierUnknown for numbers it cannot place.
func CarrierOf(normalized string) Carrier {
	if !strings.HasPrefix(normalized, countryCode) || len(normalized) != 12 {
		return CarrierUnknown
	}
	prefix := normalized[len(countryCode) : len(countryCode)+3]

	switch {
	case prefix >= "650" && prefix <= "654",
		prefix >= "670" && prefix <= "679",
		prefix >= "680" && prefix <= "684":
		return CarrierMTN
	case prefix >= "655" && prefix <= "659",
		prefix >= "690" && prefix <= "699",
		prefix >= "685" && prefix <= "689":
		return CarrierOrange
	case prefix >= "660" && prefix <= "669":
		return CarrierNextel
	default:
		return CarrierUnknown
	}
}
