package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrMalformedCredential marks signature input that cannot be parsed at all,
// as opposed to a signature that parses but does not match.
var ErrMalformedCredential = errors.New("malformed credential")

const walletMessagePrefix = "Sign this message to authenticate with "

// BuildLoginMessage renders the human-readable message a wallet signs to
// authenticate. The embedded timestamp guards against naive replay.
func BuildLoginMessage(systemName, role string, ts time.Time) string {
	return fmt.Sprintf("%s%s as %s\nTimestamp: %d", walletMessagePrefix, systemName, role, ts.UnixMilli())
}

// ParseLoginMessage extracts the role and timestamp from a login message,
// validating its shape against the expected template.
func ParseLoginMessage(systemName, message string) (role string, ts time.Time, err error) {
	expected := walletMessagePrefix + systemName + " as "
	if !strings.HasPrefix(message, expected) {
		return "", time.Time{}, fmt.Errorf("%w: unexpected message format", ErrMalformedCredential)
	}

	rest := message[len(expected):]
	lines := strings.SplitN(rest, "\n", 2)
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "Timestamp: ") {
		return "", time.Time{}, fmt.Errorf("%w: missing timestamp line", ErrMalformedCredential)
	}

	millis, err := strconv.ParseInt(strings.TrimPrefix(lines[1], "Timestamp: "), 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: bad timestamp", ErrMalformedCredential)
	}

	return lines[0], time.UnixMilli(millis).UTC(), nil
}

// VerifyWalletSignature recovers the signing address from an EIP-191
// personal-message signature and compares it case-insensitively against the
// claimed address. A parseable signature from the wrong key returns
// (false, nil); unparseable input returns ErrMalformedCredential.
func VerifyWalletSignature(message, signature, claimedAddress string) (bool, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	if len(sig) != ethcrypto.SignatureLength {
		return false, fmt.Errorf("%w: signature must be %d bytes", ErrMalformedCredential, ethcrypto.SignatureLength)
	}

	// Wallets emit V as 27/28; recovery expects 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return false, fmt.Errorf("%w: invalid recovery id", ErrMalformedCredential)
	}

	pub, err := ethcrypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	recovered := ethcrypto.PubkeyToAddress(*pub)
	return strings.EqualFold(recovered.Hex(), claimedAddress), nil
}
