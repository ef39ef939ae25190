package callback

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bankmirror/internal/infrastructure/saltedge"
)

// Verifier checks the Signature header of inbound callbacks against
// "{Expires-at}|POST|{path}|{body}". An empty secret disables verification.
type Verifier struct {
	secret string
	skew   time.Duration
	now    func() time.Time
}

func NewVerifier(secret string, skew time.Duration) *Verifier {
	return &Verifier{secret: secret, skew: skew, now: time.Now}
}

// Enabled reports whether signatures are checked.
func (v *Verifier) Enabled() bool {
	return v.secret != ""
}

// Verify returns ErrInvalidSignature for a missing or mismatched signature
// and ErrSignatureExpired when Expires-at is older than the allowed skew.
func (v *Verifier) Verify(path, expiresAt, signature string, body []byte) error {
	if !v.Enabled() {
		return nil
	}
	if signature == "" || expiresAt == "" {
		return fmt.Errorf("%w: missing Signature or Expires-at header", ErrInvalidSignature)
	}

	message := saltedge.StringToSign(expiresAt, http.MethodPost, path, string(body))
	if !saltedge.VerifySignature(v.secret, message, signature) {
		return ErrInvalidSignature
	}

	expires, err := strconv.ParseInt(expiresAt, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed Expires-at %q", ErrInvalidSignature, expiresAt)
	}
	if v.now().Add(-v.skew).After(time.Unix(expires, 0)) {
		return ErrSignatureExpired
	}
	return nil
}
