// Package auth validates the opaque access credential presented at
// connection time. Tokens are compact HS256 JWTs minted by the meeting
// management service; this package only verifies, never issues.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/crewdesk/meetlive/internal/domain"
)

const maxTokenLen = 8 * 1024

// Claims is the resolved identity of a connection attempt.
type Claims struct {
	PersonID    domain.PersonID
	DisplayName string
	Role        domain.Role
	MeetingID   domain.MeetingID
}

type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

type wireClaims struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
	Role string `json:"role"`
	Mid  string `json:"mid"`
	Exp  int64  `json:"exp"`
	Nbf  int64  `json:"nbf,omitempty"`
}

// Verify checks structure, signature and expiry and resolves the claims.
// Every failure maps to domain.ErrAuthenticationFailed; the cause is
// wrapped for logs but callers must refuse the connection either way.
func (v *Verifier) Verify(token string) (Claims, error) {
	headerB64, payloadB64, sigB64, ok := splitToken(token)
	if !ok {
		return Claims{}, fmt.Errorf("%w: malformed token", domain.ErrAuthenticationFailed)
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(headerB64)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: bad header encoding", domain.ErrAuthenticationFailed)
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Claims{}, fmt.Errorf("%w: bad header", domain.ErrAuthenticationFailed)
	}
	if header.Alg != "HS256" {
		return Claims{}, fmt.Errorf("%w: unsupported alg %q", domain.ErrAuthenticationFailed, header.Alg)
	}

	gotSig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil || len(gotSig) != sha256.Size {
		return Claims{}, fmt.Errorf("%w: bad signature encoding", domain.ErrAuthenticationFailed)
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(headerB64))
	mac.Write([]byte{'.'})
	mac.Write([]byte(payloadB64))
	if !hmac.Equal(gotSig, mac.Sum(nil)) {
		return Claims{}, fmt.Errorf("%w: signature mismatch", domain.ErrAuthenticationFailed)
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: bad payload encoding", domain.ErrAuthenticationFailed)
	}
	var wc wireClaims
	if err := json.Unmarshal(payloadJSON, &wc); err != nil {
		return Claims{}, fmt.Errorf("%w: bad payload", domain.ErrAuthenticationFailed)
	}

	now := v.now().Unix()
	if wc.Exp == 0 || now >= wc.Exp {
		return Claims{}, fmt.Errorf("%w: expired", domain.ErrAuthenticationFailed)
	}
	if wc.Nbf != 0 && now < wc.Nbf {
		return Claims{}, fmt.Errorf("%w: not yet valid", domain.ErrAuthenticationFailed)
	}
	if wc.Sub == "" || wc.Mid == "" {
		return Claims{}, fmt.Errorf("%w: missing subject or meeting", domain.ErrAuthenticationFailed)
	}
	role := domain.Role(wc.Role)
	switch role {
	case domain.RoleHost, domain.RoleCohost, domain.RoleParticipant:
	default:
		return Claims{}, fmt.Errorf("%w: unknown role %q", domain.ErrAuthenticationFailed, wc.Role)
	}

	return Claims{
		PersonID:    domain.PersonID(wc.Sub),
		DisplayName: wc.Name,
		Role:        role,
		MeetingID:   domain.MeetingID(wc.Mid),
	}, nil
}

func splitToken(token string) (headerB64, payloadB64, sigB64 string, ok bool) {
	if token == "" || len(token) > maxTokenLen {
		return "", "", "", false
	}
	headerB64, rest, found := strings.Cut(token, ".")
	if !found {
		return "", "", "", false
	}
	payloadB64, sigB64, found = strings.Cut(rest, ".")
	if !found || strings.Contains(sigB64, ".") {
		return "", "", "", false
	}
	if headerB64 == "" || payloadB64 == "" || sigB64 == "" {
		return "", "", "", false
	}
	return headerB64, payloadB64, sigB64, true
}
