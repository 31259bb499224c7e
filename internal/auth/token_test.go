package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/crewdesk/meetlive/internal/domain"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	h := base64.RawURLEncoding.EncodeToString(header)
	p := base64.RawURLEncoding.EncodeToString(payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(h + "." + p))
	return h + "." + p + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func newTestVerifier(at time.Time) *Verifier {
	v := NewVerifier(testSecret)
	v.now = func() time.Time { return at }
	return v
}

func validClaims(exp time.Time) map[string]any {
	return map[string]any{
		"sub":  "person-1",
		"name": "Ada",
		"role": "HOST",
		"mid":  "meeting-1",
		"exp":  exp.Unix(),
	}
}

func TestVerify_Valid(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(now)
	token := signToken(t, testSecret, validClaims(now.Add(time.Hour)))

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.PersonID != domain.PersonID("person-1") {
		t.Errorf("personID = %q", claims.PersonID)
	}
	if claims.Role != domain.RoleHost {
		t.Errorf("role = %q", claims.Role)
	}
	if claims.MeetingID != domain.MeetingID("meeting-1") {
		t.Errorf("meetingID = %q", claims.MeetingID)
	}
	if claims.DisplayName != "Ada" {
		t.Errorf("displayName = %q", claims.DisplayName)
	}
}

func TestVerify_Rejects(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(now)

	expired := validClaims(now.Add(-time.Minute))
	notYet := validClaims(now.Add(time.Hour))
	notYet["nbf"] = now.Add(time.Minute).Unix()
	noSub := validClaims(now.Add(time.Hour))
	delete(noSub, "sub")
	badRole := validClaims(now.Add(time.Hour))
	badRole["role"] = "ADMIN"

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"two parts", "aaaa.bbbb"},
		{"four parts", "aaaa.bbbb.cccc.dddd"},
		{"wrong secret", signToken(t, "other-secret", validClaims(now.Add(time.Hour)))},
		{"expired", signToken(t, testSecret, expired)},
		{"not yet valid", signToken(t, testSecret, notYet)},
		{"missing sub", signToken(t, testSecret, noSub)},
		{"unknown role", signToken(t, testSecret, badRole)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Verify(tc.token); !errors.Is(err, domain.ErrAuthenticationFailed) {
				t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
			}
		})
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(now)
	token := signToken(t, testSecret, validClaims(now.Add(time.Hour)))

	forged, err := json.Marshal(map[string]any{
		"sub": "attacker", "role": "HOST", "mid": "meeting-1",
		"exp": now.Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString(forged) + "." + parts[2]

	if _, err := v.Verify(tampered); !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for tampered payload, got %v", err)
	}
}
