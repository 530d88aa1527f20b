package dashboard

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/meshpage/meshpage/m"
)

const (
	tokenSecretSize = 32
	tokenNonceSize  = 8

	// tokenMaxAge is how long an issued token is accepted.
	// Pages stay open for a long time, so this is generous.
	tokenMaxAge = 24 * time.Hour
)

// Token actions.
const (
	actionMeshFilter = "mesh-filter"
)

// RequestToken authorizes a request to a specific action.
type RequestToken struct {
	Nonce string `json:"nonce"`
	Token string `json:"token"`
}

// CreateRequestToken creates a token for the given actions.
func (d *Dashboard) CreateRequestToken(actions ...string) (*RequestToken, error) {
	return d.createRequestToken(time.Now(), actions...)
}

func (d *Dashboard) createRequestToken(now time.Time, actions ...string) (*RequestToken, error) {
	// Generate nonce.
	nonceData := make([]byte, tokenNonceSize)
	_, err := rand.Read(nonceData)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	nonce := base64.RawURLEncoding.EncodeToString(nonceData) +
		"." + strconv.FormatInt(now.Unix(), 36)

	// Return Request Token.
	return &RequestToken{
		Nonce: nonce,
		Token: d.calculateToken(nonce, actions...),
	}, nil
}

// CheckRequestToken checks if the token authorizes the given actions
// and has not expired.
func (d *Dashboard) CheckRequestToken(nonce, token string, actions ...string) (ok bool) {
	// Check expiry.
	_, issuedField, found := strings.Cut(nonce, ".")
	if !found {
		return false
	}
	issued, err := strconv.ParseInt(issuedField, 36, 64)
	if err != nil {
		return false
	}
	age := time.Since(time.Unix(issued, 0))
	if age > tokenMaxAge || age < -time.Minute {
		return false
	}

	return subtle.ConstantTimeCompare(
		[]byte(d.calculateToken(nonce, actions...)),
		[]byte(token),
	) == 1
}

func (d *Dashboard) calculateToken(nonce string, actions ...string) string {
	hasher := m.BLAKE2b_256.New()

	// Write secret, nonce and lengths.
	_, _ = hasher.Write(d.tokenSecret)
	_, _ = hasher.Write([]byte{uint8(len(nonce)), uint8(len(actions))})
	_, _ = hasher.Write([]byte(nonce))

	// Write actions.
	for i, action := range actions {
		_, _ = hasher.Write([]byte{uint8(i), uint8(len(action))})
		_, _ = hasher.Write([]byte(action))
	}

	defer hasher.Reset() // Internal state may leak data if kept in memory.
	return base64.RawURLEncoding.EncodeToString(hasher.Sum(nil))
}
