package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

func TestTokenResponseFromOAuth2_WithExtras(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok := (&oauth2.Token{
		AccessToken:  "at",
		RefreshToken: "rt",
		Expiry:       now.Add(time.Hour),
	}).WithExtra(map[string]any{
		"expires_in":            float64(3599),
		"access_mode":           "offline",
		"access_token_validity": float64(1_700_003_599_000),
		"current_user":          map[string]any{"_id": "u1"},
	})

	tr := TokenResponseFromOAuth2(tok, now)

	assert.Equal(t, "at", tr.AccessToken)
	assert.Equal(t, "rt", tr.RefreshToken)
	assert.Equal(t, int64(3599), tr.ExpiresIn)
	assert.Equal(t, AccessModeOffline, tr.AccessMode)
	assert.Equal(t, int64(1_700_003_599_000), tr.AccessTokenValidity)
	assert.JSONEq(t, `{"_id":"u1"}`, string(tr.CurrentUser))
}

func TestTokenResponseFromOAuth2_FallsBackToExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok := &oauth2.Token{AccessToken: "at", Expiry: now.Add(30 * time.Minute)}

	tr := TokenResponseFromOAuth2(tok, now)

	assert.Equal(t, int64(1800), tr.ExpiresIn)
	assert.Equal(t, now.Add(30*time.Minute).UnixMilli(), tr.AccessTokenValidity)
	assert.Equal(t, AccessModeOnline, tr.AccessMode)
	assert.Nil(t, tr.CurrentUser)
}

func TestTokenResponseFromOAuth2_FormEncodedExtras(t *testing.T) {
	tok := (&oauth2.Token{AccessToken: "at"}).WithExtra(map[string]any{"expires_in": "120"})

	tr := TokenResponseFromOAuth2(tok, time.Now())

	assert.Equal(t, int64(120), tr.ExpiresIn)
	assert.Zero(t, tr.AccessTokenValidity)
}

func TestTokenResponse_JSON(t *testing.T) {
	var tr TokenResponse
	err := json.Unmarshal([]byte(`{"access_token":"a","expires_in":10,"access_mode":"online"}`), &tr)
	assert.NoError(t, err)
	assert.Equal(t, "a", tr.AccessToken)
	assert.Equal(t, int64(10), tr.ExpiresIn)
}
