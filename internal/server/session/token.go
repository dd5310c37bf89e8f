package session

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// TokenResponse is the token material returned by the platform's token
// endpoint.
type TokenResponse struct {
	AccessToken         string          `json:"access_token"`
	RefreshToken        string          `json:"refresh_token,omitempty"`
	ExpiresIn           int64           `json:"expires_in"`
	CurrentUser         json.RawMessage `json:"current_user,omitempty"`
	AccessMode          AccessMode      `json:"access_mode,omitempty"`
	AccessTokenValidity int64           `json:"access_token_validity,omitempty"`
}

// TokenResponseFromOAuth2 maps an oauth2 token, including the platform's
// extra fields, into a TokenResponse. now is used when the provider sent an
// absolute expiry but no expires_in.
func TokenResponseFromOAuth2(tok *oauth2.Token, now time.Time) TokenResponse {
	tr := TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		AccessMode:   AccessModeOnline,
	}

	if v, ok := extraInt(tok, "expires_in"); ok {
		tr.ExpiresIn = v
	} else if !tok.Expiry.IsZero() {
		tr.ExpiresIn = int64(math.Round(tok.Expiry.Sub(now).Seconds()))
	}
	if tr.ExpiresIn < 0 {
		tr.ExpiresIn = 0
	}

	if v, ok := extraInt(tok, "access_token_validity"); ok {
		tr.AccessTokenValidity = v
	} else if !tok.Expiry.IsZero() {
		tr.AccessTokenValidity = tok.Expiry.UnixMilli()
	}

	if mode, ok := tok.Extra("access_mode").(string); ok && mode != "" {
		tr.AccessMode = AccessMode(mode)
	}

	if cu := tok.Extra("current_user"); cu != nil {
		if b, err := json.Marshal(cu); err == nil {
			tr.CurrentUser = b
		}
	}

	return tr
}

func extraInt(tok *oauth2.Token, key string) (int64, bool) {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
