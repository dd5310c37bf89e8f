package session

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/extsession/internal/common"
)

// Record is the JSON blob stored under a session id. Expires is epoch
// milliseconds.
type Record struct {
	CompanyID           *string         `json:"company_id"`
	OrganizationID      *string         `json:"organization_id"`
	State               *string         `json:"state"`
	Scope               []string        `json:"scope"`
	Expires             *int64          `json:"expires"`
	AccessMode          AccessMode      `json:"access_mode"`
	AccessToken         *string         `json:"access_token"`
	CurrentUser         json.RawMessage `json:"current_user"`
	RefreshToken        *string         `json:"refresh_token"`
	ExpiresIn           *int64          `json:"expires_in"`
	ExtensionID         *string         `json:"extension_id"`
	AccessTokenValidity *int64          `json:"access_token_validity"`
	RedirectPath        *string         `json:"redirect_path"`
}

func (r Record) encode() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRecord(blob string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", common.ErrMalformedRecord, err)
	}
	if string(r.CurrentUser) == "null" {
		r.CurrentUser = nil
	}
	return r, nil
}
