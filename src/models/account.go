package models

import (
	"encoding/json"
	"fmt"
)

// AccountCredentials holds the broker API credentials for a named account.
type AccountCredentials struct {
	Name      string `json:"-"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	Paper     bool   `json:"paper"`
}

// ParseAccounts decodes the ACCOUNTS environment variable, a JSON object
// mapping account name to credentials.
func ParseAccounts(raw string) (map[string]AccountCredentials, error) {
	if raw == "" {
		return nil, fmt.Errorf("ParseAccounts: no accounts configured")
	}

	var accounts map[string]AccountCredentials
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		return nil, fmt.Errorf("ParseAccounts: failed to decode json: %w", err)
	}

	for name, creds := range accounts {
		if creds.APIKey == "" || creds.APISecret == "" {
			return nil, fmt.Errorf("ParseAccounts: account %s is missing api credentials", name)
		}

		creds.Name = name
		accounts[name] = creds
	}

	return accounts, nil
}
