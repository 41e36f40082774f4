package config

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrMissingCredentials is returned when the Smarty credentials file is
// absent or malformed. The verifier fails on it before issuing any API call.
var ErrMissingCredentials = eris.New("config: missing credentials")

// Credentials holds the Smarty auth pair.
type Credentials struct {
	AuthID    string
	AuthToken string
}

// LoadCredentials reads the two-line key=value credentials file
// (keys auth_id and auth_token). Unknown lines and blank lines are ignored.
func LoadCredentials(path string) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return Credentials{}, eris.Wrapf(ErrMissingCredentials, "open %s: %v", path, err)
	}
	defer f.Close() //nolint:errcheck

	var creds Credentials
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "auth_id":
			creds.AuthID = strings.TrimSpace(value)
		case "auth_token":
			creds.AuthToken = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return Credentials{}, eris.Wrapf(ErrMissingCredentials, "read %s: %v", path, err)
	}

	if creds.AuthID == "" || creds.AuthToken == "" {
		return Credentials{}, eris.Wrapf(ErrMissingCredentials, "%s must contain auth_id= and auth_token= lines", path)
	}
	return creds, nil
}
