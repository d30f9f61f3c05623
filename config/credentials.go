package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Credentials are the subscriber tokens the site sets after login.
type Credentials struct {
	M string
	S string
}

// LoadCredentials reads LMD_M and LMD_S (or lmd_m and lmd_s) after loading
// envFile into the environment. Variables already set win over the file. An
// empty envFile loads ./.env when it exists; an explicit envFile must exist.
func LoadCredentials(envFile string) (Credentials, error) {
	if envFile == "" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return Credentials{}, fmt.Errorf("failed to load .env: %w", err)
		}
	} else if err := godotenv.Load(envFile); err != nil {
		return Credentials{}, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	return Credentials{
		M: firstEnv("LMD_M", "lmd_m"),
		S: firstEnv("LMD_S", "lmd_s"),
	}, nil
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v
		}
	}
	return ""
}

// Empty reports whether either token is missing.
func (c Credentials) Empty() bool {
	return c.M == "" || c.S == ""
}

// CookieHeader renders the session cookies the site expects from a logged-in
// subscriber.
func (c Credentials) CookieHeader() string {
	twipe := url.QueryEscape(fmt.Sprintf(`{"token":"%s"}`, c.M))

	return strings.Join([]string{
		"lmd_sso_twipe=" + twipe,
		"lmd_a_s=" + c.S,
		"lmd_a_sp=" + c.S,
		"lmd_stay_connected=1",
		"lmd_a_m=" + c.M,
		"lmd_a_c=1",
	}, "; ")
}
