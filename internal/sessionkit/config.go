package sessionkit

import (
	"net/http"
	"time"
)

// ServerConfig configures token issuance, cookies, and TTLs.
type ServerConfig struct {
	SigningKey        []byte
	Issuer            string
	CookieDomain      string
	AccessCookieName  string
	RefreshCookieName string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	SameSiteMode      http.SameSite
	AllowInsecureHTTP bool
}
