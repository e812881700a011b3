package sessionkit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// The access cookie rides on every request; the refresh cookie is scoped
// to /auth so the longer-lived credential never leaves the auth surface.

func writeAccessCookie(contextGin *gin.Context, configuration ServerConfig, token string, expiresAt time.Time) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.AccessCookieName,
		Value:    token,
		Path:     "/",
		Domain:   configuration.CookieDomain,
		Expires:  expiresAt,
		Secure:   !configuration.AllowInsecureHTTP,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func writeRefreshCookie(contextGin *gin.Context, configuration ServerConfig, token string, expiresAt time.Time) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.RefreshCookieName,
		Value:    token,
		Path:     "/auth",
		Domain:   configuration.CookieDomain,
		Expires:  expiresAt,
		Secure:   !configuration.AllowInsecureHTTP,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func clearSessionCookies(contextGin *gin.Context, configuration ServerConfig) {
	expired := func(name string, path string) *http.Cookie {
		return &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			Domain:   configuration.CookieDomain,
			MaxAge:   -1,
			Secure:   !configuration.AllowInsecureHTTP,
			HttpOnly: true,
			SameSite: configuration.SameSiteMode,
		}
	}
	http.SetCookie(contextGin.Writer, expired(configuration.AccessCookieName, "/"))
	http.SetCookie(contextGin.Writer, expired(configuration.RefreshCookieName, "/auth"))
}
