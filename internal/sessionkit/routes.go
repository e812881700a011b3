package sessionkit

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cobblestore/cobble/internal/userstore"
)

const (
	anonymousEmail       = "anonymous@anonymous.com"
	anonymousDisplayName = "anonymous"
)

// CurrentUser is the public projection of a session returned by every
// auth endpoint.
type CurrentUser struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DBName      string `json:"dbName"`
	DisplayName string `json:"displayName"`
	Anonymous   bool   `json:"anonymous,omitempty"`
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	DBName   string `json:"dbName" binding:"required"`
}

type refreshRequest struct {
	DBName string `json:"dbName"`
}

// MountSessionRoutes registers /auth/login, /auth/register,
// /auth/refresh, /auth/logout, and /auth/me behind the no-cache and
// error-translation middleware.
func MountSessionRoutes(router gin.IRouter, configuration ServerConfig, users userstore.UserStore, clock Clock, logger *zap.Logger, metrics MetricsRecorder) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	registerValidationTagNames()

	authGroup := router.Group("/auth", NoCache(), ErrorTranslator(logger))

	authGroup.OPTIONS("/*any", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"ok": true})
	})

	authGroup.POST("/login", func(contextGin *gin.Context) {
		var inbound credentialsRequest
		if bindErr := contextGin.ShouldBindJSON(&inbound); bindErr != nil {
			abortWithBindingError(contextGin, bindErr)
			return
		}

		user, findErr := users.FindUser(contextGin, inbound.DBName, inbound.Email, inbound.Password)
		if findErr != nil {
			if errors.Is(findErr, userstore.ErrUserNotFound) {
				metrics.Increment(MetricLoginForbidden)
				abortWithError(contextGin, Forbidden("Bad Login", map[string][]string{
					"email": {"User email or password does not exist"},
				}))
				return
			}
			if errors.Is(findErr, userstore.ErrStoreUnavailable) {
				metrics.Increment(MetricStoreUnavailable)
				abortWithError(contextGin, ServiceUnavailable("User store unreachable"))
				return
			}
			abortWithError(contextGin, findErr)
			return
		}

		payload := SessionPayload{
			DBName:      inbound.DBName,
			UID:         user.ID,
			Email:       user.Email,
			DisplayName: user.Email,
		}
		if issueErr := issueSessionCookies(contextGin, configuration, clock, payload); issueErr != nil {
			abortWithError(contextGin, issueErr)
			return
		}
		metrics.Increment(MetricLoginSuccess)
		contextGin.JSON(http.StatusOK, gin.H{
			"loginOk":     true,
			"dbName":      inbound.DBName,
			"currentUser": currentUserFor(payload),
		})
	})

	authGroup.POST("/register", func(contextGin *gin.Context) {
		var inbound credentialsRequest
		if bindErr := contextGin.ShouldBindJSON(&inbound); bindErr != nil {
			abortWithBindingError(contextGin, bindErr)
			return
		}

		userID, createErr := users.CreateUser(contextGin, inbound.DBName, inbound.Email, inbound.Password)
		if createErr != nil {
			if errors.Is(createErr, userstore.ErrStoreUnavailable) {
				metrics.Increment(MetricStoreUnavailable)
				abortWithError(contextGin, ServiceUnavailable("User store unreachable"))
				return
			}
			abortWithError(contextGin, createErr)
			return
		}

		payload := SessionPayload{
			DBName:      inbound.DBName,
			UID:         userID,
			Email:       inbound.Email,
			DisplayName: inbound.Email,
		}
		if issueErr := issueSessionCookies(contextGin, configuration, clock, payload); issueErr != nil {
			abortWithError(contextGin, issueErr)
			return
		}
		metrics.Increment(MetricRegisterSuccess)
		contextGin.JSON(http.StatusOK, gin.H{
			"registerOk":  true,
			"dbName":      inbound.DBName,
			"currentUser": currentUserFor(payload),
		})
	})

	authGroup.POST("/refresh", func(contextGin *gin.Context) {
		dbName := contextGin.Query("dbName")
		var inbound refreshRequest
		if bindErr := contextGin.ShouldBindJSON(&inbound); bindErr == nil && inbound.DBName != "" {
			dbName = inbound.DBName
		}
		if strings.TrimSpace(dbName) == "" {
			abortWithError(contextGin, BadRequest("Validation failed", map[string][]string{
				"dbName": {"is required"},
			}))
			return
		}

		payload, propagated := propagateSession(contextGin, configuration, clock, users, logger, metrics, &dbName)
		if !propagated {
			payload = anonymousPayload(dbName, uuid.NewString())
			metrics.Increment(MetricRefreshAnonymous)
		} else {
			metrics.Increment(MetricRefreshPropagated)
		}

		if issueErr := issueSessionCookies(contextGin, configuration, clock, payload); issueErr != nil {
			abortWithError(contextGin, issueErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{
			"refreshOk":   true,
			"dbName":      dbName,
			"currentUser": currentUserFor(payload),
		})
	})

	authGroup.POST("/logout", func(contextGin *gin.Context) {
		clearSessionCookies(contextGin, configuration)
		metrics.Increment(MetricLogout)
		contextGin.JSON(http.StatusOK, gin.H{"logoutOk": true})
	})

	authGroup.GET("/me", RequireSession(configuration, clock), func(contextGin *gin.Context) {
		stored, exists := contextGin.Get(SessionContextKey)
		payload, ok := stored.(SessionPayload)
		if !exists || !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"currentUser": currentUserFor(payload)})
	})
}

// propagateSession re-establishes an existing session from the refresh
// or access cookie. Token failures degrade to "no session found": the
// refresh contract always yields a usable session, so verification
// errors are logged and swallowed here, never surfaced. A store failure
// after a token verifies is not a token failure; the session continues
// on the claims the token already carries.
func propagateSession(contextGin *gin.Context, configuration ServerConfig, clock Clock, users userstore.UserStore, logger *zap.Logger, metrics MetricsRecorder, dbName *string) (SessionPayload, bool) {
	var verifiedFallback SessionPayload
	haveVerifiedFallback := false
	for _, cookieName := range []string{configuration.RefreshCookieName, configuration.AccessCookieName} {
		sessionCookie, cookieErr := contextGin.Request.Cookie(cookieName)
		if cookieErr != nil || sessionCookie == nil || strings.TrimSpace(sessionCookie.Value) == "" {
			continue
		}
		claims, verifyErr := VerifySessionJWT(clock, sessionCookie.Value, configuration.Issuer, configuration.SigningKey)
		if verifyErr != nil {
			metrics.Increment(MetricTokenVerifyFailure)
			logger.Warn("session token rejected during refresh",
				zap.String("code", "auth.refresh.invalid_token"),
				zap.String("cookie", cookieName),
				zap.Error(verifyErr),
			)
			continue
		}
		if claims.DBName != "" {
			*dbName = claims.DBName
		}
		if claims.Anonymous {
			return anonymousPayload(*dbName, claims.UID), true
		}
		user, findErr := users.FindUserByID(contextGin, *dbName, claims.UID)
		if findErr != nil {
			logger.Warn("refresh subject lookup failed",
				zap.String("code", "auth.refresh.subject_lookup_failed"),
				zap.Error(findErr),
			)
			// The verified claims stand in for the stored record. The
			// access cookie carries the full profile, so it wins over
			// the reduced refresh claims when both lookups fail.
			if !haveVerifiedFallback || (verifiedFallback.Email == "" && claims.Email != "") {
				verifiedFallback = SessionPayload{
					DBName:      *dbName,
					UID:         claims.UID,
					Email:       claims.Email,
					DisplayName: claims.DisplayName,
				}
				haveVerifiedFallback = true
			}
			continue
		}
		return SessionPayload{
			DBName:      *dbName,
			UID:         user.ID,
			Email:       user.Email,
			DisplayName: user.Email,
		}, true
	}
	if haveVerifiedFallback {
		return verifiedFallback, true
	}
	return SessionPayload{}, false
}

func anonymousPayload(dbName string, uid string) SessionPayload {
	return SessionPayload{
		DBName:      dbName,
		UID:         uid,
		Email:       anonymousEmail,
		DisplayName: anonymousDisplayName,
		Anonymous:   true,
	}
}

func currentUserFor(payload SessionPayload) CurrentUser {
	return CurrentUser{
		UID:         payload.UID,
		Email:       payload.Email,
		DBName:      payload.DBName,
		DisplayName: payload.DisplayName,
		Anonymous:   payload.Anonymous,
	}
}

// issueSessionCookies mints the access token plus the reduced refresh
// token and rotates both cookies.
func issueSessionCookies(contextGin *gin.Context, configuration ServerConfig, clock Clock, payload SessionPayload) error {
	accessToken, accessExpiresAt, accessErr := MintSessionJWT(clock, payload, configuration.Issuer, configuration.SigningKey, configuration.AccessTTL)
	if accessErr != nil {
		return accessErr
	}
	refreshToken, refreshExpiresAt, refreshErr := MintSessionJWT(clock, payload.Reduced(), configuration.Issuer, configuration.SigningKey, configuration.RefreshTTL)
	if refreshErr != nil {
		return refreshErr
	}
	writeAccessCookie(contextGin, configuration, accessToken, accessExpiresAt)
	writeRefreshCookie(contextGin, configuration, refreshToken, refreshExpiresAt)
	return nil
}
