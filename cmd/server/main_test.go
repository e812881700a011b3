package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap/zaptest"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadServerConfigRequiresSigningKey(t *testing.T) {
	resetConfig(t)
	viper.Set("access_ttl", "15m")
	viper.Set("refresh_ttl", "24h")

	_, err := LoadServerConfig()
	if err == nil || !strings.Contains(err.Error(), configCodeMissingJWTSigningKey) {
		t.Fatalf("expected missing signing key error, got %v", err)
	}
}

func TestLoadServerConfigRejectsNonpositiveTTLs(t *testing.T) {
	resetConfig(t)
	viper.Set("jwt_signing_key", "test-key")
	viper.Set("access_ttl", "0s")
	viper.Set("refresh_ttl", "24h")

	_, err := LoadServerConfig()
	if err == nil || !strings.Contains(err.Error(), configCodeInvalidAccessTTL) {
		t.Fatalf("expected access ttl error, got %v", err)
	}

	viper.Set("access_ttl", "15m")
	viper.Set("refresh_ttl", "-1h")
	_, err = LoadServerConfig()
	if err == nil || !strings.Contains(err.Error(), configCodeInvalidRefreshTTL) {
		t.Fatalf("expected refresh ttl error, got %v", err)
	}
}

func TestLoadServerConfigPopulatesCookieAndIssuerDefaults(t *testing.T) {
	resetConfig(t)
	viper.Set("jwt_signing_key", "test-key")
	viper.Set("access_ttl", "15m")
	viper.Set("refresh_ttl", "24h")
	viper.Set("cookie_domain", "example.com")

	serverConfig, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig failed: %v", err)
	}
	if string(serverConfig.SigningKey) != "test-key" {
		t.Fatalf("unexpected signing key")
	}
	if serverConfig.Issuer != tokenIssuer {
		t.Fatalf("unexpected issuer %q", serverConfig.Issuer)
	}
	if serverConfig.AccessCookieName != accessCookieName || serverConfig.RefreshCookieName != refreshCookieName {
		t.Fatalf("unexpected cookie names %q %q", serverConfig.AccessCookieName, serverConfig.RefreshCookieName)
	}
	if serverConfig.CookieDomain != "example.com" {
		t.Fatalf("unexpected cookie domain %q", serverConfig.CookieDomain)
	}
	if serverConfig.AccessTTL != 15*time.Minute || serverConfig.RefreshTTL != 24*time.Hour {
		t.Fatalf("unexpected ttls %v %v", serverConfig.AccessTTL, serverConfig.RefreshTTL)
	}
}

func TestBuildUserStoreDefaultsToMemory(t *testing.T) {
	resetConfig(t)
	viper.Set("database_url", "")
	viper.Set("store_driver", "gorm")

	store, err := buildUserStore(context.Background(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("buildUserStore failed: %v", err)
	}
	if store == nil {
		t.Fatalf("expected a store")
	}
}

func TestBuildUserStoreRejectsUnknownDriver(t *testing.T) {
	resetConfig(t)
	viper.Set("database_url", "sqlite://file:driver_test?mode=memory&cache=shared")
	viper.Set("store_driver", "bolt")

	_, err := buildUserStore(context.Background(), zaptest.NewLogger(t))
	if err == nil || !strings.Contains(err.Error(), configCodeInvalidStoreDriver) {
		t.Fatalf("expected invalid driver error, got %v", err)
	}
}

func TestRunServerRequiresPreparedConfig(t *testing.T) {
	resetConfig(t)

	command := newServeCommand()
	err := runServer(command, nil)
	if err == nil || !strings.Contains(err.Error(), configCodeUninitializedServerConf) {
		t.Fatalf("expected uninitialized config error, got %v", err)
	}
}

func TestZapLoggerMiddlewareLetsRequestsThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(zapLoggerMiddleware(zaptest.NewLogger(t)))
	router.GET("/ping", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"ok": true})
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}
