package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cobblestore/cobble/internal/rules"
	"github.com/cobblestore/cobble/internal/sessionkit"
	"github.com/cobblestore/cobble/internal/userpg"
	"github.com/cobblestore/cobble/internal/userstore"
	"github.com/cobblestore/cobble/internal/web"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cobble",
		Short: "Per-project document store server with signed session auth",
	}
	rootCmd.AddCommand(newServeCommand())
	return rootCmd
}

func newServeCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:     "serve [path]",
		Short:   "Serve a project: session auth endpoints, rules handoff, and client bootstrap",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	serveCmd.Flags().String("listen_addr", ":4444", "HTTP listen address")
	serveCmd.Flags().String("db_name", "example", "Project (dbName) this instance serves by default")
	serveCmd.Flags().StringP("rules", "r", "", "Rules file path; defaults to <path>/rules.json")
	serveCmd.Flags().String("cookie_domain", "", "Cookie domain; empty for host-only")
	serveCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret for session tokens")
	serveCmd.Flags().Duration("access_ttl", 15*time.Minute, "Access token TTL")
	serveCmd.Flags().Duration("refresh_ttl", 60*24*time.Hour, "Refresh token TTL")
	serveCmd.Flags().String("database_url", "", "User store URL (postgres:// or sqlite://; leave empty for in-memory store)")
	serveCmd.Flags().String("store_driver", "gorm", "User store driver: gorm or pgx (pgx requires a postgres database_url)")
	serveCmd.Flags().Bool("dev_insecure_http", false, "Allow insecure HTTP cookies for local dev")
	serveCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients")
	serveCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled; empty reflects any origin in dev mode")

	_ = viper.BindPFlag("listen_addr", serveCmd.Flags().Lookup("listen_addr"))
	_ = viper.BindPFlag("db_name", serveCmd.Flags().Lookup("db_name"))
	_ = viper.BindPFlag("rules", serveCmd.Flags().Lookup("rules"))
	_ = viper.BindPFlag("cookie_domain", serveCmd.Flags().Lookup("cookie_domain"))
	_ = viper.BindPFlag("jwt_signing_key", serveCmd.Flags().Lookup("jwt_signing_key"))
	_ = viper.BindPFlag("access_ttl", serveCmd.Flags().Lookup("access_ttl"))
	_ = viper.BindPFlag("refresh_ttl", serveCmd.Flags().Lookup("refresh_ttl"))
	_ = viper.BindPFlag("database_url", serveCmd.Flags().Lookup("database_url"))
	_ = viper.BindPFlag("store_driver", serveCmd.Flags().Lookup("store_driver"))
	_ = viper.BindPFlag("dev_insecure_http", serveCmd.Flags().Lookup("dev_insecure_http"))
	_ = viper.BindPFlag("enable_cors", serveCmd.Flags().Lookup("enable_cors"))
	_ = viper.BindPFlag("cors_allowed_origins", serveCmd.Flags().Lookup("cors_allowed_origins"))

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return serveCmd
}

const (
	accessCookieName  = "access-token"
	refreshCookieName = "refresh-token"
	tokenIssuer       = "cobble-auth"

	configCodeMissingJWTSigningKey    = "config.missing_jwt_signing_key"
	configCodeInvalidAccessTTL        = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_ttl"
	configCodeInvalidStoreDriver      = "config.invalid_store_driver"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadServerConfig validates startup configuration. A missing signing
// key or nonpositive TTL aborts startup rather than serving a
// half-configured instance.
func LoadServerConfig() (sessionkit.ServerConfig, error) {
	jwtSigningKey := viper.GetString("jwt_signing_key")
	if jwtSigningKey == "" {
		return sessionkit.ServerConfig{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}

	accessTTL := viper.GetDuration("access_ttl")
	if accessTTL <= 0 {
		return sessionkit.ServerConfig{}, configError(configCodeInvalidAccessTTL, "access_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return sessionkit.ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	return sessionkit.ServerConfig{
		SigningKey:        []byte(jwtSigningKey),
		Issuer:            tokenIssuer,
		CookieDomain:      viper.GetString("cookie_domain"),
		AccessCookieName:  accessCookieName,
		RefreshCookieName: refreshCookieName,
		AccessTTL:         accessTTL,
		RefreshTTL:        refreshTTL,
	}, nil
}

func buildUserStore(ctx context.Context, logger *zap.Logger) (userstore.UserStore, error) {
	databaseURL := viper.GetString("database_url")
	storeDriver := viper.GetString("store_driver")

	if databaseURL == "" {
		logger.Info("using in-memory user store")
		return userstore.NewMemoryUserStore(), nil
	}

	switch storeDriver {
	case "pgx":
		pool, poolErr := userpg.BuildPool(ctx, databaseURL)
		if poolErr != nil {
			return nil, poolErr
		}
		if schemaErr := userpg.EnsureSchema(ctx, pool); schemaErr != nil {
			return nil, schemaErr
		}
		logger.Info("using pgx user store")
		return userpg.NewPostgresUserStore(pool), nil
	case "gorm":
		store, storeErr := userstore.NewDatabaseUserStore(ctx, databaseURL)
		if storeErr != nil {
			return nil, storeErr
		}
		logger.Info("using persistent user store", zap.String("driver", store.Driver()))
		return store, nil
	default:
		return nil, configError(configCodeInvalidStoreDriver, "store_driver must be gorm or pgx")
	}
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(sessionkit.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	listenAddr := viper.GetString("listen_addr")
	dbName := viper.GetString("db_name")
	devInsecureHTTP := viper.GetBool("dev_insecure_http")
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	projectPath := "."
	if len(arguments) > 0 && arguments[0] != "" {
		projectPath = arguments[0]
	}
	rulesPath := viper.GetString("rules")
	if rulesPath == "" {
		rulesPath = filepath.Join(projectPath, "rules.json")
	}

	rulesDocument, rulesErr := rules.Load(rulesPath)
	if rulesErr != nil {
		logger.Error("rules document unusable",
			zap.String("code", "startup.rules_load_failed"),
			zap.String("rules_file", rulesPath),
			zap.Error(rulesErr))
		return rulesErr
	}
	rulesRegistry := rules.NewRegistry()
	if setErr := rulesRegistry.SetRules(dbName, rulesDocument); setErr != nil {
		return setErr
	}

	userStore, storeErr := buildUserStore(context.Background(), logger)
	if storeErr != nil {
		return storeErr
	}

	serverConfig.AllowInsecureHTTP = devInsecureHTTP
	serverConfig.SameSiteMode = http.SameSiteStrictMode
	if enableCORS {
		serverConfig.SameSiteMode = http.SameSiteNoneMode
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	// With CORS enabled the middleware answers browser preflights with
	// 204 before routing; the OPTIONS /auth/* acknowledgement handler
	// serves non-CORS deployments.
	if enableCORS {
		if len(corsAllowedOrigins) > 0 {
			corsMiddleware, corsErr := web.ConfigureCORS(logger, corsAllowedOrigins)
			if corsErr != nil {
				return corsErr
			}
			router.Use(corsMiddleware)
		} else {
			if !devInsecureHTTP {
				return configError("config.cors_origins_required", "cors_allowed_origins must be provided unless dev_insecure_http is set")
			}
			logger.Warn("reflecting any cors origin",
				zap.String("code", "cors.permissive_dev_mode"))
			router.Use(web.PermissiveCORS())
		}
	}

	clock := sessionkit.NewSystemClock()
	metricsRecorder := sessionkit.NewCounterMetrics()

	sessionkit.MountSessionRoutes(router, serverConfig, userStore, clock, logger, metricsRecorder)
	rules.MountRulesRoutes(router, rulesRegistry)

	router.GET("/__/init.js", func(contextGin *gin.Context) {
		web.ServeInitScript(contextGin, web.InitConfig{DBName: dbName})
	})

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening",
		zap.String("addr", listenAddr),
		zap.String("db_name", dbName))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
