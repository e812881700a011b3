package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// InitConfig is the project bootstrap handed to browser clients.
type InitConfig struct {
	DBName string
	Domain string
}

// ServeInitScript emits the /__/init.js bootstrap that points a web
// client at this project.
func ServeInitScript(contextGin *gin.Context, configuration InitConfig) {
	domain := configuration.Domain
	if strings.TrimSpace(domain) == "" {
		domain = contextGin.Request.Host
		if domain == "" {
			domain = "localhost"
		}
	}
	payload := struct {
		Domain string `json:"domain"`
		DBID   string `json:"dbID"`
		DBName string `json:"dbName"`
	}{
		Domain: domain,
		DBID:   configuration.DBName,
		DBName: configuration.DBName,
	}

	encoded, encodeErr := json.Marshal(payload)
	if encodeErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "web.init_script.encode_failed",
		})
		return
	}

	script := fmt.Sprintf("cobble.initializeApp(%s);", string(encoded))

	contextGin.Header("Content-Type", "application/javascript; charset=utf-8")
	contextGin.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
	contextGin.Header("Pragma", "no-cache")
	contextGin.Header("X-Content-Type-Options", "nosniff")
	contextGin.String(http.StatusOK, script)
}
