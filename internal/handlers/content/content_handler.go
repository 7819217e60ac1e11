// internal/handlers/content/content_handler.go
package content

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"cuscatlan-service/internal/middleware"
	"cuscatlan-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var departamentoID = regexp.MustCompile(`^[a-z0-9-]{1,64}$`)

// ContentHandler serves premium departamento guides from a directory of JSON files.
type ContentHandler struct {
	dir    string
	logger *zap.Logger
}

func NewContentHandler(dir string, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{dir: dir, logger: logger}
}

// GetPremium returns <dir>/<id>.json. Routed behind RequireSubscription.
func (h *ContentHandler) GetPremium(c *gin.Context) {
	id := c.Param("id")
	if !departamentoID.MatchString(id) {
		response.ValidationError(c, "invalid departamento id", nil)
		return
	}

	data, err := os.ReadFile(filepath.Join(h.dir, id+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		response.NotFound(c, "content not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to read premium content", zap.String("id", id), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "failed to load content", nil)
		return
	}
	if !json.Valid(data) {
		h.logger.Error("premium content is not valid JSON", zap.String("id", id))
		response.Error(c, http.StatusInternalServerError, "failed to load content", nil)
		return
	}

	access, _ := middleware.GetAccess(c)
	response.Success(c, http.StatusOK, "content retrieved", gin.H{
		"id":      id,
		"content": json.RawMessage(data),
		"access":  access,
	})
}
