package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"schoolsite-app/internal/domain/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(err error, detailed bool) (int, map[string]string) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Error(c, "test", err, detailed)

	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

func TestError_PublicVsAdmin(t *testing.T) {
	err := apperr.Upstream("load subscription", errors.New("dial tcp: refused"))

	code, body := run(err, false)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Service temporarily unavailable", body["error"])

	code, body = run(err, true)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body["error"], "dial tcp")
}

func TestError_ConflictKeepsMessage(t *testing.T) {
	code, body := run(apperr.Conflict("slug_taken", "slug already in use"), false)
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "slug already in use", body["error"])
	assert.Equal(t, "slug_taken", body["code"])
}
