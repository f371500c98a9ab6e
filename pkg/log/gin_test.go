package log

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func Test_Gin_Middleware_Logs_Completed_Request(t *testing.T) {
	req := require.New(t)
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := gin.New()
	r.Use(GinMiddleware(logger))
	r.GET("/health", func(c *gin.Context) {
		l := Ctx(c.Request.Context())
		l.Info().Msg("from handler")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	reqID := w.Header().Get("X-Request-ID")
	req.NotEmpty(reqID)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	req.Len(lines, 2)

	// The handler reached the request-scoped logger through the context.
	var handlerLine map[string]interface{}
	req.NoError(json.Unmarshal(lines[0], &handlerLine))
	req.Equal(reqID, handlerLine[FieldRequestID])
	req.Equal("from handler", handlerLine["message"])

	var completed map[string]interface{}
	req.NoError(json.Unmarshal(lines[1], &completed))
	req.Equal("GET", completed[FieldMethod])
	req.Equal("/health", completed[FieldPath])
	req.EqualValues(http.StatusOK, completed[FieldStatus])
}

func Test_Gin_Middleware_Propagates_Request_ID(t *testing.T) {
	req := require.New(t)
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(GinMiddleware(zerolog.New(&buf)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	in := httptest.NewRequest(http.MethodGet, "/", nil)
	in.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(w, in)

	req.Equal("req-42", w.Header().Get("X-Request-ID"))
	req.Contains(buf.String(), `"req-42"`)
}
