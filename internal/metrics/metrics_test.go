package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePassesCounter(t *testing.T) {
	before := testutil.ToFloat64(CompilePasses.WithLabelValues("test", "ok"))
	CompilePasses.WithLabelValues("test", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CompilePasses.WithLabelValues("test", "ok")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	EditorCommands.WithLabelValues("set-value", "ok").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "easyblocks_editor_commands_total")
}
