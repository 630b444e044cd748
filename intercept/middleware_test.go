package intercept

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareBuffersPerRequest(t *testing.T) {
	rec := newRecorder(slog.LevelInfo)
	logger, s := newLogger(rec)

	app := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger.DebugContext(ctx, "handling "+r.URL.Path)
		if r.URL.Path == "/fail" {
			logger.ErrorContext(ctx, "failed "+r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := Middleware(s, func() Interceptor {
		lb, err := NewLevelBuffer(64, slog.LevelError)
		require.NoError(t, err)
		return lb
	})(app)

	for _, path := range []string{"/ok", "/fail", "/ok"} {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []string{"handling /fail", "failed /fail"}, rec.Messages())
}
