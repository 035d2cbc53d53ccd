package scan

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(s *Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), s, NewHub())
	return r
}

func TestHandler_StartStatusStop(t *testing.T) {
	cam := &fakeCamera{hold: true}
	s, _, _ := newTestSession(cam, fakeDecoder{}, &fakeRegistry{})
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/scan/start", nil))
	require.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/scan/start", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/scan/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var st Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, "sess-1", st.SessionID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/scan/stop", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, 1, cam.closedCount())
}

func TestHandler_StartCaptureUnavailable(t *testing.T) {
	cam := &fakeCamera{openErr: errors.New("no device")}
	s, _, _ := newTestSession(cam, fakeDecoder{}, &fakeRegistry{})
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/scan/start", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Error APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeUnavailable, body.Error.Code)
}
