package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antrikuy/antrikuy-backend/internal/engine"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
)

func newTestContext(t *testing.T, method, target string, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestHealth(t *testing.T) {
	c, rec := newTestContext(t, http.MethodGet, "/healthz", "")
	require.NoError(t, Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestGetUserIDAcceptsCommonClaimTypes(t *testing.T) {
	for _, v := range []any{uint64(7), int(7), int64(7), float64(7), "7"} {
		c, _ := newTestContext(t, http.MethodGet, "/", "")
		c.Set("user_id", v)
		id, err := getUserID(c)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), id)
	}
}

func TestGetUserIDRejectsMissing(t *testing.T) {
	c, _ := newTestContext(t, http.MethodGet, "/", "")
	_, err := getUserID(c)
	assert.Error(t, err)
}

func TestGetSchoolIDAbsentForSuperAdmin(t *testing.T) {
	c, _ := newTestContext(t, http.MethodGet, "/", "")
	_, ok := getSchoolID(c)
	assert.False(t, ok)

	c.Set("school_id", float64(3))
	id, ok := getSchoolID(c)
	require.True(t, ok)
	assert.Equal(t, uint64(3), id)
}

func TestRespondErrStateError(t *testing.T) {
	c, rec := newTestContext(t, http.MethodPost, "/", "")
	require.NoError(t, respondErr(c, engine.ErrQueueEmpty))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Antrean sedang kosong.")
}

func TestRespondErrSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{repository.ErrEventNotFound, http.StatusNotFound, "Layanan tidak ditemukan"},
		{repository.ErrEntryNotFound, http.StatusNotFound, "Antrean tidak ditemukan"},
		{repository.ErrUserNotFound, http.StatusNotFound, "Pengguna tidak ditemukan"},
		{repository.ErrSchoolNotFound, http.StatusNotFound, "Sekolah tidak ditemukan"},
		{repository.ErrForbidden, http.StatusForbidden, "Akses ditolak."},
		{errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		c, rec := newTestContext(t, http.MethodGet, "/", "")
		require.NoError(t, respondErr(c, tc.err))
		assert.Equal(t, tc.code, rec.Code)
		assert.Contains(t, rec.Body.String(), tc.msg)
	}
}

func TestParamIDRejectsGarbage(t *testing.T) {
	c, _ := newTestContext(t, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("abc")
	_, err := paramID(c, "id")
	assert.Error(t, err)
}

func TestQueueAdminSkipRequiresQueueID(t *testing.T) {
	h := &QueueAdminHandler{}
	c, rec := newTestContext(t, http.MethodPost, "/v1/admin/events/1/skip", `{}`)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.Skip(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueAdminScanRequiresToken(t *testing.T) {
	h := &QueueAdminHandler{}
	c, rec := newTestContext(t, http.MethodPost, "/v1/admin/events/1/scan", `{}`)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.Scan(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":false`)
}

func TestQueueAdminCancelAllRequiresUserID(t *testing.T) {
	h := &QueueAdminHandler{}
	c, rec := newTestContext(t, http.MethodPost, "/v1/admin/queues/cancel-all", `{}`)
	require.NoError(t, h.CancelAll(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "User ID wajib dikirim.")
}

func TestEventCreateRequiresSchoolScope(t *testing.T) {
	h := &EventHandler{}
	c, rec := newTestContext(t, http.MethodPost, "/v1/admin/events", `{"code":"X","name":"Y"}`)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Admin sekolah belum terkait data sekolah")
}

func TestEventCreateRequiresCodeAndName(t *testing.T) {
	h := &EventHandler{}
	c, rec := newTestContext(t, http.MethodPost, "/v1/admin/events", `{"name":"Y"}`)
	c.Set("school_id", uint64(1))
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "idKegiatan dan namaKegiatan wajib diisi")
}
