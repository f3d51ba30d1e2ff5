package sbi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gholtzap/amf/internal/config"
	amfcontext "github.com/gholtzap/amf/internal/context"
)

type fakeReleaser struct {
	released []uint64
	ok       bool
}

func (f *fakeReleaser) ReleaseUeContext(amfUeNgapID uint64) bool {
	f.released = append(f.released, amfUeNgapID)
	return f.ok
}

func newTestServer(t *testing.T) (*Server, *amfcontext.RanContextManager, *amfcontext.UeContextManager, *fakeReleaser) {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	ranContext := amfcontext.NewRanContextManager()
	ueContext := amfcontext.NewUeContextManager()
	releaser := &fakeReleaser{ok: true}
	s := NewServer(config.DefaultConfig(), ranContext, ueContext, releaser, logger)
	return s, ranContext, ueContext, releaser
}

func TestHandleHealth(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestGetUeContext(t *testing.T) {
	s, _, ueContext, _ := newTestServer(t)

	ctx := ueContext.Create(ueContext.AllocateAmfUeNgapID())
	ctx.State = amfcontext.UeStateConnected
	ctx.RanID = "208_gnb_01020304"
	ueContext.Update(ctx)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/namf-comm/v1/ue-contexts/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got amfcontext.UeContext
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(1), got.AmfUeNgapID)
	assert.Equal(t, amfcontext.UeStateConnected, got.State)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/namf-comm/v1/ue-contexts/999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/namf-comm/v1/ue-contexts/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUeContexts(t *testing.T) {
	s, _, ueContext, _ := newTestServer(t)

	for i := 0; i < 3; i++ {
		ctx := ueContext.Create(ueContext.AllocateAmfUeNgapID())
		ctx.State = amfcontext.UeStateConnected
		ueContext.Update(ctx)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/namf-comm/v1/ue-contexts", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)
}

func TestReleaseUeContext(t *testing.T) {
	s, _, _, releaser := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/namf-comm/v1/ue-contexts/7/release", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uint64{7}, releaser.released)

	releaser.ok = false
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/namf-comm/v1/ue-contexts/8/release", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRanNodes(t *testing.T) {
	s, ranContext, _, _ := newTestServer(t)

	ranContext.Update(amfcontext.RanContext{
		RanID: "208_gnb_01020304",
		Addr:  "10.0.0.1:38412",
		State: amfcontext.RanStateConnected,
	})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/namf-comm/v1/ran-nodes", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total    int `json:"total"`
		RanNodes []struct {
			RanID string `json:"ranId"`
		} `json:"ranNodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Total)
	assert.Equal(t, "208_gnb_01020304", body.RanNodes[0].RanID)
}
