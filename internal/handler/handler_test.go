package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"langarhall/internal/config"
	"langarhall/internal/dto"
	"langarhall/internal/logger"
	"langarhall/internal/model"
	"langarhall/internal/service/monitor"
	ws "langarhall/internal/service/websocket"
)

// countDetector reports a fixed number of people for every frame.
type countDetector struct {
	mu     sync.Mutex
	count  int
	frames [][]byte
}

func (d *countDetector) Count(frame []byte) (int, []byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, frame)
	return d.count, frame, nil
}

func (d *countDetector) received() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.frames...)
}

type env struct {
	cfg      *config.Config
	monitor  *monitor.Monitor
	hub      *ws.HubService
	detector *countDetector
	logger   *logger.Logger
}

func newEnv(t *testing.T, count int) *env {
	t.Helper()

	cfg := &config.Config{
		Password:         "secret",
		LogDirectory:     t.TempDir(),
		ReportDirectory:  t.TempDir(),
		SamplingInterval: time.Hour,
		WindowSize:       3,
		HallCapacity:     5,
		FrameInterval:    time.Hour,
		Sources:          config.DefaultSources(),
		HistoryLimit:     10,
	}
	log := logger.NewDiscard()
	hub := ws.NewHubService(log)
	detector := &countDetector{count: count}

	mon, err := monitor.NewMonitor(cfg, monitor.Dependencies{
		Detector:    detector,
		Broadcaster: hub,
	}, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	go mon.Run(ctx)

	return &env{cfg: cfg, monitor: mon, hub: hub, detector: detector, logger: log}
}

func (e *env) upload(t *testing.T) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/camera/upload", strings.NewReader("\xff\xd8jpeg\xff\xd9"))
	rec := httptest.NewRecorder()
	CameraUploadHandler(e.monitor, e.logger).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func decodeOccupancy(t *testing.T, body string) dto.OccupancyData {
	t.Helper()
	var data dto.OccupancyData
	require.NoError(t, json.Unmarshal([]byte(body), &data))
	return data
}

// ========================================
// Occupancy
// ========================================

func TestOccupancyHandler(t *testing.T) {
	e := newEnv(t, 4)

	rec := httptest.NewRecorder()
	OccupancyHandler(e.monitor).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/occupancy", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeOccupancy(t, rec.Body.String())
	require.False(t, data.Committed)
	require.Zero(t, data.Occupancy)
	require.Nil(t, data.Timestamp)

	e.upload(t)

	rec = httptest.NewRecorder()
	OccupancyHandler(e.monitor).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/occupancy", nil))
	data = decodeOccupancy(t, rec.Body.String())
	require.True(t, data.Committed)
	require.Equal(t, 4, data.Occupancy)
	require.Equal(t, "Camera 0", data.Source)
	require.Equal(t, "Rotis", data.Resources[3].Name)
	require.Equal(t, 8.0, data.Resources[3].Quantity)

	rec = httptest.NewRecorder()
	OccupancyHandler(e.monitor).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/occupancy", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestResetHandler(t *testing.T) {
	e := newEnv(t, 7)
	e.upload(t)

	rec := httptest.NewRecorder()
	ResetHandler(e.monitor, e.logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reset", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	ResetHandler(e.monitor, e.logger).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	current, err := e.monitor.Current(context.Background())
	require.NoError(t, err)
	require.False(t, current.Committed)
	require.Zero(t, current.Occupancy)
	require.False(t, current.CapacityExceeded)
}

func TestSourceHandler(t *testing.T) {
	e := newEnv(t, 1)
	h := SourceHandler(e.monitor, e.logger)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/source", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp sourcesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Camera 0", resp.Current.Name)
	require.Len(t, resp.Sources, 3)

	post := func(id string) *httptest.ResponseRecorder {
		form := url.Values{"id": {id}}
		req := httptest.NewRequest(http.MethodPost, "/api/source", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec = post("2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Camera 2", resp.Current.Name)

	require.Equal(t, http.StatusBadRequest, post("two").Code)
	require.Equal(t, http.StatusNotFound, post("9").Code)
}

// ========================================
// Reports
// ========================================

func TestReportHandler_Download(t *testing.T) {
	e := newEnv(t, 4)
	e.upload(t)

	rec := httptest.NewRecorder()
	ReportHandler(e.monitor, e.cfg, e.logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "food_report_")

	want := "Item,Quantity\n" +
		"Plates,4\n" +
		"Rice (kg),1\n" +
		"Dal (liters),0.8\n" +
		"Rotis,8\n" +
		"Sabji (kg),0.6\n"
	require.Equal(t, want, rec.Body.String())
}

func TestReportHandler_Save(t *testing.T) {
	e := newEnv(t, 0)

	rec := httptest.NewRecorder()
	ReportHandler(e.monitor, e.cfg, e.logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report.csv?save=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, strings.HasPrefix(resp["path"], e.cfg.ReportDirectory))
	require.FileExists(t, resp["path"])
}

func TestChartHandler(t *testing.T) {
	e := newEnv(t, 6)
	e.upload(t)

	rec := httptest.NewRecorder()
	ChartHandler(e.monitor).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chart.svg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "<svg")
	require.Contains(t, rec.Body.String(), "Rice (kg)")
}

// ========================================
// History
// ========================================

type fakeSnapshots struct {
	filter  *model.OccupancyFilter
	records []model.OccupancyRecord
	cleared bool
}

func (f *fakeSnapshots) Insert(rec *model.OccupancyRecord) (int64, error) { return 0, nil }
func (f *fakeSnapshots) GetByID(id int64) (*model.OccupancyRecord, error) { return nil, nil }
func (f *fakeSnapshots) GetLatest() (*model.OccupancyRecord, error)       { return nil, nil }
func (f *fakeSnapshots) Count() (int, error)                              { return len(f.records), nil }

func (f *fakeSnapshots) GetAll(filter *model.OccupancyFilter) ([]model.OccupancyRecord, error) {
	f.filter = filter
	return f.records, nil
}

func (f *fakeSnapshots) DeleteAll() error {
	f.cleared = true
	return nil
}

func TestHistoryHandler(t *testing.T) {
	repo := &fakeSnapshots{}
	cfg := &config.Config{HistoryLimit: 10}
	h := HistoryHandler(repo, cfg, logger.NewDiscard())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
	require.Equal(t, 10, repo.filter.Limit)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=3&session=abc&exceeded=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, repo.filter.Limit)
	require.Equal(t, "abc", repo.filter.SessionID)
	require.True(t, repo.filter.ExceededOnly)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=-1", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearHistoryHandler(t *testing.T) {
	repo := &fakeSnapshots{}
	h := ClearHistoryHandler(repo, logger.NewDiscard())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/clear", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.False(t, repo.cleared)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/history/clear", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, repo.cleared)
}

// ========================================
// Logs and auth
// ========================================

func TestLogsHandlers(t *testing.T) {
	dir := t.TempDir()
	l, err := logger.NewLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	l.Warning("⚠ Capacity Exceeded! (%d/%d)", 6, 5)

	rec := httptest.NewRecorder()
	ShowLogsHandler(dir, logger.WarningFile).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Capacity Exceeded! (6/5)")

	rec = httptest.NewRecorder()
	ClearLogsHandler(l, logger.WarningFile).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	ShowLogsHandler(dir, logger.WarningFile).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	require.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	ShowLogsHandler(t.TempDir(), logger.InfoFile).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginHandler(t *testing.T) {
	cfg := &config.Config{Password: "secret"}
	login := func(password string) *httptest.ResponseRecorder {
		form := url.Values{"password": {password}}
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		LoginHandler(cfg).ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, login("wrong").Code)

	rec := login("secret")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "authenticated", cookies[0].Name)
	require.Equal(t, "true", cookies[0].Value)

	rec = httptest.NewRecorder()
	LogoutHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))
	require.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}
