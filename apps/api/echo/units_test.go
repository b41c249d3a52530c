package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/diemdanh/core/attendance"
	"github.com/trezcool/diemdanh/tests"
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     string
	wantCode int
	wantData interface{}
}

func setup(t *testing.T) (Server, *attendance.FakeLauncher) {
	fx := testutil.NewFixture(t, nil, nil)
	app := NewServer(
		&Options{AppName: fx.Conf.AppName, TestMode: true, DisableReqLogs: true},
		&Deps{Logger: fx.Logger, AttendanceSvc: fx.Svc},
		nil,
	)
	t.Cleanup(func() { _ = app.Stop(context.Background()) })
	return app, fx.Launcher
}

func do(app Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHome(t *testing.T) {
	app, _ := setup(t)
	rec := do(app, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Diem Danh!", rec.Body.String())
}

func TestUnitAPI_crud(t *testing.T) {
	app, _ := setup(t)
	for i := 0; i < 3; i++ {
		rec := do(app, http.MethodPost, "/v1/units", "")
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	tests := []httpTest{
		{name: "update", method: http.MethodPut, path: "/v1/units/2", body: `{"name":"6B","roster":"12,34","lesson":"practice"}`, wantCode: http.StatusOK},
		{name: "invalid lesson", method: http.MethodPut, path: "/v1/units/2", body: `{"lesson":"lab"}`, wantCode: http.StatusBadRequest,
			wantData: map[string]string{"lesson": "must be one of theory, practice, review"}},
		{name: "not a number", method: http.MethodGet, path: "/v1/units/abc", wantCode: http.StatusNotFound, wantData: httpErr{Error: "not found"}},
		{name: "unknown", method: http.MethodGet, path: "/v1/units/9", wantCode: http.StatusNotFound, wantData: httpErr{Error: "not found"}},
		{name: "delete first", method: http.MethodDelete, path: "/v1/units/1", wantCode: http.StatusNoContent},
		{name: "renumbered", method: http.MethodGet, path: "/v1/units/3", wantCode: http.StatusNotFound, wantData: httpErr{Error: "not found"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			switch want := tt.wantData.(type) {
			case httpErr:
				var got httpErr
				decode(t, rec, &got)
				assert.Equal(t, want, got)
			case map[string]string:
				var got map[string]string
				decode(t, rec, &got)
				assert.Equal(t, want, got)
			}
		})
	}

	var units []attendance.Unit
	decode(t, do(app, http.MethodGet, "/v1/units", ""), &units)
	require.Len(t, units, 2)
	assert.Equal(t, 1, units[0].ID)
	assert.Equal(t, "6B", units[0].Name)
	assert.Equal(t, "12,34", units[0].Roster)
	assert.Equal(t, attendance.LessonPractice, units[0].Lesson)
	assert.Equal(t, 2, units[1].ID)
}

func TestUnitAPI_run(t *testing.T) {
	app, launcher := setup(t)
	launcher.Setup = func(sess *attendance.FakeSession) { sess.Missing["34"] = true }
	do(app, http.MethodPost, "/v1/units", "")
	do(app, http.MethodPut, "/v1/units/1", `{"roster":"12,34","online":"12"}`)

	rec := do(app, http.MethodPost, "/v1/units/1/browser", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var u attendance.Unit
	decode(t, rec, &u)
	assert.True(t, u.HasBrowser)

	rec = do(app, http.MethodPost, "/v1/units/1/run", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report attendance.Report
	decode(t, rec, &report)
	require.Len(t, report.Units, 1)
	assert.Equal(t, attendance.StatusFailed, report.Units[0].Status)
	assert.Equal(t, []attendance.Failure{{UnitID: 1, StudentID: "34", Error: attendance.ErrStudentNotFound.Error()}}, report.Units[0].Failures)
	assert.Equal(t, 1, launcher.Launched(), "the opened browser was not reused")

	var last attendance.Report
	decode(t, do(app, http.MethodGet, "/v1/report", ""), &last)
	assert.Equal(t, report.RunID, last.RunID)

	rec = do(app, http.MethodGet, "/v1/report.txt", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Student id: 34")
}

func TestUnitAPI_runAll_validation(t *testing.T) {
	app, launcher := setup(t)

	rec := do(app, http.MethodPost, "/v1/run-all", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	do(app, http.MethodPost, "/v1/units", "")
	do(app, http.MethodPut, "/v1/units/1", `{"roster":"053,53"}`)
	rec = do(app, http.MethodPost, "/v1/run-all", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var got map[string]string
	decode(t, rec, &got)
	assert.Equal(t, map[string]string{"units.1.roster": "53 (same as 053)"}, got)
	assert.Equal(t, 0, launcher.Launched())

	rec = do(app, http.MethodGet, "/v1/report.txt", "")
	assert.Equal(t, "No student failed in the last run.", rec.Body.String())
}
