package handlers

import (
	"context"
	"net/http"

	hh "heater_host"
	"heater_host/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockHeaterControl struct {
	setTargetErr   error
	offErr         error
	lastName       string
	lastTargetC    float64
	setTargetCalls int
	offCalls       int
}

func (m *mockHeaterControl) SetTarget(ctx context.Context, name string, targetC float64) error {
	m.setTargetCalls++
	m.lastName = name
	m.lastTargetC = targetC
	return m.setTargetErr
}
func (m *mockHeaterControl) Off(ctx context.Context, name string) error {
	m.offCalls++
	m.lastName = name
	return m.offErr
}

type mockMonitoring struct {
	state  hh.HeaterState
	states []hh.HeaterState
	err    error
}

func (m *mockMonitoring) GetState(ctx context.Context, name string) (hh.HeaterState, error) {
	return m.state, m.err
}
func (m *mockMonitoring) GetStates(ctx context.Context) ([]hh.HeaterState, error) {
	return m.states, m.err
}

type mockEventLog struct {
	resp       []hh.HeaterEvent
	err        error
	lastFilter service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]hh.HeaterEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}

type mockCalibration struct {
	run            hh.CalibrationRun
	calibrateErr   error
	runs           []hh.CalibrationRun
	listErr        error
	lastParams     service.CalibrateParams
	lastListHeater string
	calibrateCalls int
}

func (m *mockCalibration) Calibrate(ctx context.Context, p service.CalibrateParams) (hh.CalibrationRun, error) {
	m.calibrateCalls++
	m.lastParams = p
	return m.run, m.calibrateErr
}
func (m *mockCalibration) List(ctx context.Context, name string) ([]hh.CalibrationRun, error) {
	m.lastListHeater = name
	return m.runs, m.listErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
