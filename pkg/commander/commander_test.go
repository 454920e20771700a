package commander_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"

	"github.com/einherij/cockpit/pkg/commander"
	"github.com/einherij/cockpit/pkg/commander/mocks"
)

type CommanderSuite struct {
	suite.Suite

	backend *recordingBackend
	cmdr    *commander.Commander
}

func TestCommanderSuite(t *testing.T) {
	suite.Run(t, new(CommanderSuite))
}

func (s *CommanderSuite) SetupTest() {
	s.backend = newRecordingBackend()
	s.cmdr = commander.New(s.backend.srv.URL, nil)
}

func (s *CommanderSuite) TearDownTest() {
	s.backend.srv.Close()
}

func (s *CommanderSuite) TestMoveIssuesSinglePOST() {
	res, err := s.cmdr.Move(context.Background(), commander.MoveForward, 30)
	s.Require().NoError(err)
	s.Equal("success", res.Status)

	reqs := s.backend.requests()
	s.Require().Len(reqs, 1)
	s.Equal(http.MethodPost, reqs[0].method)
	s.Equal("/move", reqs[0].path)
	s.JSONEq(`{"direction":"forward","distance":30}`, reqs[0].body)
}

func (s *CommanderSuite) TestFixedEndpoints() {
	ctx := context.Background()
	ops := []struct {
		endpoint string
		call     func() (*commander.Result, error)
	}{
		{"/connect", func() (*commander.Result, error) { return s.cmdr.Connect(ctx) }},
		{"/disconnect", func() (*commander.Result, error) { return s.cmdr.Disconnect(ctx) }},
		{"/takeoff", func() (*commander.Result, error) { return s.cmdr.TakeOff(ctx) }},
		{"/land", func() (*commander.Result, error) { return s.cmdr.Land(ctx) }},
		{"/emergency", func() (*commander.Result, error) { return s.cmdr.Emergency(ctx) }},
		{"/rotate", func() (*commander.Result, error) { return s.cmdr.Rotate(ctx, commander.RotateClockwise, 90) }},
		{"/flip", func() (*commander.Result, error) { return s.cmdr.Flip(ctx, commander.FlipForward) }},
		{"/speed", func() (*commander.Result, error) { return s.cmdr.SetSpeed(ctx, 50) }},
		{"/track_object", func() (*commander.Result, error) { return s.cmdr.ToggleTracking(ctx, true) }},
	}
	for _, op := range ops {
		_, err := op.call()
		s.Require().NoError(err, op.endpoint)
	}
	reqs := s.backend.requests()
	s.Require().Len(reqs, len(ops))
	for i, op := range ops {
		s.Equal(op.endpoint, reqs[i].path)
	}
	s.JSONEq(`{"direction":"clockwise","degrees":90}`, reqs[5].body)
	s.JSONEq(`{"direction":"forward"}`, reqs[6].body)
	s.JSONEq(`{"speed":50}`, reqs[7].body)
	s.JSONEq(`{"enabled":true}`, reqs[8].body)
}

func (s *CommanderSuite) TestRejectedWithoutRetry() {
	s.backend.setStatus(http.StatusInternalServerError)

	_, err := s.cmdr.Move(context.Background(), commander.MoveForward, 30)
	s.Require().Error(err)
	s.ErrorIs(err, commander.ErrCommandRejected)
	s.Len(s.backend.requests(), 1)
}

func (s *CommanderSuite) TestSetSpeedCallsAreIndependent() {
	_, err := s.cmdr.SetSpeed(context.Background(), 75)
	s.Require().NoError(err)
	_, err = s.cmdr.SetSpeed(context.Background(), 10)
	s.Require().NoError(err)

	reqs := s.backend.requests()
	s.Require().Len(reqs, 2)
	s.Equal("/speed", reqs[0].path)
	s.Equal("/speed", reqs[1].path)
	s.JSONEq(`{"speed":75}`, reqs[0].body)
	s.JSONEq(`{"speed":10}`, reqs[1].body)
}

func (s *CommanderSuite) TestValidationStopsBeforeSending() {
	ctx := context.Background()
	calls := []func() (*commander.Result, error){
		func() (*commander.Result, error) { return s.cmdr.Move(ctx, "sideways", 30) },
		func() (*commander.Result, error) { return s.cmdr.Move(ctx, commander.MoveForward, -1) },
		func() (*commander.Result, error) { return s.cmdr.Rotate(ctx, "widdershins", 90) },
		func() (*commander.Result, error) { return s.cmdr.Rotate(ctx, commander.RotateClockwise, 0) },
		func() (*commander.Result, error) { return s.cmdr.Flip(ctx, "sideways") },
		func() (*commander.Result, error) { return s.cmdr.SetSpeed(ctx, 150) },
		func() (*commander.Result, error) { return s.cmdr.SetSpeed(ctx, -1) },
	}
	for i, call := range calls {
		_, err := call()
		s.Error(err, "call %d", i)
		s.NotErrorIs(err, commander.ErrCommandRejected)
	}
	s.Empty(s.backend.requests())
}

func (s *CommanderSuite) TestTransportError() {
	ctrl := gomock.NewController(s.T())
	client := mocks.NewMockHTTPClient(ctrl)
	client.EXPECT().Do(gomock.Any()).Return(nil, errors.New("connection refused"))

	cmdr := commander.New("http://drone-backend:8000", client)
	_, err := cmdr.TakeOff(context.Background())
	s.Require().Error(err)
	s.ErrorIs(err, commander.ErrBackendUnreachable)
	s.NotErrorIs(err, commander.ErrCommandRejected)
}

type recordedRequest struct {
	method string
	path   string
	body   string
}

type recordingBackend struct {
	mux    sync.Mutex
	reqs   []recordedRequest
	status int
	srv    *httptest.Server
}

func newRecordingBackend() *recordingBackend {
	b := &recordingBackend{status: http.StatusOK}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mux.Lock()
		b.reqs = append(b.reqs, recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
		status := b.status
		b.mux.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"status":"success","message":"ok"}`))
	}))
	return b
}

func (b *recordingBackend) setStatus(status int) {
	b.mux.Lock()
	defer b.mux.Unlock()
	b.status = status
}

func (b *recordingBackend) requests() []recordedRequest {
	b.mux.Lock()
	defer b.mux.Unlock()
	return append([]recordedRequest(nil), b.reqs...)
}
