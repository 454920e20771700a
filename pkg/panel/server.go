package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/einherij/cockpit/pkg/channel"
	"github.com/einherij/cockpit/pkg/commander"
	"github.com/einherij/cockpit/pkg/flightlog"
	"github.com/einherij/cockpit/pkg/telemetry"
)

// Server is the browser-facing control panel. It serves the embedded UI,
// forwards command requests to the drone backend and pushes telemetry and
// video frames to connected panels over a websocket.
type Server struct {
	listen    string
	channel   *channel.Channel
	commander *commander.Commander
	recorder  *flightlog.Recorder
	upgrader  websocket.Upgrader
}

func New(listen string, ch *channel.Channel, cmdr *commander.Commander, rec *flightlog.Recorder) *Server {
	return &Server{
		listen:    listen,
		channel:   ch,
		commander: cmdr,
		recorder:  rec,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Run(ctx context.Context) {
	logrus.Warnf("started panel server on %s", s.listen)
	srv := &http.Server{Addr: s.listen, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.Error(fmt.Errorf("panel server: %w", err))
	}
	logrus.Warnf("stopped panel server")
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveUI)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/ws", s.handleWS)
	mux.HandleFunc("/api/connect", s.handleConnect)
	mux.HandleFunc("/api/disconnect", s.handleDisconnect)
	mux.HandleFunc("/api/takeoff", s.handleTakeOff)
	mux.HandleFunc("/api/land", s.handleLand)
	mux.HandleFunc("/api/emergency", s.handleEmergency)
	mux.HandleFunc("/api/move", s.handleMove)
	mux.HandleFunc("/api/rotate", s.handleRotate)
	mux.HandleFunc("/api/flip", s.handleFlip)
	mux.HandleFunc("/api/speed", s.handleSpeed)
	mux.HandleFunc("/api/track", s.handleTrack)
	mux.HandleFunc("/api/record/start", s.handleRecordStart)
	mux.HandleFunc("/api/record/stop", s.handleRecordStop)
	return mux
}

func (s *Server) serveUI(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(htmlUI))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statusResponse struct {
	Connection     string              `json:"connection"`
	Recording      bool                `json:"recording"`
	DecodeFailures uint64              `json:"decode_failures"`
	Snapshot       *telemetry.Snapshot `json:"snapshot,omitempty"`
	FlightTime     string              `json:"flight_time,omitempty"`
	FrameSize      string              `json:"frame_size,omitempty"`
	FrameAge       string              `json:"frame_age,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status := statusResponse{
		Connection:     s.channel.State().String(),
		Recording:      s.recorder.Recording(),
		DecodeFailures: s.channel.DecodeFailures(),
		Snapshot:       s.channel.Snapshot(),
	}
	now := time.Now()
	if snap := status.Snapshot; snap != nil && snap.FlightTime != nil {
		flown := time.Duration(*snap.FlightTime) * time.Second
		status.FlightTime = humanize.RelTime(now.Add(-flown), now, "", "")
	}
	if frame := s.channel.Frame(); frame != nil {
		status.FrameSize = humanize.Bytes(uint64(len(frame.Frame)))
		status.FrameAge = humanize.Time(frame.ReceivedAt)
	}
	writeJSON(w, http.StatusOK, status)
}

// handleConnect asks the backend to take the drone link up and then opens the
// telemetry channel, so one button press brings both online.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	res, err := s.commander.Connect(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err = s.channel.Open(r.Context()); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	res, err := s.commander.Disconnect(r.Context())
	s.channel.Close()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTakeOff(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, s.commander.TakeOff)
}

func (s *Server) handleLand(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, s.commander.Land)
}

func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, s.commander.Emergency)
}

func (s *Server) command(w http.ResponseWriter, r *http.Request, op func(context.Context) (*commander.Result, error)) {
	if !requirePOST(w, r) {
		return
	}
	res, err := op(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type moveRequest struct {
	Direction commander.MoveDirection `json:"direction"`
	Distance  int                     `json:"distance"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Distance == 0 {
		req.Distance = commander.DefaultMoveDistance
	}
	res, err := s.commander.Move(r.Context(), req.Direction, req.Distance)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type rotateRequest struct {
	Direction commander.RotateDirection `json:"direction"`
	Degrees   int                       `json:"degrees"`
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	var req rotateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Degrees == 0 {
		req.Degrees = commander.DefaultRotateDegrees
	}
	res, err := s.commander.Rotate(r.Context(), req.Direction, req.Degrees)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type flipRequest struct {
	Direction commander.FlipDirection `json:"direction"`
}

func (s *Server) handleFlip(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	var req flipRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Direction == "" {
		req.Direction = commander.FlipForward
	}
	res, err := s.commander.Flip(r.Context(), req.Direction)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type speedRequest struct {
	Speed int `json:"speed"`
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	var req speedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.commander.SetSpeed(r.Context(), req.Speed)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type trackRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	var req trackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.commander.ToggleTracking(r.Context(), req.Enabled)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	if err := s.recorder.Start(r.Context()); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commander.Result{Status: "success", Message: "Recording started"})
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	if err := s.recorder.Stop(r.Context()); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commander.Result{Status: "success", Message: "Recording stopped"})
}

// handleWS streams telemetry, frames and connection state to one panel tab.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Error(fmt.Errorf("upgrading panel websocket: %w", err))
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	sub := s.channel.Subscribe()
	defer sub.Close()

	// replay current values so a fresh panel does not start blank
	if snap := s.channel.Snapshot(); snap != nil {
		if err = writeEnvelope(conn, telemetry.MTStateUpdate, snap); err != nil {
			return
		}
	}
	if frame := s.channel.Frame(); frame != nil {
		if err = writeEnvelope(conn, telemetry.MTVideoFrame, frame); err != nil {
			return
		}
	}
	if err = writeEnvelope(conn, telemetry.MTConnState, map[string]string{"state": s.channel.State().String()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-sub.Snapshots():
			if err = writeEnvelope(conn, telemetry.MTStateUpdate, snap); err != nil {
				return
			}
		case frame := <-sub.Frames():
			if err = writeEnvelope(conn, telemetry.MTVideoFrame, frame); err != nil {
				return
			}
		case state := <-sub.States():
			if err = writeEnvelope(conn, telemetry.MTConnState, map[string]string{"state": state.String()}); err != nil {
				return
			}
		}
	}
}

func writeEnvelope(conn *websocket.Conn, mt telemetry.MessageType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(telemetry.Message{Type: mt, Data: data})
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	logrus.Error(fmt.Errorf("panel command: %w", err))
	status := http.StatusBadRequest
	if errors.Is(err, commander.ErrCommandRejected) || errors.Is(err, commander.ErrBackendUnreachable) {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, commander.Result{Status: "error", Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return false
	}
	return true
}
