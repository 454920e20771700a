package commander

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

//go:generate mockgen -destination mocks/http_client.go -package mocks github.com/einherij/cockpit/pkg/commander HTTPClient

var (
	// ErrCommandRejected marks a command the backend answered with a non-2xx
	// status. The backend does not report structured causes, so callers
	// cannot tell a validation failure from a drone-state rejection.
	ErrCommandRejected = errors.New("command failed")

	// ErrBackendUnreachable marks a command request that never produced a
	// backend response.
	ErrBackendUnreachable = errors.New("backend unreachable")
)

// HTTPClient abstracts request execution, *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type MoveDirection string

const (
	MoveForward MoveDirection = "forward"
	MoveBack    MoveDirection = "back"
	MoveLeft    MoveDirection = "left"
	MoveRight   MoveDirection = "right"
	MoveUp      MoveDirection = "up"
	MoveDown    MoveDirection = "down"
)

type RotateDirection string

const (
	RotateClockwise        RotateDirection = "clockwise"
	RotateCounterClockwise RotateDirection = "counterclockwise"
)

type FlipDirection string

const (
	FlipForward FlipDirection = "forward"
	FlipBack    FlipDirection = "back"
	FlipLeft    FlipDirection = "left"
	FlipRight   FlipDirection = "right"
)

// Steps the panel uses when the operator does not pick their own.
const (
	DefaultMoveDistance  = 30
	DefaultRotateDegrees = 90
)

// Result is the backend's response body to a command.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Commander issues one-shot command requests to the drone backend. It holds
// no state, every call is a single fire-once POST with no retry and no
// de-duplication of concurrent identical commands.
type Commander struct {
	backendURL string
	client     HTTPClient
}

func New(backendURL string, client HTTPClient) *Commander {
	if client == nil {
		client = http.DefaultClient
	}
	return &Commander{
		backendURL: strings.TrimSuffix(backendURL, "/"),
		client:     client,
	}
}

func (c *Commander) Connect(ctx context.Context) (*Result, error) {
	return c.post(ctx, "/connect", nil)
}

func (c *Commander) Disconnect(ctx context.Context) (*Result, error) {
	return c.post(ctx, "/disconnect", nil)
}

func (c *Commander) TakeOff(ctx context.Context) (*Result, error) {
	return c.post(ctx, "/takeoff", nil)
}

func (c *Commander) Land(ctx context.Context) (*Result, error) {
	return c.post(ctx, "/land", nil)
}

// Emergency cuts the motors immediately.
func (c *Commander) Emergency(ctx context.Context) (*Result, error) {
	return c.post(ctx, "/emergency", nil)
}

type moveParams struct {
	Direction MoveDirection `json:"direction"`
	Distance  int           `json:"distance"`
}

func (c *Commander) Move(ctx context.Context, direction MoveDirection, distance int) (*Result, error) {
	switch direction {
	case MoveForward, MoveBack, MoveLeft, MoveRight, MoveUp, MoveDown:
	default:
		return nil, fmt.Errorf("unknown move direction %q", direction)
	}
	if distance <= 0 {
		return nil, fmt.Errorf("move distance must be positive, got %d", distance)
	}
	return c.post(ctx, "/move", moveParams{Direction: direction, Distance: distance})
}

type rotateParams struct {
	Direction RotateDirection `json:"direction"`
	Degrees   int             `json:"degrees"`
}

func (c *Commander) Rotate(ctx context.Context, direction RotateDirection, degrees int) (*Result, error) {
	switch direction {
	case RotateClockwise, RotateCounterClockwise:
	default:
		return nil, fmt.Errorf("unknown rotate direction %q", direction)
	}
	if degrees <= 0 {
		return nil, fmt.Errorf("rotate degrees must be positive, got %d", degrees)
	}
	return c.post(ctx, "/rotate", rotateParams{Direction: direction, Degrees: degrees})
}

type flipParams struct {
	Direction FlipDirection `json:"direction"`
}

func (c *Commander) Flip(ctx context.Context, direction FlipDirection) (*Result, error) {
	switch direction {
	case FlipForward, FlipBack, FlipLeft, FlipRight:
	default:
		return nil, fmt.Errorf("unknown flip direction %q", direction)
	}
	return c.post(ctx, "/flip", flipParams{Direction: direction})
}

type speedParams struct {
	Speed int `json:"speed"`
}

func (c *Commander) SetSpeed(ctx context.Context, speed int) (*Result, error) {
	if speed < 0 || speed > 100 {
		return nil, fmt.Errorf("speed must be within 0..100, got %d", speed)
	}
	return c.post(ctx, "/speed", speedParams{Speed: speed})
}

type trackParams struct {
	Enabled bool `json:"enabled"`
}

func (c *Commander) ToggleTracking(ctx context.Context, enabled bool) (*Result, error) {
	return c.post(ctx, "/track_object", trackParams{Enabled: enabled})
}

func (c *Commander) post(ctx context.Context, endpoint string, params any) (*Result, error) {
	var body *bytes.Reader
	if params != nil {
		p, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s params: %w", endpoint, err)
		}
		body = bytes.NewReader(p)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.backendURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", endpoint, err)
	}
	if params != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending %s request: %v", ErrBackendUnreachable, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrCommandRejected, endpoint, resp.StatusCode)
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return &res, nil
}
