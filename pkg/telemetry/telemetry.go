package telemetry

import (
	"encoding/json"
	"errors"
	"time"
)

type MessageType string

const (
	MTUndefined   MessageType = ""
	MTStateUpdate MessageType = "state_update"
	MTVideoFrame  MessageType = "video_frame"
	MTConnState   MessageType = "connection_state"
)

// Message is the envelope carried over the backend websocket channel.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Velocity is the drone velocity vector in cm/s. Nil axis means unknown.
type Velocity struct {
	X *int `json:"x,omitempty"`
	Y *int `json:"y,omitempty"`
	Z *int `json:"z,omitempty"`
}

// Snapshot is one full telemetry report from the backend. Every field is
// optional, nil means the backend did not report it. A snapshot replaces the
// previous one as a whole, fields are never merged across snapshots.
type Snapshot struct {
	Battery     *int      `json:"battery,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Height      *int      `json:"height,omitempty"`
	Speed       *Velocity `json:"speed,omitempty"`
	FlightTime  *int      `json:"flight_time,omitempty"`
	ReceivedAt  time.Time `json:"-"`
}

// VideoFrame is a single base64-encoded image from the backend video stream.
type VideoFrame struct {
	Frame      string    `json:"frame"`
	ReceivedAt time.Time `json:"-"`
}

// DecodeVideoFrame accepts both payload shapes the backend produces: a bare
// base64 string and an object with a "frame" field.
func DecodeVideoFrame(data []byte) (*VideoFrame, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			return nil, errors.New("empty video frame payload")
		}
		return &VideoFrame{Frame: s}, nil
	}
	var f VideoFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Frame == "" {
		return nil, errors.New("video frame payload missing frame")
	}
	return &f, nil
}
