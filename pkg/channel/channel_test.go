package channel_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/einherij/cockpit/pkg/channel"
	"github.com/einherij/cockpit/pkg/telemetry"
)

type ChannelSuite struct {
	suite.Suite

	backend *fakeBackend
	ch      *channel.Channel
	sub     *channel.Subscription
}

func TestChannelSuite(t *testing.T) {
	suite.Run(t, new(ChannelSuite))
}

func (s *ChannelSuite) SetupTest() {
	s.backend = newFakeBackend()
	s.ch = channel.New(channel.Config{BackendURL: s.backend.URL()})
	s.sub = s.ch.Subscribe()
}

func (s *ChannelSuite) TearDownTest() {
	s.sub.Close()
	s.ch.Close()
	s.backend.Shutdown()
}

func (s *ChannelSuite) TestLatestSnapshotWins() {
	s.Require().NoError(s.ch.Open(context.Background()))
	conn := s.backend.acceptConn(s.T())

	s.writeEnvelope(conn, "state_update", `{"battery":90,"height":120}`)
	s.writeEnvelope(conn, "state_update", `{"battery":55}`)
	s.receiveSnapshot()
	s.receiveSnapshot()

	snap := s.ch.Snapshot()
	s.Require().NotNil(snap)
	s.Require().NotNil(snap.Battery)
	s.Equal(55, *snap.Battery)
	// snapshots replace wholesale, the earlier height must not leak through
	s.Nil(snap.Height)
	s.EqualValues(0, s.ch.DecodeFailures())
}

func (s *ChannelSuite) TestLatestFrameWins() {
	s.Require().NoError(s.ch.Open(context.Background()))
	conn := s.backend.acceptConn(s.T())

	// the backend sends frames both as a bare string and wrapped in an object
	s.writeEnvelope(conn, "video_frame", `"Zmlyc3Q="`)
	s.writeEnvelope(conn, "video_frame", `{"frame":"c2Vjb25k"}`)
	s.receiveFrame()
	s.receiveFrame()

	frame := s.ch.Frame()
	s.Require().NotNil(frame)
	s.Equal("c2Vjb25k", frame.Frame)
}

func (s *ChannelSuite) TestUnknownTypeIgnored() {
	s.Require().NoError(s.ch.Open(context.Background()))
	conn := s.backend.acceptConn(s.T())

	s.writeEnvelope(conn, "tape_detected", `{"center":[12,34]}`)
	s.writeEnvelope(conn, "state_update", `{"battery":77}`)
	s.receiveSnapshot()

	s.EqualValues(0, s.ch.DecodeFailures())
	s.Nil(s.ch.Frame())
	snap := s.ch.Snapshot()
	s.Require().NotNil(snap)
	s.Equal(77, *snap.Battery)
}

func (s *ChannelSuite) TestMalformedMessagesCountedAndSkipped() {
	s.Require().NoError(s.ch.Open(context.Background()))
	conn := s.backend.acceptConn(s.T())

	s.writeEnvelope(conn, "state_update", `{"battery":90}`)
	s.receiveSnapshot()

	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{"battery":1}}`)))
	s.writeEnvelope(conn, "video_frame", `{"no_frame_here":true}`)
	s.writeEnvelope(conn, "state_update", `{"battery":85}`)
	s.receiveSnapshot()

	s.EqualValues(3, s.ch.DecodeFailures())
	snap := s.ch.Snapshot()
	s.Require().NotNil(snap)
	s.Equal(85, *snap.Battery)
}

func (s *ChannelSuite) TestReopenResetsState() {
	s.Require().NoError(s.ch.Open(context.Background()))
	s.Equal(channel.Connected, s.ch.State())
	s.Equal(channel.Connected, s.receiveState())
	conn := s.backend.acceptConn(s.T())

	s.writeEnvelope(conn, "state_update", `{"battery":42}`)
	s.receiveSnapshot()
	s.Require().NotNil(s.ch.Snapshot())

	s.ch.Close()
	s.Equal(channel.Disconnected, s.ch.State())
	s.Equal(channel.Disconnected, s.receiveState())

	s.Require().NoError(s.ch.Open(context.Background()))
	s.Equal(channel.Connected, s.ch.State())
	s.Equal(channel.Connected, s.receiveState())
	// a fresh session starts without telemetry from the previous one
	s.Nil(s.ch.Snapshot())
	s.Nil(s.ch.Frame())
}

func (s *ChannelSuite) TestDuplicateOpenReplacesConnection() {
	s.Require().NoError(s.ch.Open(context.Background()))
	first := s.backend.acceptConn(s.T())

	s.Require().NoError(s.ch.Open(context.Background()))
	second := s.backend.acceptConn(s.T())

	// the first socket must be gone, only the second stays live
	s.Require().NoError(first.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := first.ReadMessage()
	s.Error(err)
	s.Equal(channel.Connected, s.ch.State())

	s.writeEnvelope(second, "state_update", `{"battery":64}`)
	snap := s.receiveSnapshot()
	s.Equal(64, *snap.Battery)
}

func (s *ChannelSuite) TestReconnectRedialsAfterDrop() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := channel.New(channel.Config{
		BackendURL:        s.backend.URL(),
		Reconnect:         true,
		ReconnectInterval: 50 * time.Millisecond,
	})
	defer ch.Close()
	sub := ch.Subscribe()
	defer sub.Close()
	go ch.Run(ctx)

	s.Require().NoError(ch.Open(ctx))
	first := s.backend.acceptConn(s.T())
	s.Equal(channel.Connected, ch.State())

	// backend drops the socket, the runner must bring it back up
	s.Require().NoError(first.Close())
	second := s.backend.acceptConn(s.T())
	s.Require().Eventually(func() bool {
		return ch.State() == channel.Connected
	}, 2*time.Second, 10*time.Millisecond)

	// telemetry flows again over the redialed connection
	s.writeEnvelope(second, "state_update", `{"battery":33}`)
	select {
	case snap := <-sub.Snapshots():
		s.Equal(33, *snap.Battery)
	case <-time.After(2 * time.Second):
		s.Require().FailNow("timed out waiting for snapshot on redialed connection")
	}

	// an explicit Close disarms the runner, no further dials happen
	ch.Close()
	s.Equal(channel.Disconnected, ch.State())
	select {
	case <-s.backend.conns:
		s.Require().FailNow("channel redialed after explicit close")
	case <-time.After(300 * time.Millisecond):
	}
	s.Equal(channel.Disconnected, ch.State())
}

func (s *ChannelSuite) writeEnvelope(conn *websocket.Conn, msgType, data string) {
	s.T().Helper()
	err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"`+msgType+`","data":`+data+`}`))
	s.Require().NoError(err)
}

func (s *ChannelSuite) receiveSnapshot() *telemetry.Snapshot {
	s.T().Helper()
	select {
	case snap := <-s.sub.Snapshots():
		return snap
	case <-time.After(2 * time.Second):
		s.Require().FailNow("timed out waiting for snapshot")
		return nil
	}
}

func (s *ChannelSuite) receiveFrame() *telemetry.VideoFrame {
	s.T().Helper()
	select {
	case frame := <-s.sub.Frames():
		return frame
	case <-time.After(2 * time.Second):
		s.Require().FailNow("timed out waiting for frame")
		return nil
	}
}

func (s *ChannelSuite) receiveState() channel.State {
	s.T().Helper()
	select {
	case state := <-s.sub.States():
		return state
	case <-time.After(2 * time.Second):
		s.Require().FailNow("timed out waiting for state change")
		return channel.Disconnected
	}
}

type fakeBackend struct {
	upgrader websocket.Upgrader
	conns    chan *websocket.Conn
	srv      *httptest.Server
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{conns: make(chan *websocket.Conn, 4)}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.conns <- conn
	})
	b.srv = httptest.NewServer(mux)
	return b
}

func (b *fakeBackend) URL() string { return b.srv.URL }

func (b *fakeBackend) acceptConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-b.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for backend connection")
		return nil
	}
}

func (b *fakeBackend) Shutdown() {
	close(b.conns)
	for conn := range b.conns {
		_ = conn.Close()
	}
	b.srv.Close()
}
