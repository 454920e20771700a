package flightlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/einherij/cockpit/pkg/telemetry"
)

// Recorder writes the telemetry stream to the store while armed. Arming while
// already recording is a no-op, the active session keeps going.
type Recorder struct {
	store     *Store
	snapshots <-chan *telemetry.Snapshot

	mux     sync.Mutex
	session int64
}

func NewRecorder(store *Store, snapshots <-chan *telemetry.Snapshot) *Recorder {
	return &Recorder{
		store:     store,
		snapshots: snapshots,
	}
}

func (r *Recorder) Start(ctx context.Context) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.session != 0 {
		return nil
	}
	id, err := r.store.BeginSession(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("starting flight recording: %w", err)
	}
	r.session = id
	logrus.Warnf("started flight recording session %d", id)
	return nil
}

func (r *Recorder) Stop(ctx context.Context) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.session == 0 {
		return nil
	}
	// end the session before disarming, a failed update keeps the recorder
	// armed so Stop can be retried instead of orphaning the row
	if err := r.store.EndSession(ctx, r.session, time.Now()); err != nil {
		return fmt.Errorf("stopping flight recording: %w", err)
	}
	logrus.Warnf("stopped flight recording session %d", r.session)
	r.session = 0
	return nil
}

func (r *Recorder) Recording() bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.session != 0
}

func (r *Recorder) Run(ctx context.Context) {
	logrus.Warnf("started flight recorder")
	for {
		select {
		case <-ctx.Done():
			logrus.Warnf("stopped flight recorder")
			return
		case snap := <-r.snapshots:
			if snap == nil {
				continue
			}
			r.mux.Lock()
			id := r.session
			r.mux.Unlock()
			if id == 0 {
				continue
			}
			if err := r.store.Append(ctx, id, snap); err != nil {
				logrus.Error(fmt.Errorf("appending flight log snapshot: %w", err))
			}
		}
	}
}
