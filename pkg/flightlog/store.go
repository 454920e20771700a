package flightlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/einherij/cockpit/pkg/telemetry"
)

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TIMESTAMP NOT NULL,
    ended_at   TIMESTAMP
);

CREATE TABLE IF NOT EXISTS snapshots (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  INTEGER NOT NULL REFERENCES sessions(id),
    recorded_at TIMESTAMP NOT NULL,
    battery     INTEGER,
    temperature REAL,
    height      INTEGER,
    speed_x     INTEGER,
    speed_y     INTEGER,
    speed_z     INTEGER,
    flight_time INTEGER
);

CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id);
`

// Session is one recorded flight. EndedAt is nil while recording is active.
type Session struct {
	ID        int64
	StartedAt time.Time
	EndedAt   *time.Time
}

// Store persists telemetry snapshots per flight session in a Sqlite database.
type Store struct {
	dbPath string

	dbOnce sync.Once
	db     *sql.DB
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

// Open forces the lazy database handle, useful to fail fast at startup.
func (s *Store) Open() error {
	_, err := s.getDB()
	return err
}

func (s *Store) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.dbErr = fmt.Errorf("opening flight log: %w", err)
			return
		}
		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing flight log schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

func (s *Store) BeginSession(ctx context.Context, startedAt time.Time) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, `INSERT INTO sessions (started_at) VALUES (?)`, startedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("inserting session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading session id: %w", err)
	}
	return id, nil
}

func (s *Store) EndSession(ctx context.Context, sessionID int64, endedAt time.Time) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if _, err = db.ExecContext(ctx, `UPDATE sessions SET ended_at = ? WHERE id = ?`, endedAt.UTC(), sessionID); err != nil {
		return fmt.Errorf("ending session %d: %w", sessionID, err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, sessionID int64, snap *telemetry.Snapshot) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	var speedX, speedY, speedZ *int
	if snap.Speed != nil {
		speedX, speedY, speedZ = snap.Speed.X, snap.Speed.Y, snap.Speed.Z
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, recorded_at, battery, temperature, height, speed_x, speed_y, speed_z, flight_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, snap.ReceivedAt.UTC(), snap.Battery, snap.Temperature, snap.Height,
		speedX, speedY, speedZ, snap.FlightTime,
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, started_at, ended_at FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var endedAt sql.NullTime
		if err = rows.Scan(&sess.ID, &sess.StartedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if endedAt.Valid {
			t := endedAt.Time
			sess.EndedAt = &t
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) Snapshots(ctx context.Context, sessionID int64) ([]*telemetry.Snapshot, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT recorded_at, battery, temperature, height, speed_x, speed_y, speed_z, flight_time
		FROM snapshots WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []*telemetry.Snapshot
	for rows.Next() {
		var snap telemetry.Snapshot
		var battery, height, speedX, speedY, speedZ, flightTime sql.NullInt64
		var temperature sql.NullFloat64
		if err = rows.Scan(&snap.ReceivedAt, &battery, &temperature, &height, &speedX, &speedY, &speedZ, &flightTime); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snap.Battery = nullableInt(battery)
		snap.Height = nullableInt(height)
		snap.FlightTime = nullableInt(flightTime)
		if temperature.Valid {
			t := temperature.Float64
			snap.Temperature = &t
		}
		if speedX.Valid || speedY.Valid || speedZ.Valid {
			snap.Speed = &telemetry.Velocity{
				X: nullableInt(speedX),
				Y: nullableInt(speedY),
				Z: nullableInt(speedZ),
			}
		}
		snapshots = append(snapshots, &snap)
	}
	return snapshots, rows.Err()
}

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
