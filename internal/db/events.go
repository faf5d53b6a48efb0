package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Outcome values recorded per operation
const (
	OutcomeOK     = "ok"
	OutcomeNoop   = "noop"
	OutcomeFailed = "failed"
)

// Event is one recorded state-changing operation
type Event struct {
	ID         int64
	Operation  string // close, close-all, rescan
	Device     string // adapter id, e.g. vty-server@30000005
	DevicePath string
	Outcome    string
	Detail     string
	Timestamp  time.Time
}

// RecordEvent journals one operation outcome
func (d *DB) RecordEvent(operation, device, devicePath, outcome, detail string) error {
	_, err := d.conn.Exec(`
		INSERT INTO events (operation, device, device_path, outcome, detail)
		VALUES (?, ?, ?, ?, ?)
	`, operation, device, devicePath, outcome, detail)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// RecentEvents returns the newest events, most recent first
func (d *DB) RecentEvents(limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.conn.Query(`
		SELECT id, operation, device, device_path, outcome, detail, timestamp
		FROM events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		e := &Event{}
		var device, devicePath, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Operation, &device, &devicePath, &e.Outcome, &detail, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Device = device.String
		e.DevicePath = devicePath.String
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}
