package broker

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Timescale stores each payload as a row. The topic becomes a column so one
// hypertable can hold several nodes.
type Timescale struct {
	db        *sql.DB
	tableName string
	deviceID  string
	now       func() time.Time

	mu        sync.Mutex
	connected bool
}

func NewTimescale(db *sql.DB, table, deviceID string) *Timescale {
	return &Timescale{db: db, tableName: table, deviceID: deviceID, now: time.Now}
}

func (t *Timescale) Name() string { return "timescaledb" }

func (t *Timescale) Connect(ctx context.Context) error {
	if err := t.db.PingContext(ctx); err != nil {
		return fmt.Errorf("timescale ping: %w", err)
	}
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	return nil
}

func (t *Timescale) Publish(ctx context.Context, topic string, payload []byte) error {
	if !t.IsConnected() {
		return ports.ErrSessionLost
	}
	query := "INSERT INTO " + t.tableName + " (device_id, topic, received_at, payload) VALUES ($1,$2,$3,$4)"
	if _, err := t.db.ExecContext(ctx, query, t.deviceID, topic, t.now().UTC(), payload); err != nil {
		return fmt.Errorf("timescale insert: %w", err)
	}
	return nil
}

func (t *Timescale) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Close only drops the logical session; the pool stays open for the next Connect.
func (t *Timescale) Close() error {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	return nil
}

// Shutdown releases the connection pool.
func (t *Timescale) Shutdown() error {
	return t.db.Close()
}

var _ ports.Broker = (*Timescale)(nil)
