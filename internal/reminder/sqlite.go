package reminder

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"remindbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg StoreConfig, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Create(ctx context.Context, r *Record) error {
	r.TriggerAt = r.TriggerAt.UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	} else {
		r.CreatedAt = r.CreatedAt.UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(chat_id, title, payload, kind, trigger_at, remind_before_ms, created_at)
		 VALUES(?,?,?,?,?,?,?)`,
		r.ChatID, r.Title, r.Payload, string(r.Kind),
		r.TriggerAt.UnixMilli(), r.RemindBefore.Milliseconds(), r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

const recordColumns = `id, chat_id, title, payload, kind, trigger_at, remind_before_ms, lead_sent, is_triggered, triggered_at, created_at`

func scanRecord(row interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		r           Record
		kind        string
		triggerMS   int64
		beforeMS    int64
		leadSent    int
		triggered   int
		triggeredMS sql.NullInt64
		createdMS   int64
	)
	err := row.Scan(&r.ID, &r.ChatID, &r.Title, &r.Payload, &kind,
		&triggerMS, &beforeMS, &leadSent, &triggered, &triggeredMS, &createdMS)
	if err != nil {
		return Record{}, err
	}
	r.Kind = PayloadKind(kind)
	r.TriggerAt = time.UnixMilli(triggerMS).UTC()
	r.RemindBefore = time.Duration(beforeMS) * time.Millisecond
	r.LeadSent = leadSent != 0
	r.IsTriggered = triggered != 0
	if triggeredMS.Valid {
		at := time.UnixMilli(triggeredMS.Int64).UTC()
		r.TriggeredAt = &at
	}
	r.CreatedAt = time.UnixMilli(createdMS).UTC()
	return r, nil
}

func (s *sqliteStore) Get(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM reminders WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *sqliteStore) Due(ctx context.Context, now time.Time) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM reminders
		 WHERE is_triggered = 0 AND trigger_at <= ?`,
		now.UnixMilli())
}

func (s *sqliteStore) LeadDue(ctx context.Context, now time.Time) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM reminders
		 WHERE is_triggered = 0 AND lead_sent = 0 AND remind_before_ms > 0
		   AND trigger_at - remind_before_ms <= ? AND trigger_at > ?`,
		now.UnixMilli(), now.UnixMilli())
}

// Claim is the at-most-once gate: the conditional UPDATE either wins the
// transition or affects zero rows. No explicit lock is taken and none is
// needed; SQLite serializes the write, and the is_triggered guard makes the
// second writer a no-op.
func (s *sqliteStore) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET is_triggered = 1, triggered_at = ?
		 WHERE id = ? AND is_triggered = 0`,
		now.UTC().UnixMilli(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sqliteStore) ClaimLead(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET lead_sent = 1
		 WHERE id = ? AND lead_sent = 0 AND is_triggered = 0`,
		id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sqliteStore) ListPending(ctx context.Context, chatID int64, now time.Time) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM reminders
		 WHERE chat_id = ? AND is_triggered = 0 AND trigger_at > ?
		 ORDER BY trigger_at ASC`,
		chatID, now.UnixMilli())
}

func (s *sqliteStore) Delete(ctx context.Context, id, chatID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE id = ? AND chat_id = ? AND is_triggered = 0`,
		id, chatID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sqliteStore) queryRecords(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
