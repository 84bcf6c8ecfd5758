package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/nin-ia/leadcard/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// A single connection serializes writes.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Migrate creates the leads table and adds any missing columns.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS leads (id INTEGER PRIMARY KEY AUTOINCREMENT)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: create leads table")
	}

	existing, err := s.tableColumns(ctx, "leads")
	if err != nil {
		return err
	}

	for _, col := range leadColumns {
		if existing[col.name] {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`ALTER TABLE leads ADD COLUMN `+col.name+` `+col.sqlite,
		); err != nil {
			return eris.Wrapf(err, "sqlite: add column %s", col.name)
		}
	}
	return nil
}

func (s *SQLiteStore) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(`+table+`)`)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: table_info %s", table)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan table_info")
		}
		cols[name] = true
	}
	return cols, eris.Wrap(rows.Err(), "sqlite: iterate table_info")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertLead(ctx context.Context, lead *model.Lead) (int64, error) {
	ts := lead.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (ocr_text, nom, prenom, telephone, mail, agent1, agent2, agent3, qualification, note, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.OCRText, lead.Fields.Nom, lead.Fields.Prenom, lead.Fields.Telephone, lead.Fields.Mail,
		lead.Agent1, lead.Agent2, lead.Agent3, string(lead.Qualification), lead.Note, ts,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert lead")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: last insert id")
	}
	return id, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ocr_text, nom, prenom, telephone, mail, agent1, agent2, agent3, qualification, note, timestamp
		 FROM leads ORDER BY timestamp DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var (
			l    model.Lead
			qual string
		)
		if err := rows.Scan(
			&l.ID, &l.OCRText, &l.Fields.Nom, &l.Fields.Prenom, &l.Fields.Telephone, &l.Fields.Mail,
			&l.Agent1, &l.Agent2, &l.Agent3, &qual, &l.Note, &l.Timestamp,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		l.Qualification = model.Qualification(qual)
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

func (s *SQLiteStore) SeedDummyLead(ctx context.Context) (int64, error) {
	seed := dummyLead
	return s.InsertLead(ctx, &seed)
}

func (s *SQLiteStore) ResetLeads(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reset leads")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}
