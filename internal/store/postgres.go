package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/nin-ia/leadcard/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS leads (id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY)`)
	if err != nil {
		return eris.Wrap(err, "postgres: create leads table")
	}

	for _, col := range leadColumns {
		if _, err := s.pool.Exec(ctx,
			`ALTER TABLE leads ADD COLUMN IF NOT EXISTS `+col.name+` `+col.pgType,
		); err != nil {
			return eris.Wrapf(err, "postgres: add column %s", col.name)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertLead(ctx context.Context, lead *model.Lead) (int64, error) {
	ts := lead.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO leads (ocr_text, nom, prenom, telephone, mail, agent1, agent2, agent3, qualification, note, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		lead.OCRText, lead.Fields.Nom, lead.Fields.Prenom, lead.Fields.Telephone, lead.Fields.Mail,
		lead.Agent1, lead.Agent2, lead.Agent3, string(lead.Qualification), lead.Note, ts,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert lead")
	}
	return id, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, ocr_text, nom, prenom, telephone, mail, agent1, agent2, agent3, qualification, note, timestamp
		 FROM leads ORDER BY timestamp DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
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
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		l.Qualification = model.Qualification(qual)
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) SeedDummyLead(ctx context.Context) (int64, error) {
	seed := dummyLead
	return s.InsertLead(ctx, &seed)
}

func (s *PostgresStore) ResetLeads(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leads`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reset leads")
	}
	return tag.RowsAffected(), nil
}
