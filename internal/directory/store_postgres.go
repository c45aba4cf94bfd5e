package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema for the enrollments table. The UNIQUE constraint on full_name is
// what makes name lookups well-defined; duplicate inserts surface as
// ErrDuplicateName instead of silently creating ambiguous records.
const Schema = `
CREATE TABLE IF NOT EXISTS enrollments (
	id             UUID PRIMARY KEY,
	full_name      TEXT NOT NULL UNIQUE,
	phone_suffix   TEXT NOT NULL DEFAULT '',
	bound_identity TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS enrollments_bound_identity_idx
	ON enrollments (bound_identity) WHERE bound_identity <> '';
`

const uniqueViolation = "23505"

// PostgresStore persists the enrollment directory in PostgreSQL. This store
// is pure I/O; verification rules live in the matcher and dialogue engine.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the enrollments table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure enrollments schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (Record, error) {
	return s.findOne(ctx,
		`SELECT id, full_name, phone_suffix, bound_identity FROM enrollments WHERE full_name = $1`,
		NormalizeName(name))
}

func (s *PostgresStore) FindByIdentity(ctx context.Context, identity string) (Record, error) {
	if identity == "" {
		return Record{}, ErrNotFound
	}
	return s.findOne(ctx,
		`SELECT id, full_name, phone_suffix, bound_identity FROM enrollments WHERE bound_identity = $1 LIMIT 1`,
		identity)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg string) (Record, error) {
	var rec Record
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&rec.ID, &rec.FullName, &rec.PhoneSuffix, &rec.BoundIdentity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("find enrollment: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec Record) (Record, error) {
	rec.FullName = NormalizeName(rec.FullName)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO enrollments (id, full_name, phone_suffix, bound_identity) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.FullName, rec.PhoneSuffix, rec.BoundIdentity)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Record{}, ErrDuplicateName
		}
		return Record{}, fmt.Errorf("insert enrollment: %w", err)
	}
	return rec, nil
}

// Bind claims the record for the identity with a single conditional UPDATE,
// so two concurrent binders for the same name can never both succeed.
func (s *PostgresStore) Bind(ctx context.Context, name, identity string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrollments SET bound_identity = $2 WHERE full_name = $1 AND bound_identity = ''`,
		NormalizeName(name), identity)
	if err != nil {
		return fmt.Errorf("bind enrollment: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	// Distinguish "no such record" from "lost the race".
	if _, err := s.FindByName(ctx, name); err != nil {
		return err
	}
	return ErrAlreadyBound
}

func (s *PostgresStore) Unbind(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrollments SET bound_identity = '' WHERE full_name = $1`,
		NormalizeName(name))
	if err != nil {
		return fmt.Errorf("unbind enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM enrollments WHERE full_name = $1`, NormalizeName(name))
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, full_name, phone_suffix, bound_identity FROM enrollments ORDER BY full_name`)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.FullName, &rec.PhoneSuffix, &rec.BoundIdentity); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return out, nil
}
