package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"groupgate.org/internal/groups"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var errNoDB = errors.New("database connection unavailable")

// Store is the PostgreSQL implementation of groups.Store.
type Store struct {
	db *sql.DB
}

var _ groups.Store = (*Store)(nil)

// Open connects through the pgx database/sql driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle; tests pass a sqlmock connection.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Check pings the database; it backs the readiness probes.
func (s *Store) Check(ctx context.Context) error {
	if s.db == nil {
		return errNoDB
	}
	return s.db.PingContext(ctx)
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// constraintErrors maps schema constraint names to domain errors.
var constraintErrors = map[string]error{
	"roles_group_name_uniq":          groups.ErrRoleNameTaken,
	"roles_group_owner_uniq":         groups.ErrOwnerRoleProtected,
	"roles_parent_same_group_fk":     groups.ErrCrossGroupRole,
	"roles_group_id_fkey":            groups.ErrGroupNotFound,
	"memberships_group_user_uniq":    groups.ErrAlreadyMember,
	"memberships_role_same_group_fk": groups.ErrCrossGroupRole,
	"memberships_group_id_fkey":      groups.ErrGroupNotFound,
	"join_requests_pending_uniq":     groups.ErrAlreadyPending,
	"join_requests_group_id_fkey":    groups.ErrGroupNotFound,
}

// translate turns constraint violations into domain errors and passes
// everything else through.
func translate(err error) error {
	pgErr, ok := maybePgError(err)
	if !ok {
		return err
	}
	if mapped, ok := constraintErrors[pgErr.ConstraintName]; ok {
		return mapped
	}
	switch pgErr.Code {
	case pgErrUniqueViolation:
		return groups.ErrConflict
	case pgErrForeignKeyViolation:
		return groups.ErrNotFound
	}
	return err
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}
