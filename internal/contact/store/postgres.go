package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"contactgraph/internal/contact/models"
	"contactgraph/pkg/domain"
	"contactgraph/pkg/platform/sentinel"
	txcontext "contactgraph/pkg/platform/tx"
)

// contactLockClass namespaces the owner advisory locks taken by RunInTx.
const contactLockClass = 4210

const (
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

var (
	psql           = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	contactColumns = []string{
		"id", "owner_scope", "email", "phone_number", "linked_id",
		"link_precedence", "created_at", "updated_at", "deleted_at",
	}
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists contacts in PostgreSQL.
// This store is pure I/O; linking decisions belong in the service.
type PostgresStore struct {
	db   *sql.DB
	opts options
}

// NewPostgres constructs a PostgreSQL-backed contact store.
func NewPostgres(db *sql.DB, opts ...Option) *PostgresStore {
	return &PostgresStore{db: db, opts: buildOptions(opts)}
}

func (s *PostgresStore) execer(ctx context.Context) dbtx {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// RunInTx opens a READ COMMITTED transaction and takes a transaction-scoped
// advisory lock on the owner before running fn. A second reconciliation for
// the same owner blocks on the lock and then sees the first one's rows.
func (s *PostgresStore) RunInTx(ctx context.Context, owner domain.OwnerScope, fn func(ctx context.Context) error) error {
	ctx, cancel, err := txContext(ctx, s.opts.txTimeout)
	defer cancel()
	if err != nil {
		return err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "contact.store.postgres.tx")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"))

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return storeErr(ctx, err, "begin contact tx")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, hashtext($2))`, contactLockClass, owner.String()); err != nil {
		return storeErr(ctx, err, "lock owner scope")
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		span.RecordError(err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return abortedErr(err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr(ctx, err, "commit contact tx")
	}
	return nil
}

func (s *PostgresStore) FindByIdentityFragment(ctx context.Context, owner domain.OwnerScope, email, phone string) ([]*models.Contact, error) {
	match := sq.Or{}
	if email != "" {
		match = append(match, sq.Eq{"email": email})
	}
	if phone != "" {
		match = append(match, sq.Eq{"phone_number": phone})
	}
	if len(match) == 0 {
		return nil, nil
	}

	query, args, err := psql.Select(contactColumns...).
		From("contacts").
		Where(sq.Eq{"owner_scope": owner.String(), "deleted_at": nil}).
		Where(match).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fragment query: %w", err)
	}
	return s.queryContacts(ctx, "find contacts by fragment", query, args...)
}

func (s *PostgresStore) FindByID(ctx context.Context, owner domain.OwnerScope, id domain.ContactID) (*models.Contact, error) {
	query, args, err := psql.Select(contactColumns...).
		From("contacts").
		Where(sq.Eq{"owner_scope": owner.String(), "id": int64(id), "deleted_at": nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find by id query: %w", err)
	}
	contact, err := scanContact(s.execer(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, storeErr(ctx, err, "find contact by id")
	}
	return contact, nil
}

func (s *PostgresStore) FindFamily(ctx context.Context, owner domain.OwnerScope, primaryID domain.ContactID) ([]*models.Contact, error) {
	query, args, err := psql.Select(contactColumns...).
		From("contacts").
		Where(sq.Eq{"owner_scope": owner.String(), "deleted_at": nil}).
		Where(sq.Or{sq.Eq{"id": int64(primaryID)}, sq.Eq{"linked_id": int64(primaryID)}}).
		OrderByClause("CASE WHEN id = ? THEN 0 ELSE 1 END", int64(primaryID)).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build family query: %w", err)
	}
	return s.queryContacts(ctx, "find contact family", query, args...)
}

func (s *PostgresStore) Create(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	if err := contact.Validate(); err != nil {
		return nil, err
	}
	query, args, err := psql.Insert("contacts").
		Columns("owner_scope", "email", "phone_number", "linked_id", "link_precedence").
		Values(
			contact.OwnerScope.String(),
			nullString(contact.Email),
			nullString(contact.PhoneNumber),
			nullID(contact.LinkedID),
			string(contact.LinkPrecedence),
		).
		Suffix("RETURNING " + strings.Join(contactColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	created, err := scanContact(s.execer(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case pqForeignKeyViolation, pqCheckViolation:
				return nil, fmt.Errorf("insert contact: %s: %w", pqErr.Constraint, sentinel.ErrConflict)
			}
		}
		return nil, storeErr(ctx, err, "insert contact")
	}
	return created, nil
}

func (s *PostgresStore) UpdatePrecedence(ctx context.Context, owner domain.OwnerScope, id domain.ContactID, precedence models.LinkPrecedence, linkedID *domain.ContactID) error {
	query, args, err := psql.Update("contacts").
		Set("link_precedence", string(precedence)).
		Set("linked_id", nullID(linkedID)).
		Set("updated_at", sq.Expr("clock_timestamp()")).
		Where(sq.Eq{"owner_scope": owner.String(), "id": int64(id), "deleted_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build precedence update: %w", err)
	}
	return s.execOne(ctx, "update link precedence", query, args...)
}

func (s *PostgresStore) Relink(ctx context.Context, owner domain.OwnerScope, from, to domain.ContactID) (int, error) {
	query, args, err := psql.Update("contacts").
		Set("linked_id", int64(to)).
		Set("updated_at", sq.Expr("clock_timestamp()")).
		Where(sq.Eq{"owner_scope": owner.String(), "linked_id": int64(from)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build relink: %w", err)
	}
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storeErr(ctx, err, "relink contacts")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("relink rows affected: %w", err)
	}
	return int(rows), nil
}

// SoftDelete stamps deleted_at; the contact disappears from every query.
func (s *PostgresStore) SoftDelete(ctx context.Context, owner domain.OwnerScope, id domain.ContactID) error {
	query, args, err := psql.Update("contacts").
		Set("deleted_at", sq.Expr("clock_timestamp()")).
		Set("updated_at", sq.Expr("clock_timestamp()")).
		Where(sq.Eq{"owner_scope": owner.String(), "id": int64(id), "deleted_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build soft delete: %w", err)
	}
	return s.execOne(ctx, "soft delete contact", query, args...)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return storeErr(ctx, err, op)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) queryContacts(ctx context.Context, op, query string, args ...any) ([]*models.Contact, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(ctx, err, op)
	}
	defer rows.Close()

	var out []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(ctx, err, op)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		c          models.Contact
		id         int64
		owner      string
		email      sql.NullString
		phone      sql.NullString
		linkedID   sql.NullInt64
		precedence string
		deletedAt  sql.NullTime
	)
	if err := row.Scan(&id, &owner, &email, &phone, &linkedID, &precedence, &c.CreatedAt, &c.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	c.ID = domain.ContactID(id)
	c.OwnerScope = domain.OwnerScope(owner)
	c.Email = email.String
	c.PhoneNumber = phone.String
	c.LinkPrecedence = models.LinkPrecedence(precedence)
	if linkedID.Valid {
		linked := domain.ContactID(linkedID.Int64)
		c.LinkedID = &linked
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		c.DeletedAt = &t
	}
	return &c, nil
}

// storeErr prefers the context error when ctx ended, so callers can tell a
// timeout apart from a driver failure.
func storeErr(ctx context.Context, err error, op string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullID(id *domain.ContactID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}
