// Package repository implements all database queries for the signup system.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bossnet/party-signup/internal/model"
)

// ErrNotFound is returned when a requested registration does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyRegistered is returned when a concurrent submission inserted
// the same email between our lookup and our insert.
var ErrAlreadyRegistered = errors.New("email already registered")

// ErrInvalidInput is returned when a row violates a table constraint that
// validation should have caught.
var ErrInvalidInput = errors.New("registration violates a table constraint")

// MaxPublicListing caps the participant listing.
const MaxPublicListing = 100

var tracer = otel.Tracer("github.com/bossnet/party-signup/internal/repository")

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Upsert inserts reg or, when a row with the same email exists, overwrites
// its mutable fields. id, created_at and bezahlt of an existing row are left
// untouched.
//
// The lookup and the write run in one transaction, and the lookup locks the
// row it finds. Two first-time submissions for the same email can still
// both miss the lookup; the UNIQUE(email) constraint then fails the second
// insert, which surfaces as ErrAlreadyRegistered. The constraint is what
// keeps emails unique, not the lookup.
func (r *RegistrationRepository) Upsert(ctx context.Context, reg model.Registration, prov model.Provenance) (result model.UpsertResult, err error) {
	ctx, span := tracer.Start(ctx, "RegistrationRepository.Upsert")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upsert failed")
		}
		span.End()
	}()

	guests := clampGuests(reg.Guests)
	ip := inetOrEmpty(prov.IPAddress)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	var existingID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM registrations WHERE email = $1 FOR UPDATE`,
		reg.Email,
	).Scan(&existingID)
	switch {
	case err == nil:
		err = tx.QueryRow(ctx,
			`UPDATE registrations SET
				clan_nickname = $1,
				ticket_type   = $2,
				shirt         = $3,
				pizza         = $4,
				drinks        = $5,
				guests        = $6,
				consent       = $7,
				ip_address    = NULLIF($8, '')::inet,
				user_agent    = $9
			 WHERE id = $10
			 RETURNING id`,
			reg.Nickname, string(reg.TicketType), reg.Shirt, reg.Pizza, reg.Drinks,
			guests, reg.Consent, ip, prov.UserAgent, existingID,
		).Scan(&result.ID)
		if err != nil {
			return result, mapError("update registration", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx,
			`INSERT INTO registrations
				(clan_nickname, email, ticket_type, shirt, pizza, drinks, guests, consent, ip_address, user_agent)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::inet, $10)
			 RETURNING id`,
			reg.Nickname, reg.Email, string(reg.TicketType), reg.Shirt, reg.Pizza, reg.Drinks,
			guests, reg.Consent, ip, prov.UserAgent,
		).Scan(&result.ID)
		if err != nil {
			return result, mapError("insert registration", err)
		}
		result.Created = true
	default:
		return result, mapError("look up registration", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return model.UpsertResult{}, mapError("commit transaction", err)
	}

	span.SetAttributes(
		attribute.Int64("registration.id", result.ID),
		attribute.Bool("registration.created", result.Created),
	)
	return result, nil
}

// ListPublic returns up to limit consenting registrations, newest first,
// projected to the fields that may be shown publicly.
func (r *RegistrationRepository) ListPublic(ctx context.Context, limit int) ([]model.PublicRegistration, error) {
	if limit <= 0 || limit > MaxPublicListing {
		limit = MaxPublicListing
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, clan_nickname, bezahlt, created_at
		 FROM registrations
		 WHERE consent = true
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.PublicRegistration
	for rows.Next() {
		var reg model.PublicRegistration
		if err := rows.Scan(&reg.ID, &reg.Nickname, &reg.Paid, &reg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// GetByEmail returns the full row for a canonical email or ErrNotFound.
func (r *RegistrationRepository) GetByEmail(ctx context.Context, email string) (*model.Registration, error) {
	var reg model.Registration
	var ticket string
	err := r.db.QueryRow(ctx,
		`SELECT id, created_at, clan_nickname, email, ticket_type, shirt, pizza, drinks, guests, consent, bezahlt
		 FROM registrations WHERE email = $1`,
		email,
	).Scan(&reg.ID, &reg.CreatedAt, &reg.Nickname, &reg.Email, &ticket,
		&reg.Shirt, &reg.Pizza, &reg.Drinks, &reg.Guests, &reg.Consent, &reg.Paid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	reg.TicketType = model.TicketType(ticket)
	return &reg, nil
}

// SetPaid sets the payment flag for the registration with the given
// canonical email. It is an administrative operation and not reachable from
// the intake pipeline.
func (r *RegistrationRepository) SetPaid(ctx context.Context, email string, status int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE registrations SET bezahlt = $1 WHERE email = $2`,
		status, email,
	)
	if err != nil {
		return mapError("set paid", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping runs a trivial query to prove the database answers.
func (r *RegistrationRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// mapError turns constraint violations into the package's sentinel errors
// and wraps everything else.
func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrAlreadyRegistered)
		case pgerrcode.CheckViolation,
			pgerrcode.StringDataRightTruncationDataException,
			pgerrcode.InvalidTextRepresentation,
			pgerrcode.NotNullViolation:
			return fmt.Errorf("%s: %w: %s", op, ErrInvalidInput, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func clampGuests(n int) int {
	return max(model.MinGuests, min(model.MaxGuests, n))
}

// inetOrEmpty drops addresses the INET column would reject, such as the
// "unknown" placeholder or a forwarded value with a port.
func inetOrEmpty(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	return addr.String()
}
