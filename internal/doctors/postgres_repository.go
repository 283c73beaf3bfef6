package doctors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the pgx surface the repository needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores doctors in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("doctors: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const doctorColumns = `
	id, name, email, password_hash, speciality, degree, experience, about,
	fee_cents, address, COALESCE(image_url, ''), available,
	rating_sum, rating_count, created_at, updated_at
`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&d.PasswordHash,
		&d.Speciality,
		&d.Degree,
		&d.Experience,
		&d.About,
		&d.FeeCents,
		&d.Address,
		&d.ImageURL,
		&d.Available,
		&d.RatingSum,
		&d.RatingCount,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("doctors: scan: %w", err)
	}
	return &d, nil
}

// Create inserts a new doctor row.
func (r *PostgresRepository) Create(ctx context.Context, params CreateDoctorParams) (*Doctor, error) {
	id := uuid.New()
	query := `
		INSERT INTO doctors (
			id, name, email, password_hash, speciality, degree, experience,
			about, fee_cents, address, image_url, available
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), true)
		RETURNING created_at, updated_at
	`
	d := &Doctor{
		ID:           id,
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Speciality:   params.Speciality,
		Degree:       params.Degree,
		Experience:   params.Experience,
		About:        params.About,
		FeeCents:     params.FeeCents,
		Address:      params.Address,
		ImageURL:     params.ImageURL,
		Available:    true,
	}
	err := r.pool.QueryRow(ctx, query,
		id,
		params.Name,
		params.Email,
		params.PasswordHash,
		params.Speciality,
		params.Degree,
		params.Experience,
		params.About,
		params.FeeCents,
		params.Address,
		params.ImageURL,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("doctors: insert: %w", err)
	}
	return d, nil
}

// GetByID fetches a doctor by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
	return scanDoctor(row)
}

// GetByEmail fetches a doctor by login email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE email = $1`, email)
	return scanDoctor(row)
}

// List returns doctors, optionally filtered by speciality.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Doctor, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	query := `
		SELECT ` + doctorColumns + `
		FROM doctors
		WHERE ($1 = '' OR speciality = $1)
		ORDER BY name
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, filter.Speciality, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("doctors: list: %w", err)
	}
	defer rows.Close()
	return collectDoctors(rows)
}

// Top returns doctors ordered by rating average, then rating volume.
func (r *PostgresRepository) Top(ctx context.Context, limit int) ([]*Doctor, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	query := `
		SELECT ` + doctorColumns + `
		FROM doctors
		ORDER BY CASE WHEN rating_count = 0 THEN 0
		              ELSE rating_sum::float / rating_count END DESC,
		         rating_count DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("doctors: top: %w", err)
	}
	defer rows.Close()
	return collectDoctors(rows)
}

// Search matches doctors by name or speciality, case-insensitive.
func (r *PostgresRepository) Search(ctx context.Context, q string, limit int) ([]*Doctor, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	query := `
		SELECT ` + doctorColumns + `
		FROM doctors
		WHERE name ILIKE '%' || $1 || '%' OR speciality ILIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, q, limit)
	if err != nil {
		return nil, fmt.Errorf("doctors: search: %w", err)
	}
	defer rows.Close()
	return collectDoctors(rows)
}

// SetAvailability flips the doctor's bookable flag.
func (r *PostgresRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctors SET available = $2, updated_at = now() WHERE id = $1
	`, id, available)
	if err != nil {
		return fmt.Errorf("doctors: set availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile applies the doctor-editable fields that are set.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id uuid.UUID, params UpdateProfileParams) (*Doctor, error) {
	query := `
		UPDATE doctors
		SET fee_cents  = COALESCE($2, fee_cents),
		    about      = COALESCE($3, about),
		    address    = COALESCE($4, address),
		    image_url  = COALESCE($5, image_url),
		    available  = COALESCE($6, available),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + doctorColumns + `
	`
	row := r.pool.QueryRow(ctx, query,
		id,
		params.FeeCents,
		params.About,
		params.Address,
		params.ImageURL,
		params.Available,
	)
	return scanDoctor(row)
}

// CountBySpeciality groups the directory by speciality.
func (r *PostgresRepository) CountBySpeciality(ctx context.Context) ([]SpecialityCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT speciality, count(*) FROM doctors GROUP BY speciality ORDER BY speciality
	`)
	if err != nil {
		return nil, fmt.Errorf("doctors: speciality counts: %w", err)
	}
	defer rows.Close()

	var out []SpecialityCount
	for rows.Next() {
		var sc SpecialityCount
		if err := rows.Scan(&sc.Speciality, &sc.Count); err != nil {
			return nil, fmt.Errorf("doctors: scan speciality count: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func collectDoctors(rows pgx.Rows) ([]*Doctor, error) {
	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
