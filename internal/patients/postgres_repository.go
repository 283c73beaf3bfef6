package patients

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

// PostgresRepository stores patients in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const patientColumns = `
	id, name, email, password_hash, COALESCE(phone, ''), address,
	COALESCE(birth_date, ''), COALESCE(gender, ''), COALESCE(image_url, ''),
	created_at, updated_at
`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.PasswordHash,
		&p.Phone,
		&p.Address,
		&p.BirthDate,
		&p.Gender,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patients: scan: %w", err)
	}
	return &p, nil
}

// Create inserts a new patient row.
func (r *PostgresRepository) Create(ctx context.Context, params CreatePatientParams) (*Patient, error) {
	id := uuid.New()
	p := &Patient{
		ID:           id,
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		ImageURL:     params.ImageURL,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, name, email, password_hash, image_url)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING created_at, updated_at
	`, id, params.Name, params.Email, params.PasswordHash, params.ImageURL).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("patients: insert: %w", err)
	}
	return p, nil
}

// GetByID fetches a patient by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	return scanPatient(row)
}

// GetByEmail fetches a patient by login email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE email = $1`, email)
	return scanPatient(row)
}

// UpdateProfile applies the patient-editable fields that are set.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id uuid.UUID, params UpdateProfileParams) (*Patient, error) {
	query := `
		UPDATE patients
		SET name       = COALESCE($2, name),
		    phone      = COALESCE($3, phone),
		    address    = COALESCE($4, address),
		    birth_date = COALESCE($5, birth_date),
		    gender     = COALESCE($6, gender),
		    image_url  = COALESCE($7, image_url),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + patientColumns + `
	`
	row := r.pool.QueryRow(ctx, query,
		id,
		params.Name,
		params.Phone,
		params.Address,
		params.BirthDate,
		params.Gender,
		params.ImageURL,
	)
	return scanPatient(row)
}

// List returns patients for the admin console, newest first.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*Patient, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("patients: list: %w", err)
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddFavorite marks a doctor as one of the patient's favourites. Adding an
// existing favourite is a no-op.
func (r *PostgresRepository) AddFavorite(ctx context.Context, patientID, doctorID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient_favorites (patient_id, doctor_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, patientID, doctorID)
	if err != nil {
		return fmt.Errorf("patients: add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite drops a doctor from the patient's favourites.
func (r *PostgresRepository) RemoveFavorite(ctx context.Context, patientID, doctorID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM patient_favorites WHERE patient_id = $1 AND doctor_id = $2
	`, patientID, doctorID)
	if err != nil {
		return fmt.Errorf("patients: remove favorite: %w", err)
	}
	return nil
}

// ListFavorites returns the ids of the patient's favourite doctors.
func (r *PostgresRepository) ListFavorites(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT doctor_id FROM patient_favorites WHERE patient_id = $1 ORDER BY doctor_id
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("patients: list favorites: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("patients: scan favorite: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
