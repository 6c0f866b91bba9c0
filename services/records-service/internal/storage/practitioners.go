package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/clinibook/clinibook/libs/db"
	"github.com/clinibook/clinibook/services/records-service/internal/model"
)

const practitionerColumns = `id, full_name, email, COALESCE(phone, ''), COALESCE(specialty, ''),
		COALESCE(password_hash, ''), active, created_at`

type PractitionerRepository struct {
	pool *db.Pool
}

func NewPractitionerRepository(pool *db.Pool) *PractitionerRepository {
	return &PractitionerRepository{pool: pool}
}

func (r *PractitionerRepository) Create(ctx context.Context, p *model.Practitioner) (model.Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO practitioners (full_name, email, phone, specialty, password_hash, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+practitionerColumns+`
	`, p.FullName, p.Email, p.Phone, p.Specialty, p.PasswordHash, p.Active)
	return scanPractitioner(row)
}

func (r *PractitionerRepository) Get(ctx context.Context, id string) (model.Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+practitionerColumns+`
		FROM practitioners
		WHERE id = $1
	`, id)
	p, err := scanPractitioner(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Practitioner{}, ErrNotFound
		}
		return model.Practitioner{}, err
	}
	return p, nil
}

func (r *PractitionerRepository) GetByEmail(ctx context.Context, email string) (model.Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+practitionerColumns+`
		FROM practitioners
		WHERE email = $1
	`, email)
	p, err := scanPractitioner(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Practitioner{}, ErrNotFound
		}
		return model.Practitioner{}, err
	}
	return p, nil
}

type PractitionerFilter struct {
	Specialty  string
	ActiveOnly bool
	Limit      int
}

func (r *PractitionerRepository) List(ctx context.Context, filter PractitionerFilter) ([]model.Practitioner, error) {
	query := `
		SELECT ` + practitionerColumns + `
		FROM practitioners
		WHERE 1=1`
	var args []any
	argIndex := 1

	if filter.Specialty != "" {
		query += fmt.Sprintf(" AND specialty = $%d", argIndex)
		args = append(args, filter.Specialty)
		argIndex++
	}
	if filter.ActiveOnly {
		query += " AND active"
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY full_name ASC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var practitioners []model.Practitioner
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, err
		}
		practitioners = append(practitioners, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return practitioners, nil
}

func (r *PractitionerRepository) Update(ctx context.Context, id string, p *model.Practitioner) (model.Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE practitioners
		SET full_name = $2, email = $3, phone = $4, specialty = $5, active = $6, password_hash = $7
		WHERE id = $1
		RETURNING `+practitionerColumns+`
	`, id, p.FullName, p.Email, p.Phone, p.Specialty, p.Active, p.PasswordHash)
	updated, err := scanPractitioner(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Practitioner{}, ErrNotFound
		}
		return model.Practitioner{}, err
	}
	return updated, nil
}

func (r *PractitionerRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM practitioners WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPractitioner(row pgx.Row) (model.Practitioner, error) {
	var p model.Practitioner
	if err := row.Scan(
		&p.ID,
		&p.FullName,
		&p.Email,
		&p.Phone,
		&p.Specialty,
		&p.PasswordHash,
		&p.Active,
		&p.CreatedAt,
	); err != nil {
		return model.Practitioner{}, err
	}
	return p, nil
}
