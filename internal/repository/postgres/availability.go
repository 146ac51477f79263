package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/internal/repository"
)

type availabilityRepository struct {
	BaseRepository
}

func NewAvailabilityRepository(base BaseRepository) repository.AvailabilityRepository {
	return &availabilityRepository{base}
}

func (r *availabilityRepository) Replace(ctx context.Context, doctorID uuid.UUID, entries []*model.Availability) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM availability WHERE doctor_id = $1`, doctorID); err != nil {
			return fmt.Errorf("failed to clear availability: %w", err)
		}

		query := `
			INSERT INTO availability (doctor_id, day, start_time, end_time)
			VALUES ($1, $2, $3, $4)
		`
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx, query, doctorID, e.Day, e.StartTime, e.EndTime); err != nil {
				return fmt.Errorf("failed to insert availability: %w", translate(err))
			}
		}
		return nil
	})
}

func (r *availabilityRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Availability, error) {
	query := `
		SELECT doctor_id, day, start_time, end_time
		FROM availability
		WHERE doctor_id = $1
		ORDER BY array_position(
			ARRAY['monday','tuesday','wednesday','thursday','friday','saturday','sunday'], day)
	`

	entries := []*model.Availability{}
	if err := r.db.SelectContext(ctx, &entries, query, doctorID); err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}
	return entries, nil
}
