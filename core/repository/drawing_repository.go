package repository

import (
	"context"
	"fmt"

	"drawing-trainer/core/models"
)

// DrawingRepository selects candidate drawings for training runs
type DrawingRepository struct {
	db *DB
}

// NewDrawingRepository creates a new drawing repository
func NewDrawingRepository(db *DB) *DrawingRepository {
	return &DrawingRepository{db: db}
}

// FetchCandidates returns eligible drawings for the given config. Flagged
// records are always excluded; a quality threshold and a random sample cap
// apply only when the config sets them. Read-only.
func (r *DrawingRepository) FetchCandidates(ctx context.Context, cfg models.TrainingConfig) ([]models.Drawing, error) {
	query := `
		SELECT d.id, d.stroke_data_path, s.name AS shape_name
		FROM drawings d
		JOIN shapes s ON d.shape_id = s.id
		WHERE d.is_flagged = FALSE
	`
	args := []interface{}{}
	argIndex := 1

	if cfg.MinQualityScore != nil {
		query += fmt.Sprintf(" AND (d.quality_score IS NULL OR d.quality_score >= $%d)", argIndex)
		args = append(args, *cfg.MinQualityScore)
		argIndex++
	}

	if cfg.MaxSamples != nil && *cfg.MaxSamples > 0 {
		query += fmt.Sprintf(" ORDER BY RANDOM() LIMIT $%d", argIndex)
		args = append(args, *cfg.MaxSamples)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drawings []models.Drawing
	for rows.Next() {
		var d models.Drawing
		if err := rows.Scan(&d.ID, &d.StrokeDataPath, &d.ShapeName); err != nil {
			return nil, err
		}
		drawings = append(drawings, d)
	}

	return drawings, rows.Err()
}
