// internal/database/preset.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/geohunt/internal/models"
)

const presetColumns = `id, title, creator, game_mode, start_lat, start_lng, radius, targets, created_at`

// InsertPreset validates and stores p, assigning an id if it has none.
func InsertPreset(ctx context.Context, p *models.Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate preset id: %w", err)
		}
		p.ID = id
	}
	targets, err := json.Marshal(p.Targets)
	if err != nil {
		return fmt.Errorf("failed to encode targets: %w", err)
	}

	q := `INSERT INTO presets (id, title, creator, game_mode, start_lat, start_lng, radius, targets)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	      RETURNING created_at`
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q,
			p.ID, p.Title, p.Creator, p.GameMode,
			p.StartingLocation.Lat, p.StartingLocation.Lon, p.Radius, targets,
		).Scan(&p.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to insert preset: %w", err)
	}
	return nil
}

func scanPreset(row pgx.Row) (*models.Preset, error) {
	var (
		p       models.Preset
		targets []byte
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Creator, &p.GameMode,
		&p.StartingLocation.Lat, &p.StartingLocation.Lon, &p.Radius,
		&targets, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(targets, &p.Targets); err != nil {
		return nil, fmt.Errorf("failed to decode targets of preset %s: %w", p.ID, err)
	}
	return &p, nil
}

// GetPreset loads one preset.
func GetPreset(ctx context.Context, id uuid.UUID) (*models.Preset, error) {
	q := `SELECT ` + presetColumns + ` FROM presets WHERE id=$1`
	p, err := scanPreset(DB.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound("preset "+id.String(), err)
	}
	return p, nil
}

// ListPresetsByCreator returns the creator's presets, newest first.
func ListPresetsByCreator(ctx context.Context, creator string) ([]*models.Preset, error) {
	q := `SELECT ` + presetColumns + ` FROM presets WHERE creator=$1 ORDER BY created_at DESC`
	rows, err := DB.Query(ctx, q, creator)
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	defer rows.Close()

	var out []*models.Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListTemporaryPresets returns the ids of presets owned by the Temporary creator.
func ListTemporaryPresets(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := DB.Query(ctx, `SELECT id FROM presets WHERE creator=$1`, models.TemporaryCreator)
	if err != nil {
		return nil, fmt.Errorf("failed to list temporary presets: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// DeletePreset removes a preset regardless of its creator.
func DeletePreset(ctx context.Context, id uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM presets WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("preset %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// DeletePresetByCreator removes a preset only if creator owns it.
func DeletePresetByCreator(ctx context.Context, id uuid.UUID, creator string) error {
	tag, err := DB.Exec(ctx, `DELETE FROM presets WHERE id=$1 AND creator=$2`, id, creator)
	if err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("preset %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// Presets exposes the preset functions to components that take them as an
// interface.
type Presets struct{}

func (Presets) GetPreset(ctx context.Context, id uuid.UUID) (*models.Preset, error) {
	return GetPreset(ctx, id)
}

func (Presets) ListTemporaryPresets(ctx context.Context) ([]uuid.UUID, error) {
	return ListTemporaryPresets(ctx)
}

func (Presets) DeletePreset(ctx context.Context, id uuid.UUID) error {
	return DeletePreset(ctx, id)
}

func (Presets) InsertPreset(ctx context.Context, p *models.Preset) error {
	return InsertPreset(ctx, p)
}

func (Presets) ListPresetsByCreator(ctx context.Context, creator string) ([]*models.Preset, error) {
	return ListPresetsByCreator(ctx, creator)
}

func (Presets) DeletePresetByCreator(ctx context.Context, id uuid.UUID, creator string) error {
	return DeletePresetByCreator(ctx, id, creator)
}
