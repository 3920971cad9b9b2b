package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cohesivm/internal/logging"
	"cohesivm/internal/measure"
	"cohesivm/internal/metadata"
)

// DatasetPath assembles the hierarchical key of a dataset leaf.
func DatasetPath(measurement, settingsKey, timestamp, sampleID string) string {
	return "/" + measurement + "/" + settingsKey + "/" + timestamp + "-" + sampleID
}

// SplitDatasetPath decomposes a dataset path into its components.
func SplitDatasetPath(path string) (measurement, settingsKey, timestamp, sampleID string, err error) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) != 3 {
		return "", "", "", "", fmt.Errorf("%w: malformed dataset path %q", ErrStorage, path)
	}
	leaf := parts[2]
	if len(leaf) <= timestampSize+1 || leaf[timestampSize] != '-' {
		return "", "", "", "", fmt.Errorf("%w: malformed dataset leaf %q", ErrStorage, leaf)
	}
	return parts[0], parts[1], leaf[:timestampSize], leaf[timestampSize+1:], nil
}

// InitializeDataset registers a new dataset leaf for the given metadata and
// returns its path. The measurement and settings groups are created when
// missing (settings attributes are written only the first time a key is seen
// under a measurement); every call produces a fresh leaf because the
// timestamp differs. The sample index gains a reference to the leaf.
func (d *Database) InitializeDataset(ctx context.Context, m *metadata.Metadata) (string, error) {
	timestamp := d.Timestamp()
	path := DatasetPath(m.Measurement(), m.SettingsKey(), timestamp, m.SampleID())

	date, parseErr := time.Parse(timestampLayout, timestamp)
	if parseErr != nil {
		return "", fmt.Errorf("%w: parse issued timestamp: %w", ErrStorage, parseErr)
	}
	resolved := m.WithResolvedDCMI(
		path,
		fmt.Sprintf("Dataset for %s of %s", m.Measurement(), m.SampleID()),
		date.Format(time.DateOnly),
	)
	metadataJSON, err := json.Marshal(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: marshal metadata: %w", ErrStorage, err)
	}
	settingsJSON, err := json.Marshal(resolved.Settings())
	if err != nil {
		return "", fmt.Errorf("%w: marshal settings: %w", ErrStorage, err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: begin dataset tx: %w", ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings_groups (measurement, settings_key, settings_json) VALUES (?, ?, ?)`,
		m.Measurement(), m.SettingsKey(), string(settingsJSON),
	); err != nil {
		return "", fmt.Errorf("%w: insert settings group: %w", ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (path, measurement, settings_key, timestamp, sample_id, metadata_json)
         VALUES (?, ?, ?, ?, ?, ?)`,
		path, m.Measurement(), m.SettingsKey(), timestamp, m.SampleID(), string(metadataJSON),
	); err != nil {
		return "", fmt.Errorf("%w: insert dataset: %w", ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sample_index (sample_id, timestamp, dataset_path) VALUES (?, ?, ?)`,
		m.SampleID(), timestamp, path,
	); err != nil {
		return "", fmt.Errorf("%w: insert sample index entry: %w", ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: commit dataset: %w", ErrStorage, err)
	}

	d.logger.Debug("dataset registered",
		logging.String("dataset", path),
		logging.String("sample_id", m.SampleID()),
	)
	return path, nil
}

// DeleteDataset removes a dataset leaf, its pixel data and its sample index
// entry. Used to roll back a setup that is aborted before any data is written.
func (d *Database) DeleteDataset(ctx context.Context, path string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM datasets WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("%w: delete dataset: %w", ErrStorage, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", ErrStorage, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: dataset %q does not exist", ErrStorage, path)
	}
	d.logger.Debug("dataset deleted", logging.String("dataset", path))
	return nil
}

// SaveData stores one pixel's structured result array under the dataset.
// Fails when the dataset does not exist or the pixel child already exists;
// arrays are never overwritten.
func (d *Database) SaveData(ctx context.Context, data measure.Result, datasetPath, pixelID string) error {
	var exists int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM datasets WHERE path = ?`, datasetPath,
	).Scan(&exists); err != nil {
		return fmt.Errorf("%w: check dataset: %w", ErrStorage, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: dataset %q does not exist", ErrStorage, datasetPath)
	}

	columnsJSON, err := json.Marshal(data.Columns)
	if err != nil {
		return fmt.Errorf("%w: marshal columns: %w", ErrStorage, err)
	}
	rowsJSON, err := json.Marshal(data.Rows)
	if err != nil {
		return fmt.Errorf("%w: marshal rows: %w", ErrStorage, err)
	}
	if _, err := d.db.ExecContext(ctx,
		`INSERT INTO pixel_data (dataset_path, pixel_id, columns_json, rows_json) VALUES (?, ?, ?, ?)`,
		datasetPath, pixelID, string(columnsJSON), string(rowsJSON),
	); err != nil {
		return fmt.Errorf("%w: save pixel %q under %q: %w", ErrStorage, pixelID, datasetPath, err)
	}
	return nil
}

// LoadData loads the result arrays of the given pixels, in argument order.
func (d *Database) LoadData(ctx context.Context, datasetPath string, pixelIDs ...string) ([]measure.Result, error) {
	if len(pixelIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one pixel id is required", ErrStorage)
	}
	results := make([]measure.Result, 0, len(pixelIDs))
	for _, pixel := range pixelIDs {
		var columnsJSON, rowsJSON string
		err := d.db.QueryRowContext(ctx,
			`SELECT columns_json, rows_json FROM pixel_data WHERE dataset_path = ? AND pixel_id = ?`,
			datasetPath, pixel,
		).Scan(&columnsJSON, &rowsJSON)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: no data for pixel %q under %q", ErrStorage, pixel, datasetPath)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: load pixel %q: %w", ErrStorage, pixel, err)
		}
		result, err := decodeResult(columnsJSON, rowsJSON)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// LoadMetadata reconstructs the Metadata stored at dataset registration.
func (d *Database) LoadMetadata(ctx context.Context, datasetPath string) (*metadata.Metadata, error) {
	var metadataJSON string
	err := d.db.QueryRowContext(ctx,
		`SELECT metadata_json FROM datasets WHERE path = ?`, datasetPath,
	).Scan(&metadataJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: dataset %q does not exist", ErrStorage, datasetPath)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load metadata: %w", ErrStorage, err)
	}
	var m metadata.Metadata
	if err := json.Unmarshal([]byte(metadataJSON), &m); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %w", ErrStorage, err)
	}
	return &m, nil
}

// LoadDataset loads all pixel arrays of a dataset together with its metadata.
func (d *Database) LoadDataset(ctx context.Context, datasetPath string) (map[string]measure.Result, *metadata.Metadata, error) {
	m, err := d.LoadMetadata(ctx, datasetPath)
	if err != nil {
		return nil, nil, err
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT pixel_id, columns_json, rows_json FROM pixel_data WHERE dataset_path = ?`, datasetPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load dataset: %w", ErrStorage, err)
	}
	defer rows.Close()

	data := make(map[string]measure.Result)
	for rows.Next() {
		var pixel, columnsJSON, rowsJSON string
		if err := rows.Scan(&pixel, &columnsJSON, &rowsJSON); err != nil {
			return nil, nil, fmt.Errorf("%w: scan pixel row: %w", ErrStorage, err)
		}
		result, err := decodeResult(columnsJSON, rowsJSON)
		if err != nil {
			return nil, nil, err
		}
		data[pixel] = result
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: iterate pixels: %w", ErrStorage, err)
	}
	return data, m, nil
}

// DatasetLength returns the number of stored pixel arrays in a dataset.
func (d *Database) DatasetLength(ctx context.Context, datasetPath string) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM pixel_data WHERE dataset_path = ?`, datasetPath,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: dataset length: %w", ErrStorage, err)
	}
	return count, nil
}

func decodeResult(columnsJSON, rowsJSON string) (measure.Result, error) {
	var result measure.Result
	if err := json.Unmarshal([]byte(columnsJSON), &result.Columns); err != nil {
		return measure.Result{}, fmt.Errorf("%w: decode columns: %w", ErrStorage, err)
	}
	if err := json.Unmarshal([]byte(rowsJSON), &result.Rows); err != nil {
		return measure.Result{}, fmt.Errorf("%w: decode rows: %w", ErrStorage, err)
	}
	return result, nil
}
