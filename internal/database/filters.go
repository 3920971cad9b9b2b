package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cohesivm/internal/metadata"
)

// Measurements lists the distinct measurement branches in the store.
func (d *Database) Measurements(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT DISTINCT measurement FROM settings_groups ORDER BY measurement`)
	if err != nil {
		return nil, fmt.Errorf("%w: list measurements: %w", ErrStorage, err)
	}
	defer rows.Close()

	var measurements []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scan measurement: %w", ErrStorage, err)
		}
		measurements = append(measurements, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate measurements: %w", ErrStorage, err)
	}
	return measurements, nil
}

// MeasurementSettings returns the stored settings of every settings group
// under a measurement, keyed by settings key.
func (d *Database) MeasurementSettings(ctx context.Context, measurement string) (map[string]metadata.Settings, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT settings_key, settings_json FROM settings_groups WHERE measurement = ?`, measurement)
	if err != nil {
		return nil, fmt.Errorf("%w: list settings groups: %w", ErrStorage, err)
	}
	defer rows.Close()

	groups := make(map[string]metadata.Settings)
	for rows.Next() {
		var key, settingsJSON string
		if err := rows.Scan(&key, &settingsJSON); err != nil {
			return nil, fmt.Errorf("%w: scan settings group: %w", ErrStorage, err)
		}
		settings := metadata.NewSettings()
		if err := settings.UnmarshalJSON([]byte(settingsJSON)); err != nil {
			return nil, fmt.Errorf("%w: decode settings group %q: %w", ErrStorage, key, err)
		}
		groups[key] = settings
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate settings groups: %w", ErrStorage, err)
	}
	return groups, nil
}

// SettingFilters aggregates the settings groups of a measurement into the
// distinct values seen per setting name, the candidate filter terms for
// FilterBySettings. Values are ordered by their canonical literal.
func (d *Database) SettingFilters(ctx context.Context, measurement string) (map[string][]metadata.Value, error) {
	groups, err := d.MeasurementSettings(ctx, measurement)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]map[string]metadata.Value)
	for _, settings := range groups {
		for _, name := range settings.Keys() {
			value, _ := settings.Get(name)
			if seen[name] == nil {
				seen[name] = make(map[string]metadata.Value)
			}
			seen[name][value.Literal()] = value
		}
	}

	filters := make(map[string][]metadata.Value, len(seen))
	for name, values := range seen {
		literals := make([]string, 0, len(values))
		for literal := range values {
			literals = append(literals, literal)
		}
		sort.Strings(literals)
		ordered := make([]metadata.Value, 0, len(literals))
		for _, literal := range literals {
			ordered = append(ordered, values[literal])
		}
		filters[name] = ordered
	}
	return filters, nil
}

// FilterBySettings returns the paths of every dataset under the measurement
// whose settings contain all given name/value pairs. Matching works on the
// hashed key fragments, so values must compare equal after canonical
// formatting. Results are ordered by timestamp.
func (d *Database) FilterBySettings(ctx context.Context, measurement string, settings metadata.Settings) ([]string, error) {
	alternatives := make(map[string][]metadata.Value, settings.Len())
	for _, name := range settings.Keys() {
		value, _ := settings.Get(name)
		alternatives[name] = []metadata.Value{value}
	}
	return d.FilterBySettingsBatch(ctx, measurement, alternatives)
}

// FilterBySettingsBatch generalizes FilterBySettings: each name maps to a set
// of accepted values, and a dataset matches when every name matches at least
// one of its alternatives.
func (d *Database) FilterBySettingsBatch(ctx context.Context, measurement string, alternatives map[string][]metadata.Value) ([]string, error) {
	wanted := make(map[string][]string, len(alternatives))
	for name, values := range alternatives {
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: no alternatives for setting %q", ErrStorage, name)
		}
		fragments := make([]string, 0, len(values))
		for _, value := range values {
			fragments = append(fragments, metadata.PairFragment(name, value))
		}
		wanted[name] = fragments
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT settings_key FROM settings_groups WHERE measurement = ?`, measurement)
	if err != nil {
		return nil, fmt.Errorf("%w: list settings keys: %w", ErrStorage, err)
	}
	defer rows.Close()

	var matched []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: scan settings key: %w", ErrStorage, err)
		}
		if settingsKeyMatches(key, wanted) {
			matched = append(matched, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate settings keys: %w", ErrStorage, err)
	}
	if len(matched) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?, ", len(matched))
	placeholders = placeholders[:len(placeholders)-2]
	args := make([]any, 0, len(matched)+1)
	args = append(args, measurement)
	for _, key := range matched {
		args = append(args, key)
	}
	datasetRows, err := d.db.QueryContext(ctx,
		`SELECT path FROM datasets WHERE measurement = ? AND settings_key IN (`+placeholders+`) ORDER BY timestamp`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list matching datasets: %w", ErrStorage, err)
	}
	defer datasetRows.Close()

	var paths []string
	for datasetRows.Next() {
		var path string
		if err := datasetRows.Scan(&path); err != nil {
			return nil, fmt.Errorf("%w: scan dataset path: %w", ErrStorage, err)
		}
		paths = append(paths, path)
	}
	if err := datasetRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate dataset paths: %w", ErrStorage, err)
	}
	return paths, nil
}

func settingsKeyMatches(key string, wanted map[string][]string) bool {
	present := make(map[string]struct{})
	for _, fragment := range strings.Split(key, ":") {
		present[fragment] = struct{}{}
	}
	for _, fragments := range wanted {
		found := false
		for _, fragment := range fragments {
			if _, ok := present[fragment]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SampleIDs lists the distinct sample ids in the sample index.
func (d *Database) SampleIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT DISTINCT sample_id FROM sample_index ORDER BY sample_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list sample ids: %w", ErrStorage, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan sample id: %w", ErrStorage, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate sample ids: %w", ErrStorage, err)
	}
	return ids, nil
}

// FilterBySampleID returns the dataset paths recorded for a sample, in
// chronological order across all measurements and settings groups.
func (d *Database) FilterBySampleID(ctx context.Context, sampleID string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT dataset_path FROM sample_index WHERE sample_id = ? ORDER BY timestamp`, sampleID)
	if err != nil {
		return nil, fmt.Errorf("%w: filter by sample id: %w", ErrStorage, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("%w: scan dataset path: %w", ErrStorage, err)
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate dataset paths: %w", ErrStorage, err)
	}
	return paths, nil
}
