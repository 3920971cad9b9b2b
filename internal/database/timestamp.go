package database

import "time"

// timestampLayout is fixed-width UTC with nanoseconds, so lexicographic order
// equals time order and the value is a valid path component.
const timestampLayout = "2006-01-02T15:04:05.000000000"

// Timestamp returns a monotonically increasing, collision-free identifier.
// Because the timestamp is part of the dataset uniqueness key, the call spins
// until the clock yields a value that differs from the previous one.
func (d *Database) Timestamp() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	stamp := time.Now().UTC().Format(timestampLayout)
	for stamp <= d.last {
		stamp = time.Now().UTC().Format(timestampLayout)
	}
	d.last = stamp
	return stamp
}

// timestampSize is the string length of every issued timestamp.
const timestampSize = len(timestampLayout)
