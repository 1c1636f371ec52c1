package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/launchgrid/internal/apperr"
)

// Row kinds.
const (
	KindApp    = "app"
	KindFolder = "folder"
	KindEmpty  = "empty"
)

// SlotRow is one persisted grid position.
type SlotRow struct {
	SlotID     string
	PageIndex  int
	Position   int
	Kind       string
	AppPath    string
	FolderID   string
	FolderName string
	AppPaths   []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LegacyRow is a row of the older single-list format, ordered by OrderIndex.
type LegacyRow struct {
	ID         string
	Kind       string
	OrderIndex int
	AppPath    string
	FolderName string
	AppPaths   []string
	CreatedAt  time.Time
}

// SlotID formats the persisted key of a page position.
func SlotID(page, position int) string {
	return fmt.Sprintf("page-%d-pos-%d", page, position)
}

// OrderStore is the durable store contract consumed by the launcher.
type OrderStore interface {
	SaveSlots(rows []SlotRow) error
	LoadSlots() ([]SlotRow, error)
	LoadLegacy() ([]LegacyRow, error)
	Clear() error
}

// Verify *DB satisfies OrderStore at compile time.
var _ OrderStore = (*DB)(nil)

// SaveSlots replaces every slot row in one transaction, then drops any rows
// left in the legacy table.
func (db *DB) SaveSlots(rows []SlotRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM page_entries`); err != nil {
		return fmt.Errorf("store: clear slots: %w", err)
	}
	if len(rows) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO page_entries
				(slot_id, page_index, position, kind, app_path, folder_id, folder_name, app_paths, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare slot insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, r := range rows {
			paths, err := json.Marshal(nonNil(r.AppPaths))
			if err != nil {
				return fmt.Errorf("store: encode app paths: %w", err)
			}
			created := r.CreatedAt
			if created.IsZero() {
				created = now
			}
			if _, err := stmt.Exec(r.SlotID, r.PageIndex, r.Position, r.Kind, r.AppPath,
				r.FolderID, r.FolderName, string(paths), created, now); err != nil {
				return fmt.Errorf("store: insert slot %s: %w", r.SlotID, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}

	// Migration is one-way; a failed purge is retried on the next save.
	_, _ = db.conn.Exec(`DELETE FROM top_items`)
	return nil
}

// LoadSlots returns every slot row ordered by page and position.
func (db *DB) LoadSlots() ([]SlotRow, error) {
	rows, err := db.conn.Query(`
		SELECT slot_id, page_index, position, kind, app_path, folder_id, folder_name, app_paths, created_at, updated_at
		FROM page_entries
		ORDER BY page_index, position`)
	if err != nil {
		return nil, fmt.Errorf("store: load slots: %w", err)
	}
	defer rows.Close()

	var out []SlotRow
	for rows.Next() {
		var r SlotRow
		var paths string
		if err := rows.Scan(&r.SlotID, &r.PageIndex, &r.Position, &r.Kind, &r.AppPath,
			&r.FolderID, &r.FolderName, &paths, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan slot: %w", err)
		}
		if err := json.Unmarshal([]byte(paths), &r.AppPaths); err != nil {
			return nil, fmt.Errorf("store: slot %s app paths: %w", r.SlotID, apperr.ErrDecode)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadLegacy returns the legacy single-list rows ordered by OrderIndex.
func (db *DB) LoadLegacy() ([]LegacyRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, kind, order_index, app_path, folder_name, app_paths, created_at
		FROM top_items
		ORDER BY order_index`)
	if err != nil {
		return nil, fmt.Errorf("store: load legacy: %w", err)
	}
	defer rows.Close()

	var out []LegacyRow
	for rows.Next() {
		var r LegacyRow
		var paths string
		if err := rows.Scan(&r.ID, &r.Kind, &r.OrderIndex, &r.AppPath, &r.FolderName, &paths, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan legacy: %w", err)
		}
		if err := json.Unmarshal([]byte(paths), &r.AppPaths); err != nil {
			return nil, fmt.Errorf("store: legacy %s app paths: %w", r.ID, apperr.ErrDecode)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveLegacy writes rows in the legacy format. Only migration fixtures use it.
func (db *DB) SaveLegacy(rows []LegacyRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO top_items (id, kind, order_index, app_path, folder_name, app_paths, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare legacy insert: %w", err)
	}
	defer stmt.Close()
	now := time.Now().UTC()
	for _, r := range rows {
		paths, _ := json.Marshal(nonNil(r.AppPaths))
		created := r.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.Exec(r.ID, r.Kind, r.OrderIndex, r.AppPath, r.FolderName, string(paths), created); err != nil {
			return fmt.Errorf("store: insert legacy %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Clear deletes all rows in both formats.
func (db *DB) Clear() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM page_entries`); err != nil {
		return fmt.Errorf("store: clear slots: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM top_items`); err != nil {
		return fmt.Errorf("store: clear legacy: %w", err)
	}
	return tx.Commit()
}

// Count returns the number of slot rows.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM page_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
