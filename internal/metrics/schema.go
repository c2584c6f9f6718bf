package metrics

import (
	"database/sql"

	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS ticks (
	       id               INTEGER PRIMARY KEY AUTOINCREMENT,
	       run_id           TEXT NOT NULL,
	       timestamp        INTEGER NOT NULL,
	       profile          TEXT NOT NULL,
	       cpu_temp         INTEGER NOT NULL CHECK (typeof(cpu_temp) = 'integer'),
	       gpu_temp         INTEGER NOT NULL CHECK (typeof(gpu_temp) = 'integer'),
	       gpu_probe_temp   INTEGER NOT NULL CHECK (typeof(gpu_probe_temp) = 'integer'),
	       duty_current     INTEGER NOT NULL CHECK (duty_current BETWEEN 0 AND 100),
	       duty_desired     INTEGER NOT NULL CHECK (duty_desired BETWEEN 0 AND 100),
	       duty_target      INTEGER NOT NULL CHECK (duty_target BETWEEN 0 AND 100),
	       fan_rpm          INTEGER NOT NULL CHECK (typeof(fan_rpm) = 'integer'),
	       written          INTEGER NOT NULL CHECK (written IN (0, 1)),
	       reason           TEXT NOT NULL
	   );
	   CREATE INDEX IF NOT EXISTS ticks_run_timestamp ON ticks (run_id, timestamp);`

	insertTickSQL = `
    INSERT INTO ticks (
        run_id, timestamp, profile,
        cpu_temp, gpu_temp, gpu_probe_temp,
        duty_current, duty_desired, duty_target,
        fan_rpm, written, reason
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

// GetSchemaVersion returns the newest recorded schema version, 0 for an
// empty database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	exists, err := TableExists(db, "schema_versions")
	if err != nil || !exists {
		return 0, err
	}

	var version int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_versions`).Scan(&version); err != nil {
		return 0, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

func TableExists(db *sql.DB, table string) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	if err != nil {
		return false, errors.New().Wrap(ErrSchemaValidationFailed, err)
	}

	return n > 0, nil
}
