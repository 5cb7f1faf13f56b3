package queries

import (
	"database/sql"
	"time"
)

type Alert struct {
	ID        int64
	Source    string
	Level     string
	Message   sql.NullString
	Timestamp time.Time
	Dismissed bool
}

func InsertAlert(db *sql.DB, a *Alert) error {
	result, err := db.Exec(`
		INSERT INTO alerts (source, level, message, timestamp, dismissed)
		VALUES (?, ?, ?, ?, ?)
	`, a.Source, a.Level, a.Message, a.Timestamp.Unix(), a.Dismissed)
	if err != nil {
		return err
	}
	a.ID, err = result.LastInsertId()
	return err
}

func ListAlerts(db *sql.DB, includeDismissed bool, limit int) ([]*Alert, error) {
	query := `
		SELECT id, source, level, message, timestamp, dismissed
		FROM alerts
		WHERE 1=1
	`
	args := []interface{}{}

	if !includeDismissed {
		query += " AND dismissed = 0"
	}

	query += " ORDER BY timestamp DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		var a Alert
		var timestamp int64
		if err := rows.Scan(&a.ID, &a.Source, &a.Level, &a.Message, &timestamp, &a.Dismissed); err != nil {
			return nil, err
		}
		a.Timestamp = time.Unix(timestamp, 0)
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

func DismissAlert(db *sql.DB, id int64) error {
	_, err := db.Exec("UPDATE alerts SET dismissed = 1 WHERE id = ?", id)
	return err
}

func ListAlertSources(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT DISTINCT source FROM alerts ORDER BY source")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
