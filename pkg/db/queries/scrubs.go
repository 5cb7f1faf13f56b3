package queries

import (
	"database/sql"
	"time"
)

type ScrubRecord struct {
	JobID      string
	Pool       string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
	Progress   float64
}

func InsertScrub(db *sql.DB, s *ScrubRecord) error {
	_, err := db.Exec(`
		INSERT INTO scrub_history (job_id, pool, started_at, status, progress)
		VALUES (?, ?, ?, ?, ?)
	`, s.JobID, s.Pool, s.StartedAt.Unix(), s.Status, s.Progress)
	return err
}

func FinishScrub(db *sql.DB, jobID, status string, progress float64) error {
	_, err := db.Exec(`
		UPDATE scrub_history
		SET finished_at = ?, status = ?, progress = ?
		WHERE job_id = ?
	`, time.Now().Unix(), status, progress, jobID)
	return err
}

func ListScrubHistory(db *sql.DB, pool string, limit int) ([]*ScrubRecord, error) {
	query := `
		SELECT job_id, pool, started_at, finished_at, status, progress
		FROM scrub_history
		WHERE 1=1
	`
	args := []interface{}{}

	if pool != "" {
		query += " AND pool = ?"
		args = append(args, pool)
	}

	query += " ORDER BY started_at DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scrubs []*ScrubRecord
	for rows.Next() {
		var s ScrubRecord
		var startedAt int64
		var finishedAt sql.NullInt64
		if err := rows.Scan(&s.JobID, &s.Pool, &startedAt, &finishedAt, &s.Status, &s.Progress); err != nil {
			return nil, err
		}
		s.StartedAt = time.Unix(startedAt, 0)
		if finishedAt.Valid {
			s.FinishedAt = sql.NullTime{Time: time.Unix(finishedAt.Int64, 0), Valid: true}
		}
		scrubs = append(scrubs, &s)
	}

	return scrubs, rows.Err()
}
