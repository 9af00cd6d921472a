// ABOUTME: Request log storage operations.
// ABOUTME: Handles inserting and querying console request logs for the dashboard.

package store

import (
	"strings"
	"time"
)

// RequestLog represents an HTTP request log entry
type RequestLog struct {
	ID         int64
	Timestamp  time.Time
	Area       string
	Method     string
	Path       string
	StatusCode int
	DurationMs int
	IPAddress  string
	UserAgent  string
	Error      string
}

// LogRequest inserts a request log entry
func (s *Store) LogRequest(log *RequestLog) error {
	at := log.Timestamp
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.db.Exec(`
		INSERT INTO request_logs (timestamp, area, method, path, status_code, duration_ms, ip_address, user_agent, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, at.UTC(), log.Area, log.Method, log.Path, log.StatusCode, log.DurationMs, log.IPAddress, log.UserAgent, log.Error)
	return err
}

// RequestLogQuery represents filters for request logs
type RequestLogQuery struct {
	Limit      int
	Offset     int
	Area       string
	Method     string
	PathPrefix string
	StatusCode int
}

// RequestLogStats represents aggregate statistics
type RequestLogStats struct {
	TotalRequests   int
	TodayRequests   int
	ErrorRequests   int
	AvgDurationMs   int
	UniqueEndpoints int
}

// GetRequestLogs retrieves request logs with filtering
func (s *Store) GetRequestLogs(q *RequestLogQuery) ([]*RequestLog, error) {
	query := `SELECT id, timestamp, COALESCE(area, ''), method, path, COALESCE(status_code, 0), COALESCE(duration_ms, 0),
	          COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(error, '')
	          FROM request_logs WHERE 1=1`
	args := []any{}

	if q.Area != "" {
		query += " AND area = ?"
		args = append(args, q.Area)
	}
	if q.Method != "" {
		query += " AND method = ?"
		args = append(args, q.Method)
	}
	if q.PathPrefix != "" {
		query += ` AND path LIKE ? ESCAPE '\'`
		args = append(args, prefixPattern(q.PathPrefix))
	}
	if q.StatusCode > 0 {
		query += " AND status_code = ?"
		args = append(args, q.StatusCode)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, q.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*RequestLog
	for rows.Next() {
		log := &RequestLog{}
		if err := rows.Scan(&log.ID, &log.Timestamp, &log.Area, &log.Method, &log.Path, &log.StatusCode,
			&log.DurationMs, &log.IPAddress, &log.UserAgent, &log.Error); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// GetRequestLogStats returns aggregate statistics
func (s *Store) GetRequestLogStats() (*RequestLogStats, error) {
	stats := &RequestLogStats{}
	startOfDay := s.now().Truncate(24 * time.Hour)

	queries := []struct {
		sql  string
		args []any
		dest *int
	}{
		{"SELECT COUNT(*) FROM request_logs", nil, &stats.TotalRequests},
		{"SELECT COUNT(*) FROM request_logs WHERE timestamp >= ?", []any{startOfDay}, &stats.TodayRequests},
		{"SELECT COUNT(*) FROM request_logs WHERE status_code >= 400", nil, &stats.ErrorRequests},
		{"SELECT CAST(COALESCE(AVG(duration_ms), 0) AS INTEGER) FROM request_logs", nil, &stats.AvgDurationMs},
		{"SELECT COUNT(DISTINCT path) FROM request_logs", nil, &stats.UniqueEndpoints},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.sql, q.args...).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// EndpointCount is one row of the top endpoints panel.
type EndpointCount struct {
	Path  string
	Count int
	AvgMs int
}

// GetTopEndpoints returns the most frequently requested endpoints
func (s *Store) GetTopEndpoints(limit int) ([]EndpointCount, error) {
	rows, err := s.db.Query(`
		SELECT path, COUNT(*) as count, COALESCE(AVG(duration_ms), 0) as avg_ms
		FROM request_logs
		GROUP BY path
		ORDER BY count DESC, path
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []EndpointCount
	for rows.Next() {
		var e EndpointCount
		var avgMs float64
		if err := rows.Scan(&e.Path, &e.Count, &avgMs); err != nil {
			return nil, err
		}
		e.AvgMs = int(avgMs)
		endpoints = append(endpoints, e)
	}
	return endpoints, rows.Err()
}

// prefixPattern turns a console path prefix into a LIKE pattern matched with ESCAPE '\'.
// Paths such as /resources/rate_limits or /files/100%.json must match literally.
func prefixPattern(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
