package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schema lists the tables in dependency order.  Type placeholders are
// filled per dialect: {{pk}} auto-increment primary key, {{ts}} timestamp,
// {{bool}} boolean, {{money}} fare amount.  Foreign keys are table-level
// clauses; MySQL ignores inline column REFERENCES.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS routes (
		route_id    BIGINT PRIMARY KEY,
		origin      VARCHAR(100) NOT NULL,
		destination VARCHAR(100) NOT NULL,
		distance_km DOUBLE PRECISION NOT NULL CHECK (distance_km > 0),
		created_at  {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS operators (
		operator_id BIGINT PRIMARY KEY,
		name        VARCHAR(100) NOT NULL,
		is_active   {{bool}} NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS schedules (
		schedule_id    BIGINT PRIMARY KEY,
		route_id       BIGINT NOT NULL,
		operator_id    BIGINT NOT NULL,
		departure_time {{ts}} NOT NULL,
		arrival_time   {{ts}} NOT NULL,
		service_date   {{ts}} NOT NULL,
		CHECK (arrival_time > departure_time),
		FOREIGN KEY (route_id) REFERENCES routes (route_id),
		FOREIGN KEY (operator_id) REFERENCES operators (operator_id)
	)`,
	`CREATE TABLE IF NOT EXISTS seat_occupancy (
		occupancy_id   {{pk}},
		schedule_id    BIGINT NOT NULL,
		seat_type      VARCHAR(20) NOT NULL,
		total_seats    INTEGER NOT NULL CHECK (total_seats >= 0),
		occupied_seats INTEGER NOT NULL CHECK (occupied_seats >= 0 AND occupied_seats <= total_seats),
		fare           {{money}} NOT NULL CHECK (fare > 0),
		occupancy_rate DOUBLE PRECISION NOT NULL,
		recorded_at    {{ts}} NOT NULL,
		UNIQUE (schedule_id, seat_type, recorded_at),
		FOREIGN KEY (schedule_id) REFERENCES schedules (schedule_id)
	)`,
	`CREATE TABLE IF NOT EXISTS data_quality_log (
		log_id            {{pk}},
		record_id         VARCHAR(100) NOT NULL,
		issue_type        VARCHAR(50) NOT NULL,
		severity          VARCHAR(20) NOT NULL,
		description       TEXT NOT NULL,
		resolution_action VARCHAR(20) NOT NULL,
		detected_at       {{ts}} NOT NULL
	)`,
}

func (d Dialect) ddl(stmt string) string {
	var r *strings.Replacer
	switch d.Name {
	case Postgres.Name:
		r = strings.NewReplacer("{{pk}}", "BIGSERIAL PRIMARY KEY", "{{ts}}", "TIMESTAMPTZ", "{{bool}}", "BOOLEAN", "{{money}}", "DOUBLE PRECISION")
	case SQLite.Name:
		r = strings.NewReplacer("{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{ts}}", "DATETIME", "{{bool}}", "BOOLEAN", "{{money}}", "REAL")
	default:
		r = strings.NewReplacer("{{pk}}", "BIGINT AUTO_INCREMENT PRIMARY KEY", "{{ts}}", "DATETIME", "{{bool}}", "BOOLEAN", "{{money}}", "DECIMAL(10,2)")
	}
	return r.Replace(stmt)
}

// Migrate creates any missing table.  It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, d.ddl(stmt)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
