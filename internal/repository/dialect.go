package repository

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
	"github.com/iliyamo/bus-occupancy-pricing/internal/config"
)

// Dialect captures what differs between the supported SQL engines:
// placeholder syntax, upsert syntax and DDL types.
type Dialect struct {
	Name string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
	// ON CONFLICT ... DO UPDATE instead of ON DUPLICATE KEY UPDATE
	onConflict bool
}

var (
	MySQL    = Dialect{Name: config.DriverMySQL}
	Postgres = Dialect{Name: config.DriverPostgres, numbered: true, onConflict: true}
	SQLite   = Dialect{Name: config.DriverSQLite, onConflict: true}
)

// DialectFor returns the dialect of a configured driver.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case config.DriverMySQL:
		return MySQL, nil
	case config.DriverPostgres:
		return Postgres, nil
	case config.DriverSQLite:
		return SQLite, nil
	}
	return Dialect{}, apperr.ConfigurationError{Key: "DB_DRIVER", Msg: fmt.Sprintf("no dialect for %q", driver)}
}

// Rebind rewrites ? placeholders for dialects that number them.  Queries
// in this package never contain a literal question mark.
func (d Dialect) Rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// Upsert builds an INSERT that updates cols on a conflict over key.
func (d Dialect) Upsert(table string, cols, key, update []string) string {
	ph := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), ph)
	sets := make([]string, len(update))
	for i, c := range update {
		if d.onConflict {
			sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		} else {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
	}
	if d.onConflict {
		q += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(key, ", "), strings.Join(sets, ", "))
	} else {
		q += " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return d.Rebind(q)
}

// classify maps engine constraint violations to ErrConflict so callers
// can tell bad rows from a broken store.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062, 1451, 1452: // duplicate entry, FK parent, FK child
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "23") { // integrity_constraint_violation class
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return err
	}
	if strings.Contains(err.Error(), "constraint failed") { // sqlite
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
