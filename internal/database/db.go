package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
	"github.com/iliyamo/bus-occupancy-pricing/internal/config"
)

// Open connects to the configured store and verifies the connection.
func Open(c config.DBConfig) (*sql.DB, error) {
	driver, dsn, err := DSN(c)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	if c.Driver == config.DriverSQLite {
		// a single writer avoids SQLITE_BUSY under concurrent upserts
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// DSN returns the database/sql driver name and data source name for c.
func DSN(c config.DBConfig) (driver, dsn string, err error) {
	switch c.Driver {
	case config.DriverMySQL:
		auth := c.User
		if c.Pass != "" {
			auth = fmt.Sprintf("%s:%s", c.User, c.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		return "mysql", fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, c.Host, c.Port, c.Name), nil
	case config.DriverPostgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Pass),
			Host:     c.Host + ":" + c.Port,
			Path:     "/" + c.Name,
			RawQuery: "sslmode=disable&timezone=UTC",
		}
		if c.Pass == "" {
			u.User = url.User(c.User)
		}
		return "pgx", u.String(), nil
	case config.DriverSQLite:
		path := c.Path
		if path == "" {
			path = ":memory:"
		}
		return "sqlite", path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", nil
	}
	return "", "", apperr.ConfigurationError{Key: "DB_DRIVER", Msg: fmt.Sprintf("unsupported driver %q", c.Driver)}
}
