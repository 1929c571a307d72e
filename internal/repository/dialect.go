package repository

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// dialect captures the SQL differences between the supported backends.
type dialect struct {
	name string
	// tsColumn is the quoted timestamp column name.
	tsColumn string
	// tsSelect reads the timestamp as a float. Databases written by older
	// versions of the logger declare the column DATETIME, so SQLite needs a cast.
	tsSelect string
	// numbered placeholders ($1, $2...) instead of ?
	numbered bool
	// newMigrateDriver wraps an open *sql.DB for golang-migrate.
	newMigrateDriver func(db *sql.DB) (database.Driver, error)
}

var dialects = map[string]*dialect{
	DriverSQLite: {
		name:     DriverSQLite,
		tsColumn: "timestamp",
		tsSelect: "CAST(timestamp AS REAL)",
		newMigrateDriver: func(db *sql.DB) (database.Driver, error) {
			return migratesqlite.WithInstance(db, &migratesqlite.Config{})
		},
	},
	DriverPostgres: {
		name:     DriverPostgres,
		tsColumn: `"timestamp"`,
		tsSelect: `"timestamp"`,
		numbered: true,
		newMigrateDriver: func(db *sql.DB) (database.Driver, error) {
			return migratepostgres.WithInstance(db, &migratepostgres.Config{})
		},
	},
	DriverMySQL: {
		name:     DriverMySQL,
		tsColumn: "`timestamp`",
		tsSelect: "`timestamp`",
		newMigrateDriver: func(db *sql.DB) (database.Driver, error) {
			return migratemysql.WithInstance(db, &migratemysql.Config{})
		},
	},
}

func lookupDialect(name string) (*dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver %q", name)
	}
	return d, nil
}

// rebind rewrites ? placeholders for dialects that use numbered ones.
func (d *dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *dialect) insertQuery() string {
	return d.rebind(fmt.Sprintf(
		"INSERT INTO rolls (%s, name, state, label, value) VALUES (?, ?, ?, ?, ?)", d.tsColumn))
}

func (d *dialect) rangeQuery(settledOnly bool) string {
	q := fmt.Sprintf(
		"SELECT %s, name, state, label, value FROM rolls WHERE %s >= ? AND %s < ?",
		d.tsSelect, d.tsColumn, d.tsColumn)
	if settledOnly {
		q += " AND state = ?"
	}
	q += fmt.Sprintf(" ORDER BY %s ASC", d.tsColumn)
	return d.rebind(q)
}
