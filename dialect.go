package stateio

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/jackc/pgx/stdlib"
)

// All code interacting with a database is here.  The dialect is write-only:
// the state table is a batch artifact, not an interactive source.

const (
	ch = "clickhouse"
	pg = "postgres"
)

var dialectSkeletons = map[string]struct{ create, insert string }{
	ch: {
		create: "CREATE TABLE %s (row String, col String, region String, year Int32, parameter String, value Float64) ENGINE = MergeTree ORDER BY (parameter, year, region)",
		insert: "INSERT INTO %s (row, col, region, year, parameter, value) VALUES ",
	},
	pg: {
		create: "CREATE TABLE %s (row TEXT, col TEXT, region TEXT, year INTEGER, parameter TEXT, value DOUBLE PRECISION)",
		insert: "INSERT INTO %s (row, col, region, year, parameter, value) VALUES ",
	},
}

// Dialect saves fact tables to a database.  Supported providers: clickhouse,
// postgres.
type Dialect struct {
	db       *sql.DB
	provider string
}

func NewDialect(provider string, db *sql.DB) (*Dialect, error) {
	if _, ok := dialectSkeletons[provider]; !ok {
		return nil, fmt.Errorf("unsupported db provider: %s", provider)
	}

	return &Dialect{db: db, provider: provider}, nil
}

func (d *Dialect) Provider() string {
	return d.provider
}

// Save writes the facts of t to tableName, creating it first.  With overwrite,
// an existing table is dropped.
func (d *Dialect) Save(t *Table, tableName string, overwrite bool) error {
	if overwrite {
		if _, e := d.db.Exec("DROP TABLE IF EXISTS " + tableName); e != nil {
			return e
		}
	}

	skel := dialectSkeletons[d.provider]
	if _, e := d.db.Exec(fmt.Sprintf(skel.create, tableName)); e != nil {
		return e
	}

	const batchSize = 1000

	var (
		vals []string
		args []any
	)

	flush := func() error {
		if len(vals) == 0 {
			return nil
		}

		qry := fmt.Sprintf(skel.insert, tableName) + strings.Join(vals, ",")
		if _, e := d.db.Exec(qry, args...); e != nil {
			return e
		}

		vals, args = nil, nil

		return nil
	}

	n := 0
	for _, p := range t.Parameters() {
		for _, f := range t.Facts(p) {
			vals = append(vals, d.placeholders(n*6))
			args = append(args, f.Row, f.Col, f.Region, f.Year, p, f.Value)
			n++

			if n == batchSize {
				if e := flush(); e != nil {
					return e
				}
				n = 0
			}
		}
	}

	return flush()
}

func (d *Dialect) placeholders(offset int) string {
	if d.provider == ch {
		return "(?,?,?,?,?,?)"
	}

	// postgres uses numbered placeholders
	ph := make([]string, 6)
	for ind := range ph {
		ph[ind] = fmt.Sprintf("$%d", offset+ind+1)
	}

	return "(" + strings.Join(ph, ",") + ")"
}

// NewConnectCH establishes a connection to ClickHouse.
// host is an IP address (assumes port 9000).
func NewConnectCH(host, user, password string) (*sql.DB, error) {
	db := clickhouse.OpenDB(
		&clickhouse.Options{
			Addr: []string{host + ":9000"},
			Auth: clickhouse.Auth{
				Database: "default",
				Username: user,
				Password: password,
			},
			DialTimeout: 300 * time.Second,
			Compression: &clickhouse.Compression{
				Method: clickhouse.CompressionLZ4,
				Level:  0,
			},
		})

	if e := db.Ping(); e != nil {
		return nil, e
	}

	return db, nil
}

// NewConnectPG establishes a connection to Postgres via the pgx stdlib driver.
func NewConnectPG(host, user, password, dbName string) (*sql.DB, error) {
	connectionStr := fmt.Sprintf("postgres://%s:%s@%s:5432/%s", user, password, host, dbName)

	var (
		db *sql.DB
		e  error
	)
	if db, e = sql.Open("pgx", connectionStr); e != nil {
		return nil, e
	}

	if e := db.Ping(); e != nil {
		return nil, e
	}

	return db, nil
}
