package sqlstore

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/types"
)

// Connection attributes understood by Open.
const (
	AttrType          = "type"
	AttrDSN           = "dsn"
	AttrFile          = "file"
	AttrDataDirectory = "data_directory"
	AttrHost          = "host"
	AttrPort          = "port"
	AttrDatabase      = "database"
	AttrUsername      = "username"
	AttrPassword      = "password"
	AttrSSLMode       = "sslmode"
	AttrTablePrefix   = "table_prefix"
)

// Connection pool limits based on PostgreSQL defaults and expected instances
// 16 max open connections per instance (100 server max / ~6 instances)
// 4 idle connections balance resource usage vs reconnection latency
const (
	maxOpenConns    = 16
	maxIdleConns    = 4
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
)

// dialect captures the differences between supported engines.
type dialect struct {
	name   string
	driver string
}

var (
	dialectSQLite   = dialect{name: "SQLite", driver: "sqlite3"}
	dialectPostgres = dialect{name: "PostgreSQL", driver: "postgres"}
)

func dialectFor(typ string) (dialect, error) {
	switch typ {
	case "", "sqlite", "SQLite":
		return dialectSQLite, nil
	case "postgres", "PostgreSQL":
		return dialectPostgres, nil
	default:
		return dialect{}, fmt.Errorf("%w: unsupported database type %q (expected SQLite or PostgreSQL)", types.ErrConnect, typ)
	}
}

// page renders the LIMIT/OFFSET suffix. SQLite needs a LIMIT before OFFSET.
func (d dialect) page(limit, offset int) string {
	var s string
	if limit > 0 {
		s += " LIMIT " + strconv.Itoa(limit)
	} else if offset > 0 && d == dialectSQLite {
		s += " LIMIT -1"
	}
	if offset > 0 {
		s += " OFFSET " + strconv.Itoa(offset)
	}
	return s
}

// quote renders a validated identifier. PostgreSQL folds unquoted names to
// lower case, so its identifiers are double-quoted to keep field names
// exact in both statements and result columns. SQLite preserves case.
func (d dialect) quote(ident string) string {
	if d != dialectPostgres {
		return ident
	}
	return `"` + ident + `"`
}

// where adapts a compiled filter fragment to the dialect. PostgreSQL does not
// accept a bound parameter after IS, so null tests use the DISTINCT FROM forms.
// Field names are quoted identifiers, so the patterns only match operators.
func (d dialect) where(fragment string) string {
	if d != dialectPostgres {
		return fragment
	}
	fragment = strings.ReplaceAll(fragment, " IS NOT :", " IS DISTINCT FROM :")
	return strings.ReplaceAll(fragment, " IS :", " IS NOT DISTINCT FROM :")
}

// dataSource builds the driver DSN from connection attributes.
// An explicit dsn attribute wins and may reference other attributes as {name}.
func (d dialect) dataSource(attrs types.Attributes) (string, error) {
	if tmpl := attrs[AttrDSN]; tmpl != "" {
		return storage.Substitute(types.Attributes{AttrDSN: tmpl}, attrs)[AttrDSN], nil
	}

	switch d {
	case dialectSQLite:
		file := attrs[AttrFile]
		if file == "" {
			return "", fmt.Errorf("%w: SQLite requires the %q attribute", types.ErrConnect, AttrFile)
		}
		if dir := attrs[AttrDataDirectory]; dir != "" && file != ":memory:" && !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		return file, nil

	default:
		host := attrs[AttrHost]
		if host == "" {
			host = "localhost"
		}
		port := attrs[AttrPort]
		if port == "" {
			port = "5432"
		}
		sslmode := attrs[AttrSSLMode]
		if sslmode == "" {
			sslmode = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			Host:     net.JoinHostPort(host, port),
			Path:     "/" + attrs[AttrDatabase],
			RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
		}
		if user := attrs[AttrUsername]; user != "" {
			u.User = url.UserPassword(user, attrs[AttrPassword])
		}
		return u.String(), nil
	}
}

// openDB establishes a pooled connection for the dialect.
func openDB(d dialect, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", types.ErrConnect, err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	// Each SQLite :memory: connection is its own database.
	if d == dialectSQLite && dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetConnMaxIdleTime(0)
		db.SetConnMaxLifetime(0)
	}

	return db, nil
}
