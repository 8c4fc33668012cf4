package sqlstore

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/qustavo/dotsql"
)

//go:embed queries/*.sql
var queriesFS embed.FS

// Statement names in queries/*.sql.
const (
	stmtPull       = "pull"
	stmtPush       = "push"
	stmtUpdate     = "update"
	stmtDelete     = "delete"
	stmtDeleteMany = "delete-many"
	stmtCount      = "count"
	stmtSearch     = "search"
)

// idParam binds the record ID in by-ID statements. Double underscore keeps
// it clear of field parameters.
const idParam = "__id"

// statementData fills the statement templates.
// Every string spliced into SQL text is an identifier checked by the caller
// and quoted for the dialect, or text produced by the filter and order
// compilers.
type statementData struct {
	Table   string
	IDField string
	IDParam string
	Fields  string
	Columns []column
	Where   string
	Order   string
	Page    string
}

// column is one written column: its quoted identifier and its parameter name.
type column struct {
	Ident string
	Param string
}

// statements holds the named statement templates parsed by dotsql.
type statements struct {
	dot *dotsql.DotSql
}

// loadStatements reads every embedded .sql file through dotsql, which parses
// each named statement as a text/template.
func loadStatements() (*statements, error) {
	var combinedSQL string

	err := fs.WalkDir(queriesFS, "queries", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}

		content, err := queriesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		combinedSQL += string(content) + "\n"
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load statement files: %w", err)
	}

	dot, err := dotsql.LoadFromString(combinedSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse statements: %w", err)
	}

	queries := dot.QueryMap()
	for _, name := range []string{stmtPull, stmtPush, stmtUpdate, stmtDelete, stmtDeleteMany, stmtCount, stmtSearch} {
		if _, ok := queries[name]; !ok {
			return nil, fmt.Errorf("statement not found: %s", name)
		}
	}
	return &statements{dot: dot}, nil
}

// render produces an unbound Statement.
func (s *statements) render(name string, data statementData) (*Statement, error) {
	text, err := s.dot.WithData(data).Raw(name)
	if err != nil {
		return nil, fmt.Errorf("render statement %s: %w", name, err)
	}
	return newStatement(name, strings.TrimSpace(text)), nil
}
