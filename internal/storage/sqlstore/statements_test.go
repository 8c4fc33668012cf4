package sqlstore

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/storage"
)

func renderStore(t *testing.T, d dialect) *Store {
	t.Helper()
	stmts, err := loadStatements()
	require.NoError(t, err)
	s := New(nil)
	s.stmts = stmts
	s.dialect = d
	s.prefix = "gs_"
	return s
}

func usersQuery() storage.Query {
	return storage.Query{
		Fields: []string{"ID", "Name"},
		Filter: filter.New().
			Add("Status", "Active").
			Add("|G", filter.New().Add("Age>=", 18).Add("Score<", 65)),
		Order:  filter.Order{filter.Desc("CreatedAt")},
		Limit:  10,
		Offset: 20,
	}
}

func TestStatements_Golden(t *testing.T) {
	sqlite := renderStore(t, dialectSQLite)
	postgres := renderStore(t, dialectPostgres)
	g := goldie.New(t)

	search, err := sqlite.filtered(stmtSearch, "Users", usersQuery())
	require.NoError(t, err)
	g.Assert(t, "search", []byte(search.Text))

	search, err = postgres.filtered(stmtSearch, "Users", usersQuery())
	require.NoError(t, err)
	named, _, err := sqlx.Named(search.Text, search.Params)
	require.NoError(t, err)
	g.Assert(t, "search_postgres", []byte(sqlx.Rebind(sqlx.DOLLAR, named)))

	count, err := sqlite.filtered(stmtCount, "Users", storage.Query{})
	require.NoError(t, err)
	g.Assert(t, "count", []byte(count.Text))

	offsetOnly, err := sqlite.filtered(stmtSearch, "Users", storage.Query{Offset: 5})
	require.NoError(t, err)
	g.Assert(t, "search_offset_sqlite", []byte(offsetOnly.Text))

	offsetOnly, err = postgres.filtered(stmtSearch, "Users", storage.Query{Offset: 5})
	require.NoError(t, err)
	g.Assert(t, "search_offset_postgres", []byte(offsetOnly.Text))

	nulls, err := postgres.filtered(stmtCount, "Users", storage.Query{Filter: filter.New().Add("Email", nil).Add("Name!", nil)})
	require.NoError(t, err)
	g.Assert(t, "count_nulls_postgres", []byte(nulls.Text))

	push, err := sqlite.renderColumns(stmtPush, "Users", "ID", []string{"Email", "ID", "Name"})
	require.NoError(t, err)
	g.Assert(t, "push", []byte(push.Text))

	push, err = postgres.renderColumns(stmtPush, "Users", "ID", []string{"Email", "ID", "Name"})
	require.NoError(t, err)
	g.Assert(t, "push_postgres", []byte(push.Text))

	pull, err := postgres.byID(stmtPull, "Users", "ID", "abc", []string{"ID", "Email"})
	require.NoError(t, err)
	g.Assert(t, "pull_postgres", []byte(pull.Text))

	update, err := sqlite.renderColumns(stmtUpdate, "Users", "ID", []string{"Email", "Name"})
	require.NoError(t, err)
	g.Assert(t, "update", []byte(update.Text))

	pull, err = sqlite.byID(stmtPull, "Users", "ID", "abc", []string{"ID", "Email"})
	require.NoError(t, err)
	g.Assert(t, "pull", []byte(pull.Text))

	deleteMany, err := sqlite.filtered(stmtDeleteMany, "Users", storage.Query{Filter: filter.New().Add("Age<", 18)})
	require.NoError(t, err)
	g.Assert(t, "delete_many", []byte(deleteMany.Text))
}

func TestStatements_RejectUnsafeNames(t *testing.T) {
	s := renderStore(t, dialectSQLite)

	_, err := s.filtered(stmtSearch, "Users; DROP TABLE x", storage.Query{})
	require.ErrorIs(t, err, filter.ErrInvalidField)

	_, err = s.filtered(stmtSearch, "Users", storage.Query{Fields: []string{"Name, Password"}})
	require.ErrorIs(t, err, filter.ErrInvalidField)

	_, err = s.filtered(stmtSearch, "Users", storage.Query{Order: filter.Order{filter.Asc("1")}})
	require.ErrorIs(t, err, filter.ErrInvalidField)

	_, err = s.renderColumns(stmtPush, "Users", "ID", []string{"bad column"})
	require.ErrorIs(t, err, filter.ErrInvalidField)
}
