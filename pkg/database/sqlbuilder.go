package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// Excluded references the row proposed for insertion in an ON CONFLICT clause.
func Excluded(column string) any {
	return sqlbuilder.Raw(fmt.Sprintf("EXCLUDED.%s", column))
}

type InsertBuilder struct {
	*sqlbuilder.InsertBuilder
	onConflict *sqlbuilder.UpdateBuilder
	returning  []string
}

func NewInsertBuilder() *InsertBuilder {
	return &InsertBuilder{InsertBuilder: sqlbuilder.PostgreSQL.NewInsertBuilder()}
}

// OnConflict turns the insert into an upsert keyed by columns. The returned
// builder collects the SET assignments of the DO UPDATE branch.
func (b *InsertBuilder) OnConflict(columns ...string) *sqlbuilder.UpdateBuilder {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	b.onConflict = ub
	b.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE %s", strings.Join(columns, ", "), b.Var(ub)))
	return ub
}

// Returning appends a RETURNING clause after any ON CONFLICT clause.
func (b *InsertBuilder) Returning(cols ...string) *InsertBuilder {
	b.returning = append(b.returning, cols...)
	return b
}

func (b *InsertBuilder) Build() (string, []any) {
	query, args := b.InsertBuilder.Build()
	return AppendReturning(query, b.returning...), args
}

// AppendReturning adds a RETURNING clause to a built statement.
func AppendReturning(query string, cols ...string) string {
	if len(cols) == 0 {
		return query
	}
	return query + " RETURNING " + strings.Join(cols, ", ")
}

func NewUpdateBuilder() *sqlbuilder.UpdateBuilder {
	return sqlbuilder.PostgreSQL.NewUpdateBuilder()
}

func NewSelectBuilder() *sqlbuilder.SelectBuilder {
	return sqlbuilder.PostgreSQL.NewSelectBuilder()
}
