package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/apicheck/packages/core/parser"
	"github.com/abdul-hamid-achik/apicheck/packages/db"
)

// runSQLPrecondition runs a query and declares columns of its first row.
// With no extract mapping every column is declared under its own name.
func (r *Runner) runSQLPrecondition(ctx context.Context, pre *parser.Precondition, baseDir string, log *zap.Logger) error {
	connStr, err := r.resolver.ResolveText(pre.Database)
	if err != nil {
		return err
	}
	query, err := r.resolver.ResolveText(pre.Query)
	if err != nil {
		return err
	}

	client, err := db.NewClient(ctx, connStr, baseDir)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.Query(ctx, query)
	if err != nil {
		return err
	}

	row := result.First()
	if row == nil {
		return errors.New("query returned no rows")
	}

	if len(pre.Extract) == 0 {
		r.bindings.DeclareAll(row)
		log.Debug("sql declared variables", zap.Strings("columns", result.Columns))
		return nil
	}

	for name, column := range pre.Extract {
		value, ok := columnValue(row, column)
		if !ok {
			return fmt.Errorf("column %q not found in result", column)
		}
		r.bindings.Declare(name, value)
	}
	log.Debug("sql declared variables", zap.Int("count", len(pre.Extract)))
	return nil
}

func columnValue(row map[string]any, column string) (any, bool) {
	if v, ok := row[column]; ok {
		return v, true
	}
	for col, v := range row {
		if strings.EqualFold(col, column) {
			return v, true
		}
	}
	return nil, false
}
