package store

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteIdent validates name and returns it double-quoted. Identifiers are the
// only part of a statement that is spliced into the text, values are always
// bound.
func quoteIdent(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return `"` + name + `"`, nil
}

func quoteIdents(names []string) ([]string, error) {
	quoted := make([]string, len(names))
	for i, name := range names {
		q, err := quoteIdent(name)
		if err != nil {
			return nil, err
		}
		quoted[i] = q
	}
	return quoted, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func createStatement(table string, columnDefs []string) (string, error) {
	t, err := quoteIdent(table)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t, strings.Join(columnDefs, ", ")), nil
}

func insertStatement(table string, columns []string, n int) (string, error) {
	t, err := quoteIdent(table)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("insert into %s needs at least one value", table)
	}
	if len(columns) == 0 {
		return fmt.Sprintf("INSERT INTO %s VALUES (%s)", t, placeholders(n)), nil
	}
	if len(columns) != n {
		return "", fmt.Errorf("insert into %s: %d columns for %d values", table, len(columns), n)
	}
	cols, err := quoteIdents(columns)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t, strings.Join(cols, ", "), placeholders(n)), nil
}

// selectStatement builds a SELECT over fields (all columns when empty). The
// predicate is trusted SQL written with ? placeholders for its values.
func selectStatement(table string, fields []string, predicate string) (string, error) {
	t, err := quoteIdent(table)
	if err != nil {
		return "", err
	}
	projection := "*"
	if len(fields) > 0 {
		cols := make([]string, len(fields))
		for i, f := range fields {
			if f == "*" || strings.EqualFold(f, "rowid") {
				cols[i] = f
				continue
			}
			if cols[i], err = quoteIdent(f); err != nil {
				return "", err
			}
		}
		projection = strings.Join(cols, ", ")
	}
	query := fmt.Sprintf("SELECT %s FROM %s", projection, t)
	if p := strings.TrimSpace(predicate); p != "" {
		query += " WHERE " + p
	}
	return query, nil
}

func dropStatement(table string) (string, error) {
	t, err := quoteIdent(table)
	if err != nil {
		return "", err
	}
	return "DROP TABLE IF EXISTS " + t, nil
}
