package sql

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ErrNotSingleSelect is returned for input that parses but is not exactly one
// plain SELECT (several statements, SELECT ... INTO, DML).
var ErrNotSingleSelect = errors.New("not a single SELECT statement")

// ParseError reports query text the grammar does not accept.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return "parser error: " + e.Cause.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Relation is one object a query reads from.
type Relation struct {
	Schema string
	Name   string
	// Function is set for table functions such as read_csv(...).
	Function bool
}

func (r Relation) String() string {
	name := r.Name
	if r.Schema != "" {
		name = r.Schema + "." + r.Name
	}
	if r.Function {
		name += "()"
	}
	return name
}

// ReadRelations parses sqlQuery with the PostgreSQL grammar, which DuckDB's
// parser is derived from, and returns every relation read anywhere in the
// statement: FROM and JOIN targets, subqueries in any clause, and both sides
// of set operations. Names of CTEs defined inside the query are left out.
// The result is sorted and deduplicated.
func ReadRelations(sqlQuery string) ([]Relation, error) {
	tree, err := pg_query.ParseToJSON(sqlQuery)
	if err != nil {
		return nil, &ParseError{Cause: err}
	}

	var doc struct {
		Stmts []struct {
			Stmt map[string]json.RawMessage `json:"stmt"`
		} `json:"stmts"`
	}
	if err := json.Unmarshal([]byte(tree), &doc); err != nil {
		return nil, fmt.Errorf("decode parse tree: %w", err)
	}
	if len(doc.Stmts) != 1 {
		return nil, fmt.Errorf("%w: %d statements", ErrNotSingleSelect, len(doc.Stmts))
	}
	raw, ok := doc.Stmts[0].Stmt["SelectStmt"]
	if !ok {
		return nil, ErrNotSingleSelect
	}

	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode parse tree: %w", err)
	}
	if _, into := root["intoClause"]; into {
		return nil, fmt.Errorf("%w: SELECT INTO", ErrNotSingleSelect)
	}

	w := &relationWalker{seen: map[string]Relation{}, ctes: map[string]struct{}{}}
	w.walk(root)

	relations := make([]Relation, 0, len(w.seen))
	for _, rel := range w.seen {
		if _, isCTE := w.ctes[strings.ToLower(rel.Name)]; isCTE && rel.Schema == "" && !rel.Function {
			continue
		}
		relations = append(relations, rel)
	}
	sort.Slice(relations, func(i, j int) bool {
		return relations[i].String() < relations[j].String()
	})
	return relations, nil
}

// UnlistedSources returns the relations read by sqlQuery that are not in
// allowed, compared case-insensitively on the unqualified name. Table
// functions are never allowed.
func UnlistedSources(sqlQuery string, allowed []string) ([]string, error) {
	relations, err := ReadRelations(sqlQuery)
	if err != nil {
		return nil, err
	}

	allow := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allow[strings.ToLower(name)] = struct{}{}
	}

	var unlisted []string
	for _, rel := range relations {
		if _, ok := allow[strings.ToLower(rel.Name)]; ok && !rel.Function {
			continue
		}
		unlisted = append(unlisted, rel.String())
	}
	return unlisted, nil
}

type relationWalker struct {
	seen map[string]Relation
	ctes map[string]struct{}
}

func (w *relationWalker) walk(node any) {
	switch v := node.(type) {
	case map[string]any:
		for key, child := range v {
			switch key {
			case "RangeVar":
				if rv, ok := child.(map[string]any); ok {
					w.add(Relation{Schema: stringField(rv, "schemaname"), Name: stringField(rv, "relname")})
				}
			case "RangeFunction", "RangeTableFunc":
				w.add(Relation{Name: firstFuncName(child), Function: true})
			case "CommonTableExpr":
				if cte, ok := child.(map[string]any); ok {
					w.ctes[strings.ToLower(stringField(cte, "ctename"))] = struct{}{}
				}
			}
			w.walk(child)
		}
	case []any:
		for _, child := range v {
			w.walk(child)
		}
	}
}

func (w *relationWalker) add(rel Relation) {
	w.seen[strings.ToLower(rel.String())] = rel
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// firstFuncName returns the last name part of the first FuncCall below node.
func firstFuncName(node any) string {
	switch v := node.(type) {
	case map[string]any:
		if fc, ok := v["FuncCall"].(map[string]any); ok {
			if parts, ok := fc["funcname"].([]any); ok && len(parts) > 0 {
				last, _ := parts[len(parts)-1].(map[string]any)
				if s, ok := last["String"].(map[string]any); ok {
					if name := stringField(s, "sval"); name != "" {
						return name
					}
				}
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if name := firstFuncName(v[k]); name != "table_function" {
				return name
			}
		}
	case []any:
		for _, child := range v {
			if name := firstFuncName(child); name != "table_function" {
				return name
			}
		}
	}
	return "table_function"
}
