package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/election-assistant/pkg/apperrors"
	"github.com/ekaya-inc/election-assistant/pkg/textutil"
)

//go:embed source_schema.json
var sourceSchema string

// DefaultRowLimit applies when the source defines neither max_rows nor auto_limit.
const DefaultRowLimit = 1000

// DefaultKeywordExceptions are exempt from the forbidden keyword check when the
// source does not list its own exceptions. INDEPENDANT is a party label, not SQL.
var DefaultKeywordExceptions = []string{"INDEPENDANT"}

// AliasCategory identifies which alias table a pair came from.
type AliasCategory string

const (
	AliasParty  AliasCategory = "party"
	AliasRegion AliasCategory = "region"
)

// AliasPair maps one upper-cased synonym to its upper-cased canonical form.
type AliasPair struct {
	Synonym   string
	Canonical string
	Category  AliasCategory
}

// ViewInfo describes an allow-listed view.
type ViewInfo struct {
	Name        string `json:"view_name"`
	Description string `json:"description,omitempty"`
}

// TableInfo describes an allow-listed table.
type TableInfo struct {
	Name        string `json:"table_name"`
	Description string `json:"description,omitempty"`
}

// SecurityRules holds the execution thresholds and the forbidden vocabulary.
type SecurityRules struct {
	ForbiddenKeywords []string `json:"forbidden_keywords"`
	KeywordExceptions []string `json:"keyword_exceptions,omitempty"`
	AutoLimit         int      `json:"auto_limit"`
	MaxRows           int      `json:"max_rows"`
}

// DatabaseInfo carries descriptive metadata and headline statistics about the dataset.
type DatabaseInfo struct {
	Name          string         `json:"name,omitempty"`
	Description   string         `json:"description,omitempty"`
	CanonicalView string         `json:"canonical_view,omitempty"`
	Statistics    map[string]any `json:"statistics"`
}

type commonAliases struct {
	Partis  map[string][]string `json:"partis"`
	Regions map[string][]string `json:"regions"`
}

type document struct {
	SecurityRules      SecurityRules       `json:"security_rules"`
	AllowedViews       []ViewInfo          `json:"allowed_views"`
	AllowedTables      []TableInfo         `json:"allowed_tables"`
	CommonAliases      commonAliases       `json:"common_aliases"`
	ColumnAliases      map[string][]string `json:"column_aliases"`
	ColumnDescriptions map[string]string   `json:"column_descriptions"`
	DatabaseInfo       DatabaseInfo        `json:"database_info"`
}

// Registry is the read-only schema loaded once at startup and shared by all
// components. Accessors return copies so callers cannot mutate it.
type Registry struct {
	doc           document
	canonicalView string
	aliasPairs    []AliasPair
	forbidden     map[string]struct{}
}

// Load reads and validates a schema source. JSON and YAML are accepted; the
// format is chosen by file extension. Any failure wraps apperrors.ErrConfig.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read schema source %s: %v", apperrors.ErrConfig, path, err)
	}

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}

	reg, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("schema source %s: %w", path, err)
	}
	return reg, nil
}

// Parse builds a Registry from raw bytes in the given format ("json" or "yaml").
func Parse(data []byte, format string) (*Registry, error) {
	var raw any
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: invalid YAML: %v", apperrors.ErrConfig, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %v", apperrors.ErrConfig, err)
		}
	}

	if err := validateDocument(raw); err != nil {
		return nil, err
	}

	// Round-trip through JSON so YAML and JSON sources decode identically.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: re-encode schema source: %v", apperrors.ErrConfig, err)
	}
	var doc document
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode schema source: %v", apperrors.ErrConfig, err)
	}

	return newRegistry(doc)
}

func validateDocument(raw any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(sourceSchema), gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: validate schema source: %v", apperrors.ErrConfig, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: schema source failed validation: %s", apperrors.ErrConfig, strings.Join(errs, "; "))
	}
	return nil
}

func newRegistry(doc document) (*Registry, error) {
	r := &Registry{doc: doc}

	canonical, err := resolveCanonicalView(doc)
	if err != nil {
		return nil, err
	}
	r.canonicalView = canonical

	pairs, err := buildAliasPairs(doc.CommonAliases)
	if err != nil {
		return nil, err
	}
	r.aliasPairs = pairs

	exceptions := doc.SecurityRules.KeywordExceptions
	if exceptions == nil {
		exceptions = DefaultKeywordExceptions
	}
	exempt := make(map[string]struct{}, len(exceptions))
	for _, e := range exceptions {
		exempt[textutil.Fold(strings.TrimSpace(e))] = struct{}{}
	}
	r.forbidden = make(map[string]struct{}, len(doc.SecurityRules.ForbiddenKeywords))
	for _, k := range doc.SecurityRules.ForbiddenKeywords {
		folded := textutil.Fold(strings.TrimSpace(k))
		if _, skip := exempt[folded]; skip || folded == "" {
			continue
		}
		r.forbidden[folded] = struct{}{}
	}

	return r, nil
}

func resolveCanonicalView(doc document) (string, error) {
	want := strings.TrimSpace(doc.DatabaseInfo.CanonicalView)
	if want == "" {
		return doc.AllowedViews[0].Name, nil
	}
	for _, v := range doc.AllowedViews {
		if strings.EqualFold(v.Name, want) {
			return v.Name, nil
		}
	}
	return "", fmt.Errorf("%w: canonical_view %q is not an allowed view", apperrors.ErrConfig, want)
}

// buildAliasPairs flattens party and region tables, drops identity pairs and
// checks that normalization cannot re-trigger on its own output.
func buildAliasPairs(aliases commonAliases) ([]AliasPair, error) {
	var pairs []AliasPair
	seen := make(map[string]string)

	add := func(table map[string][]string, category AliasCategory) error {
		for canonical, synonyms := range table {
			canon := strings.ToUpper(strings.TrimSpace(canonical))
			for _, s := range synonyms {
				syn := strings.ToUpper(strings.TrimSpace(s))
				if syn == "" || syn == canon {
					continue
				}
				if prev, ok := seen[syn]; ok && prev != canon {
					return fmt.Errorf("%w: alias %q maps to both %q and %q", apperrors.ErrConfig, syn, prev, canon)
				}
				if _, ok := seen[syn]; ok {
					continue
				}
				seen[syn] = canon
				pairs = append(pairs, AliasPair{Synonym: syn, Canonical: canon, Category: category})
			}
		}
		return nil
	}
	if err := add(aliases.Partis, AliasParty); err != nil {
		return nil, err
	}
	if err := add(aliases.Regions, AliasRegion); err != nil {
		return nil, err
	}

	for _, p := range pairs {
		for _, q := range pairs {
			if textutil.ContainsWholeWord(p.Canonical, q.Synonym) {
				return nil, fmt.Errorf("%w: canonical %q contains alias %q; normalization would not be idempotent",
					apperrors.ErrConfig, p.Canonical, q.Synonym)
			}
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(pairs[i].Synonym), utf8.RuneCountInString(pairs[j].Synonym)
		if li != lj {
			return li > lj
		}
		return pairs[i].Synonym < pairs[j].Synonym
	})
	return pairs, nil
}

// AllowedViews returns the queryable view names in source order.
func (r *Registry) AllowedViews() []string {
	out := make([]string, len(r.doc.AllowedViews))
	for i, v := range r.doc.AllowedViews {
		out[i] = v.Name
	}
	return out
}

// Views returns the allow-listed views with their descriptions.
func (r *Registry) Views() []ViewInfo {
	return append([]ViewInfo(nil), r.doc.AllowedViews...)
}

// AllowedTables returns the queryable table names in source order.
func (r *Registry) AllowedTables() []string {
	out := make([]string, len(r.doc.AllowedTables))
	for i, t := range r.doc.AllowedTables {
		out[i] = t.Name
	}
	return out
}

// AllowedObjects returns views followed by tables: the full allow-list.
func (r *Registry) AllowedObjects() []string {
	return append(r.AllowedViews(), r.AllowedTables()...)
}

// CanonicalView is the primary query target: database_info.canonical_view when
// set, otherwise the first allowed view.
func (r *Registry) CanonicalView() string {
	return r.canonicalView
}

// ColumnDescriptions returns column name to description.
func (r *Registry) ColumnDescriptions() map[string]string {
	out := make(map[string]string, len(r.doc.ColumnDescriptions))
	for k, v := range r.doc.ColumnDescriptions {
		out[k] = v
	}
	return out
}

// ColumnAliases returns column name to alternative user wordings.
func (r *Registry) ColumnAliases() map[string][]string {
	return copyAliasTable(r.doc.ColumnAliases)
}

// PartyAliases returns the raw party alias table.
func (r *Registry) PartyAliases() map[string][]string {
	return copyAliasTable(r.doc.CommonAliases.Partis)
}

// RegionAliases returns the raw region alias table.
func (r *Registry) RegionAliases() map[string][]string {
	return copyAliasTable(r.doc.CommonAliases.Regions)
}

// AliasPairs returns party and region pairs sorted by synonym length, longest first.
func (r *Registry) AliasPairs() []AliasPair {
	return append([]AliasPair(nil), r.aliasPairs...)
}

// Security returns a copy of the security rules.
func (r *Registry) Security() SecurityRules {
	rules := r.doc.SecurityRules
	rules.ForbiddenKeywords = append([]string(nil), rules.ForbiddenKeywords...)
	rules.KeywordExceptions = append([]string(nil), rules.KeywordExceptions...)
	return rules
}

// IsForbidden reports whether a folded, upper-cased word is a forbidden keyword
// after exceptions are removed.
func (r *Registry) IsForbidden(word string) bool {
	_, ok := r.forbidden[word]
	return ok
}

// ForbiddenKeywords returns the effective forbidden set, sorted.
func (r *Registry) ForbiddenKeywords() []string {
	out := make([]string, 0, len(r.forbidden))
	for k := range r.forbidden {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RowLimit is the maximum number of rows returned for one query.
func (r *Registry) RowLimit() int {
	switch {
	case r.doc.SecurityRules.MaxRows > 0:
		return r.doc.SecurityRules.MaxRows
	case r.doc.SecurityRules.AutoLimit > 0:
		return r.doc.SecurityRules.AutoLimit
	default:
		return DefaultRowLimit
	}
}

// DatabaseInfo returns dataset metadata with a shallow copy of the statistics.
func (r *Registry) DatabaseInfo() DatabaseInfo {
	info := r.doc.DatabaseInfo
	info.Statistics = r.Statistics()
	return info
}

// Statistics returns a shallow copy of database_info.statistics.
func (r *Registry) Statistics() map[string]any {
	out := make(map[string]any, len(r.doc.DatabaseInfo.Statistics))
	for k, v := range r.doc.DatabaseInfo.Statistics {
		out[k] = v
	}
	return out
}

func copyAliasTable(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
