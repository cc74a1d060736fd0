// Package analyzer validates KQL queries against a catalog snapshot. It
// resolves the databases a query references, binds every name to the
// catalog, infers result schemas and reports diagnostics, all without
// running the query.
package analyzer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/txn2/mcp-kusto/pkg/catalog"
	"github.com/txn2/mcp-kusto/pkg/kql"
)

// Outcome tags an AnalysisResult.
type Outcome string

// Outcomes.
const (
	// OutcomeSuccess means the query has no errors; OutputSchema is set
	// when the result schema is fully known.
	OutcomeSuccess Outcome = "success"
	// OutcomePartial means the query has errors; ReferencedTables lists
	// what could be bound to help the caller fix it.
	OutcomePartial Outcome = "partial"
)

// AnalysisResult is the outcome of validating one query.
type AnalysisResult struct {
	Outcome          Outcome           `json:"outcome"`
	Diagnostics      []Diagnostic      `json:"diagnostics"`
	ReferencedTables []ReferencedTable `json:"referenced_tables"`
	OutputSchema     []Column          `json:"output_schema,omitempty"`
}

// OK reports whether the query passed validation.
func (r *AnalysisResult) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Errors returns the diagnostics of error severity.
func (r *AnalysisResult) Errors() []Diagnostic {
	return r.bySeverity(SeverityError)
}

// Warnings returns the diagnostics of warning and suggestion severity.
func (r *AnalysisResult) Warnings() []Diagnostic {
	return append(r.bySeverity(SeverityWarning), r.bySeverity(SeveritySuggestion)...)
}

func (r *AnalysisResult) bySeverity(s Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}

// Promoter receives the databases loaded while resolving a query.
// *catalog.Cache implements it.
type Promoter interface {
	Promote(updates []catalog.DatabaseUpdate)
}

// Analyzer validates queries.
type Analyzer struct {
	resolver *Resolver
	promoter Promoter
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithPromotion makes the analyzer fold databases it had to load into p,
// so later queries find them without another discovery round trip.
func WithPromotion(p Promoter) Option {
	return func(a *Analyzer) {
		a.promoter = p
	}
}

// New creates an analyzer.
func New(resolver *Resolver, opts ...Option) *Analyzer {
	a := &Analyzer{resolver: resolver}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Validate analyzes text as if it ran in database of cluster. It returns a
// *kusto.NotFoundError when the cluster or database is unknown and ctx's
// error when ctx is done; every problem with the query itself is reported
// as a diagnostic.
func (a *Analyzer) Validate(ctx context.Context, state *catalog.GlobalState, cluster, database, text string) (*AnalysisResult, error) {
	cc, err := state.ClusterByName(cluster)
	if err != nil {
		return nil, err
	}
	db, err := cc.Database(database)
	if err != nil {
		return nil, err
	}
	scoped := state.WithCurrent(cc.ID, db.Name)

	q, err := kql.Parse(text)
	if err != nil {
		var pe *kql.ParseError
		if !errors.As(err, &pe) {
			return nil, err
		}
		return &AnalysisResult{
			Outcome: OutcomePartial,
			Diagnostics: []Diagnostic{{
				Severity: SeverityError,
				Code:     CodeSyntax,
				Message:  pe.Message,
				Pos:      pe.Pos,
			}},
			ReferencedTables: []ReferencedTable{},
		}, nil
	}

	res, err := a.resolver.Resolve(ctx, scoped, q)
	if err != nil {
		return nil, err
	}
	if a.promoter != nil && len(res.Updates) > 0 {
		a.promoter.Promote(res.Updates)
		slog.Debug("promoted resolved databases", "count", len(res.Updates))
	}

	b := newBinder(res.State, res.failed())
	for _, f := range res.Failures {
		b.errorf(CodeResolution, f.Ref.Pos, "%v", f.Err)
	}
	schema := b.bindQuery(q)

	out := &AnalysisResult{
		Outcome:          OutcomeSuccess,
		Diagnostics:      b.diags,
		ReferencedTables: b.refs,
	}
	if out.Diagnostics == nil {
		out.Diagnostics = []Diagnostic{}
	}
	if out.ReferencedTables == nil {
		out.ReferencedTables = []ReferencedTable{}
	}
	if len(out.Errors()) > 0 {
		out.Outcome = OutcomePartial
		return out, nil
	}
	if schema != nil && !schema.Open {
		out.OutputSchema = schema.Columns
	}
	return out, nil
}
