// Package cmorizer wires the configuration document into an executable
// plan: resolve rules against defaults and data request tables, bind their
// pipelines, discover and group input files, and hand the tasks to the
// scheduler.
package cmorizer

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/esm-tools/cmorize/pkg/config"
	"github.com/esm-tools/cmorize/pkg/datarequest"
	"github.com/esm-tools/cmorize/pkg/errors"
	"github.com/esm-tools/cmorize/pkg/logging"
	"github.com/esm-tools/cmorize/pkg/pipeline"
	"github.com/esm-tools/cmorize/pkg/rules"
	"github.com/esm-tools/cmorize/pkg/scheduler"
)

// CMORizer holds a fully resolved execution plan
type CMORizer struct {
	doc       *config.Document
	tables    *datarequest.Collection
	rules     []*rules.Rule
	pipelines map[*rules.Rule][]*pipeline.Pipeline
	logger    zerolog.Logger
}

// FromDocument resolves a configuration document into a CMORizer. All
// rules, pipelines, and table references are validated here; Run performs
// no further configuration work.
func FromDocument(doc *config.Document) (*CMORizer, error) {
	c := &CMORizer{
		doc:       doc,
		pipelines: make(map[*rules.Rule][]*pipeline.Pipeline),
		logger:    logging.GetLogger("cmorizer"),
	}

	if doc.TablesDir != "" {
		tables, err := datarequest.LoadDir(doc.TablesDir)
		if err != nil {
			return nil, err
		}
		c.tables = tables
	}

	opts := &rules.ResolveOptions{Tables: c.tables}
	resolved, err := rules.Resolve(doc.Rules, doc.General, doc.Inherit, opts)
	if err != nil {
		return nil, err
	}
	c.rules = resolved

	defined := make(map[string]*pipeline.Pipeline, len(doc.Pipelines))
	for _, spec := range doc.Pipelines {
		p, err := pipeline.FromSpecs(spec.Name, spec.Steps)
		if err != nil {
			return nil, err
		}
		defined[spec.Name] = p
	}

	for _, r := range resolved {
		bound, err := pipeline.ResolveRefs(r.PipelineRefs(), defined)
		if err != nil {
			return nil, errors.Wrapf(err, errors.GetErrorCode(err), "rule %s", r.ID())
		}
		c.pipelines[r] = bound
	}

	c.checkTables()
	return c, nil
}

// Rules returns the resolved rules in document order
func (c *CMORizer) Rules() []*rules.Rule {
	return c.rules
}

// checkTables warns about variables the data request does not know. This is
// a sanity check, not an error: experimental variables are a normal thing.
func (c *CMORizer) checkTables() {
	if c.tables == nil {
		return
	}
	for _, r := range c.rules {
		if r.DataRequestVariable() == nil {
			c.logger.Warn().
				Str("rule", r.ID()).
				Str("variable", r.CmorVariable()).
				Str("table", r.CmorTable()).
				Msg("Variable not found in data request tables")
		}
	}
}

// Run discovers inputs for every rule and executes the plan. It returns
// one outcome per rule. A rule with no matching files fails only when the
// engine is configured to treat that as an error.
func (c *CMORizer) Run(ctx context.Context) ([]scheduler.Outcome, error) {
	matcher := rules.NewMatcher()
	tasks := make([]scheduler.Task, 0, len(c.rules))
	for _, r := range c.rules {
		matches, err := matcher.Discover(ctx, r)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			if c.doc.Engine.RaiseOnNoMatches {
				return nil, errors.Newf(errors.ErrNotFound, "no input files match rule %s", r.ID()).
					WithDetail("rule", r.ID())
			}
			c.logger.Warn().Str("rule", r.ID()).Msg("No input files match rule")
		}

		tasks = append(tasks, scheduler.Task{
			Rule:      r,
			Pipelines: c.pipelines[r],
			Groups:    scheduler.GroupByYears(matches, chunkYears(r)),
		})
	}

	sched := scheduler.New(c.doc.Engine.Workers, c.doc.Engine.Parallel)
	return sched.Run(ctx, tasks), nil
}

// chunkYears reads the rule's file_chunk_years attribute, zero meaning one
// group for everything
func chunkYears(r *rules.Rule) int {
	raw := r.AttrString("file_chunk_years", "")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0
	}
	return n
}
