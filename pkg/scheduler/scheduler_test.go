package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-tools/cmorize/pkg/dataset"
	"github.com/esm-tools/cmorize/pkg/errors"
	"github.com/esm-tools/cmorize/pkg/pipeline"
	"github.com/esm-tools/cmorize/pkg/rules"
	"github.com/esm-tools/cmorize/pkg/scheduler"
)

func makeRule(t *testing.T, name string) *rules.Rule {
	t.Helper()
	resolved, err := rules.Resolve([]rules.RuleSpec{{
		Name:          name,
		CmorVariable:  "tas",
		CmorTable:     "Amon",
		InputPatterns: []string{`temp2_\d{4}\.nc`},
	}}, nil, nil, nil)
	require.NoError(t, err)
	return resolved[0]
}

func stepPipeline(fn pipeline.StepFunc) []*pipeline.Pipeline {
	return []*pipeline.Pipeline{pipeline.New("test", pipeline.NewStep("test-step", fn))}
}

func okStep(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
	data.SavedTo = append(data.SavedTo, rule.ID()+".nc")
	return data, nil
}

func failStep(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
	return nil, errors.New(errors.ErrDataLoad, "boom")
}

func TestRunOneOutcomePerTask(t *testing.T) {
	tasks := []scheduler.Task{
		{Rule: makeRule(t, "a"), Pipelines: stepPipeline(okStep)},
		{Rule: makeRule(t, "b"), Pipelines: stepPipeline(failStep)},
		{Rule: makeRule(t, "c"), Pipelines: stepPipeline(okStep)},
	}

	outcomes := scheduler.New(2, true).Run(context.Background(), tasks)
	require.Len(t, outcomes, 3)

	// outcome order follows task order regardless of completion order
	assert.Equal(t, "a", outcomes[0].RuleID)
	assert.Equal(t, "b", outcomes[1].RuleID)
	assert.Equal(t, "c", outcomes[2].RuleID)

	assert.Equal(t, scheduler.StatusSuccess, outcomes[0].Status)
	assert.Equal(t, scheduler.StatusFailed, outcomes[1].Status)
	assert.Equal(t, scheduler.StatusSuccess, outcomes[2].Status)

	assert.NoError(t, outcomes[0].Err)
	assert.Error(t, outcomes[1].Err)
	assert.Equal(t, []string{"a.nc"}, outcomes[0].Outputs)
	assert.False(t, scheduler.Succeeded(outcomes))
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	var current, peak int64
	slow := func(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
		n := atomic.AddInt64(&current, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return data, nil
	}

	tasks := make([]scheduler.Task, 6)
	for i := range tasks {
		tasks[i] = scheduler.Task{Rule: makeRule(t, "r"), Pipelines: stepPipeline(slow)}
	}

	outcomes := scheduler.New(2, true).Run(context.Background(), tasks)
	require.Len(t, outcomes, 6)
	assert.True(t, scheduler.Succeeded(outcomes))
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestRunSequentialWhenParallelDisabled(t *testing.T) {
	var current, peak int64
	slow := func(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
		n := atomic.AddInt64(&current, 1)
		if n > atomic.LoadInt64(&peak) {
			atomic.StoreInt64(&peak, n)
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return data, nil
	}

	tasks := []scheduler.Task{
		{Rule: makeRule(t, "a"), Pipelines: stepPipeline(slow)},
		{Rule: makeRule(t, "b"), Pipelines: stepPipeline(slow)},
	}

	outcomes := scheduler.New(8, false).Run(context.Background(), tasks)
	require.Len(t, outcomes, 2)
	assert.Equal(t, int64(1), atomic.LoadInt64(&peak))
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []scheduler.Task{
		{Rule: makeRule(t, "a"), Pipelines: stepPipeline(okStep)},
		{Rule: makeRule(t, "b"), Pipelines: stepPipeline(okStep)},
	}

	outcomes := scheduler.New(2, true).Run(ctx, tasks)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, scheduler.StatusCancelled, o.Status)
		assert.Error(t, o.Err)
	}
}

func TestRunSeedsFileGroups(t *testing.T) {
	var seen [][]string
	capture := func(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
		seen = append(seen, data.SourceFiles)
		return data, nil
	}

	task := scheduler.Task{
		Rule:      makeRule(t, "a"),
		Pipelines: stepPipeline(capture),
		Groups: [][]string{
			{"temp2_1850.nc", "temp2_1851.nc"},
			{"temp2_1852.nc"},
		},
	}

	outcomes := scheduler.New(1, false).Run(context.Background(), []scheduler.Task{task})
	require.Len(t, outcomes, 1)
	assert.Equal(t, scheduler.StatusSuccess, outcomes[0].Status)
	assert.Equal(t, [][]string{
		{"temp2_1850.nc", "temp2_1851.nc"},
		{"temp2_1852.nc"},
	}, seen)
}

func TestRunEmptyTasks(t *testing.T) {
	outcomes := scheduler.New(4, true).Run(context.Background(), nil)
	assert.Empty(t, outcomes)
	assert.True(t, scheduler.Succeeded(outcomes))
}
