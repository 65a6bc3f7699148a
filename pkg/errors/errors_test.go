package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-tools/cmorize/pkg/errors"
)

func TestNewAndError(t *testing.T) {
	err := errors.New(errors.ErrRuleInvalid, "missing required attribute")
	assert.Equal(t, "[RULE_INVALID] missing required attribute", err.Error())

	err = errors.Newf(errors.ErrStepNotFound, "unknown step %q", "frobnicate")
	assert.Equal(t, `[STEP_NOT_FOUND] unknown step "frobnicate"`, err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := errors.Wrap(cause, errors.ErrDataLoad, "cannot open dataset")

	assert.Contains(t, err.Error(), "underlying failure")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.ErrDataLoad, "whatever"))
	assert.Nil(t, errors.Wrapf(nil, errors.ErrDataLoad, "whatever %d", 1))
}

func TestIsErrorCode(t *testing.T) {
	err := errors.New(errors.ErrPipelineNotFound, "unknown pipeline")
	assert.True(t, errors.IsErrorCode(err, errors.ErrPipelineNotFound))
	assert.False(t, errors.IsErrorCode(err, errors.ErrStepNotFound))
	assert.False(t, errors.IsErrorCode(fmt.Errorf("plain"), errors.ErrPipelineNotFound))
	assert.False(t, errors.IsErrorCode(nil, errors.ErrPipelineNotFound))
}

func TestIsErrorCodeThroughWrapping(t *testing.T) {
	inner := errors.New(errors.ErrUnitIncompatible, "cannot convert")
	outer := fmt.Errorf("step failed: %w", inner)
	assert.True(t, errors.IsErrorCode(outer, errors.ErrUnitIncompatible))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, errors.ErrCancelled, errors.GetErrorCode(errors.New(errors.ErrCancelled, "stopped")))
	assert.Equal(t, errors.ErrUnknown, errors.GetErrorCode(fmt.Errorf("plain")))
}

func TestDetails(t *testing.T) {
	err := errors.New(errors.ErrStepExecute, "step failed").
		WithDetail("step", "convert_units").
		WithDetails(map[string]interface{}{"rule": "tas-rule"})

	details := errors.GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "convert_units", details["step"])
	assert.Equal(t, "tas-rule", details["rule"])

	assert.Nil(t, errors.GetErrorDetails(fmt.Errorf("plain")))
}

func TestDetailsSurviveRewrapping(t *testing.T) {
	inner := errors.New(errors.ErrPatternInvalid, "cannot compile pattern").
		WithDetail("pattern", `temp2_([unclosed`)
	outer := errors.Wrapf(inner, errors.GetErrorCode(inner), "rule %s", "temp2-rule").
		WithDetail("rule", "temp2-rule")

	details := errors.GetErrorDetails(outer)
	require.NotNil(t, details)
	assert.Equal(t, `temp2_([unclosed`, details["pattern"])
	assert.Equal(t, "temp2-rule", details["rule"])
}

func TestDetailsOuterEntryWins(t *testing.T) {
	inner := errors.New(errors.ErrStepExecute, "failed").WithDetail("step", "inner")
	outer := errors.Wrap(inner, errors.ErrStepExecute, "retagged").WithDetail("step", "outer")

	assert.Equal(t, "outer", errors.GetErrorDetails(outer)["step"])
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	a := errors.New(errors.ErrNotFound, "first")
	b := errors.New(errors.ErrNotFound, "second")
	assert.ErrorIs(t, a, b)
}
