package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_Classification(t *testing.T) {
	spec := ToleranceSpec{Target: 60, DeviationPercent: 3}

	above := Evaluate(floatPtr(61.9), spec)
	require.NotNil(t, above)
	assert.Equal(t, ClassAbove, above.Classification)
	assert.True(t, above.OutOfRange())
	assert.InDelta(t, 61.8, above.Upper, 1e-9)
	assert.InDelta(t, 58.2, above.Lower, 1e-9)

	below := Evaluate(floatPtr(58.1), spec)
	require.NotNil(t, below)
	assert.Equal(t, ClassBelow, below.Classification)

	within := Evaluate(floatPtr(60.5), spec)
	require.NotNil(t, within)
	assert.Equal(t, ClassWithin, within.Classification)
	assert.False(t, within.OutOfRange())
	assert.InDelta(t, 0.8333, within.PercentDiff, 1e-3)
}

func TestEvaluate_BoundsAreExclusive(t *testing.T) {
	spec := ToleranceSpec{Target: 100, DeviationPercent: 10}
	upper, lower, ok := spec.Bounds()
	require.True(t, ok)

	res := Evaluate(&upper, spec)
	require.NotNil(t, res)
	assert.Equal(t, ClassWithin, res.Classification)

	res = Evaluate(&lower, spec)
	require.NotNil(t, res)
	assert.Equal(t, ClassWithin, res.Classification)
}

func TestEvaluate_Undefined(t *testing.T) {
	assert.Nil(t, Evaluate(nil, ToleranceSpec{Target: 60, DeviationPercent: 3}))
	assert.Nil(t, Evaluate(floatPtr(60), ToleranceSpec{Target: 0, DeviationPercent: 3}))
	assert.Nil(t, Evaluate(floatPtr(60), ToleranceSpec{Target: -1, DeviationPercent: 3}))
	assert.Nil(t, Evaluate(floatPtr(60), ToleranceSpec{Target: 60, DeviationPercent: math.NaN()}))
	assert.Nil(t, Evaluate(floatPtr(60), ToleranceSpec{Target: 60, DeviationPercent: math.Inf(1)}))
}

func TestPercentDiff_IndependentOfBounds(t *testing.T) {
	d, ok := PercentDiff(floatPtr(66), 60)
	require.True(t, ok)
	assert.InDelta(t, 10.0, d, 1e-9)

	_, ok = PercentDiff(floatPtr(66), 0)
	assert.False(t, ok)
	_, ok = PercentDiff(nil, 60)
	assert.False(t, ok)
}

func TestUsableLatest(t *testing.T) {
	assert.False(t, UsableLatest(nil))
	assert.False(t, UsableLatest(&Reading{}))
	assert.False(t, UsableLatest(&Reading{Weight: floatPtr(0)}))
	assert.False(t, UsableLatest(&Reading{Weight: floatPtr(math.NaN())}))
	assert.True(t, UsableLatest(&Reading{Weight: floatPtr(-1.5)}))
	assert.True(t, UsableLatest(&Reading{Weight: floatPtr(60.2), IsError: true}))
}
