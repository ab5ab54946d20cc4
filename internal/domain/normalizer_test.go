package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string     { return &s }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(b bool) *bool        { return &b }

func testNormalizer() Normalizer {
	return Normalizer{Bounds: ErrorBounds{Min: 0, Max: 50000}, DefaultProcess: ProcessMolding}
}

func TestParseRaw_StableReading(t *testing.T) {
	p := ParseRaw("+23.4 G S")

	require.NotNil(t, p.Weight)
	assert.Equal(t, 23.4, *p.Weight)
	assert.Equal(t, "G S", p.Flags)
	assert.True(t, p.Stable)
	assert.Equal(t, "g", p.Unit)
}

func TestParseRaw_FirstNumberWins(t *testing.T) {
	p := ParseRaw("ST,GS,-12.36kg 99")

	require.NotNil(t, p.Weight)
	assert.Equal(t, -12.4, *p.Weight)
	assert.Equal(t, "ST GS kg", p.Flags)
	assert.True(t, p.Stable)
	// 单位不做检测
	assert.Equal(t, "g", p.Unit)
}

func TestParseRaw_NoNumber(t *testing.T) {
	p := ParseRaw("ERR OL")

	assert.Nil(t, p.Weight)
	assert.Equal(t, "ERR OL", p.Flags)
	assert.False(t, p.Stable)
}

func TestParseRaw_LowercaseStableFlag(t *testing.T) {
	p := ParseRaw("12 us")
	assert.True(t, p.Stable)
}

func TestErrorBounds_IsError(t *testing.T) {
	b := ErrorBounds{Min: 0, Max: 100}

	assert.True(t, b.IsError(nil))
	assert.True(t, b.IsError(floatPtr(math.NaN())))
	assert.True(t, b.IsError(floatPtr(math.Inf(1))))
	assert.True(t, b.IsError(floatPtr(-0.1)))
	assert.True(t, b.IsError(floatPtr(100.1)))
	assert.False(t, b.IsError(floatPtr(0)))
	assert.False(t, b.IsError(floatPtr(100)))
}

func TestNormalize_FromRaw(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 700_000_000, time.FixedZone("JST", 9*3600))

	r := testNormalizer().Normalize(IngestInput{Raw: strPtr("+23.4 G S")}, now)

	require.NotNil(t, r.Weight)
	assert.Equal(t, 23.4, *r.Weight)
	require.NotNil(t, r.Stable)
	assert.True(t, *r.Stable)
	assert.False(t, r.IsError)
	assert.Equal(t, "G S", r.Status)
	assert.Equal(t, "g", r.Unit)
	assert.Equal(t, "serial", r.Source)
	assert.Equal(t, ProcessMolding, r.Process)
	assert.Equal(t, time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC), r.Timestamp)
}

func TestNormalize_NoNumberIsError(t *testing.T) {
	r := testNormalizer().Normalize(IngestInput{Raw: strPtr("OVER")}, time.Now())

	assert.Nil(t, r.Weight)
	assert.True(t, r.IsError)
	require.NotNil(t, r.Raw)
	assert.Equal(t, "OVER", *r.Raw)
}

func TestNormalize_ExplicitFieldsWin(t *testing.T) {
	in := IngestInput{
		Raw:     strPtr("+23.4 G S"),
		Weight:  floatPtr(61.26),
		Unit:    strPtr("kg"),
		Status:  strPtr("manual"),
		Source:  strPtr("bench"),
		Process: ProcessPackaging,
		Stable:  boolPtr(false),
	}

	r := testNormalizer().Normalize(in, time.Now())

	require.NotNil(t, r.Weight)
	assert.Equal(t, 61.3, *r.Weight)
	assert.Equal(t, "kg", r.Unit)
	assert.Equal(t, "manual", r.Status)
	assert.Equal(t, "bench", r.Source)
	assert.Equal(t, ProcessPackaging, r.Process)
	require.NotNil(t, r.Stable)
	assert.False(t, *r.Stable)
}

func TestNormalize_ZeroIsNotError(t *testing.T) {
	r := testNormalizer().Normalize(IngestInput{Weight: floatPtr(0)}, time.Now())

	require.NotNil(t, r.Weight)
	assert.Equal(t, 0.0, *r.Weight)
	assert.False(t, r.IsError)
	assert.Nil(t, r.Stable)
}

func TestNormalize_OutOfRange(t *testing.T) {
	r := testNormalizer().Normalize(IngestInput{Raw: strPtr("-5.0 G")}, time.Now())
	assert.True(t, r.IsError)

	r = testNormalizer().Normalize(IngestInput{Weight: floatPtr(50000.1)}, time.Now())
	assert.True(t, r.IsError)
}

func TestNormalize_BlankRawIsAbsent(t *testing.T) {
	r := testNormalizer().Normalize(IngestInput{Raw: strPtr("   "), Weight: floatPtr(12)}, time.Now())

	assert.Nil(t, r.Raw)
	assert.Equal(t, "", r.Status)
	assert.Nil(t, r.Stable)
}

func TestIngestInput_HasPayload(t *testing.T) {
	assert.False(t, IngestInput{}.HasPayload())
	assert.False(t, IngestInput{Raw: strPtr(" \t")}.HasPayload())
	assert.False(t, IngestInput{Weight: floatPtr(math.NaN())}.HasPayload())
	assert.True(t, IngestInput{Raw: strPtr("x")}.HasPayload())
	assert.True(t, IngestInput{Weight: floatPtr(0)}.HasPayload())
}

func TestParseProcess(t *testing.T) {
	p, err := ParseProcess(" Packaging ")
	require.NoError(t, err)
	assert.Equal(t, ProcessPackaging, p)

	_, err = ParseProcess("welding")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
