package repository

import (
	"context"
	"testing"
	"time"

	"github.com/VaTka/wakame/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memReading(ts time.Time, p domain.Process, w float64) domain.Reading {
	return domain.Reading{Timestamp: ts, Weight: &w, Process: p, Unit: "g", Source: "serial"}
}

func TestMemoryReadingLog_AppendAndList(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryReadingLog()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		p := domain.ProcessMolding
		if i%2 == 1 {
			p = domain.ProcessPackaging
		}
		r, err := log.Append(ctx, memReading(now.Add(time.Duration(i)*time.Second), p, float64(i)))
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), r.ID)
	}

	recent, err := log.ListRecent(ctx, domain.ProcessMolding, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(5), recent[0].ID)
	assert.Equal(t, int64(3), recent[1].ID)

	all, err := log.ListRecent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	latest, err := log.Latest(ctx, domain.ProcessPackaging)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(4), latest.ID)

	ranged, err := log.ListRange(ctx, "", now.Add(time.Second), now.Add(3*time.Second), 0, 0)
	require.NoError(t, err)
	require.Len(t, ranged, 3)
	assert.Equal(t, int64(2), ranged[0].ID)
	assert.Equal(t, int64(4), ranged[2].ID)

	page, err := log.ListRange(ctx, "", now.Add(time.Second), now.Add(3*time.Second), 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(3), page[0].ID)

	newest, err := log.ListRangeNewest(ctx, domain.ProcessMolding, now, now.Add(3*time.Second), 1)
	require.NoError(t, err)
	require.Len(t, newest, 1)
	assert.Equal(t, int64(3), newest[0].ID)
}

func TestMemoryReadingLog_LatestEmpty(t *testing.T) {
	latest, err := NewMemoryReadingLog().Latest(context.Background(), domain.ProcessMolding)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestMemoryReadingLog_AggregateMatchesDomain(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryReadingLog()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var molding []domain.Reading
	for i := 0; i < 120; i++ {
		r := memReading(now.Add(-time.Duration(i*37)*time.Second), domain.ProcessMolding, 60+float64(i%7)/10)
		molding = append(molding, r)
		_, err := log.Append(ctx, r)
		require.NoError(t, err)
		_, err = log.Append(ctx, memReading(r.Timestamp, domain.ProcessPackaging, 999))
		require.NoError(t, err)
	}

	got, err := log.Aggregate(ctx, domain.ProcessMolding, now, 60, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.Aggregate(molding, now, 60, 5), got)
	for _, b := range got {
		assert.Less(t, b.MaxWeight, 100.0)
	}
}
