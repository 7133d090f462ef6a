package annotate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodgroupdb/leadctl/internal/lead"
)

// recordingPatcher records every PATCH body it receives.
type recordingPatcher struct {
	patches []map[string]any
	ids     []int
	err     error
}

func (p *recordingPatcher) PatchVariant(ctx context.Context, id int, fields map[string]any) error {
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, id)
	p.patches = append(p.patches, fields)
	return nil
}

func TestRunSkipsWithoutQuerying(t *testing.T) {
	src := &fakeSource{
		name:      "rsid",
		fields:    []string{lead.FieldRsID},
		annotated: func(v *lead.Variant) bool { return v.HasRsID() },
		outcome:   Found(map[string]any{"rsid": "rs99"}),
	}
	patcher := &recordingPatcher{}
	runner := NewRunner(src, patcher, Policy{})

	variants := []lead.Variant{
		{ID: 1, RsID: strptr("rs1")},
		{ID: 2, RsID: strptr("rs2")},
	}
	counters, err := runner.Run(context.Background(), variants)
	require.NoError(t, err)

	assert.Equal(t, 0, src.queries, "annotated variants must not reach the network")
	assert.Equal(t, Counters{Skipped: 2}, counters)
	assert.Empty(t, patcher.patches)
}

func TestRunAppliesUpdates(t *testing.T) {
	src := &fakeSource{
		name:    "exons",
		fields:  []string{lead.FieldExon, lead.FieldIntron},
		outcome: Found(map[string]any{"exon": "5-6"}),
	}
	patcher := &recordingPatcher{}
	runner := NewRunner(src, patcher, Policy{})

	counters, err := runner.Run(context.Background(), []lead.Variant{{ID: 10}})
	require.NoError(t, err)

	assert.Equal(t, Counters{Updated: 1}, counters)
	require.Len(t, patcher.patches, 1)
	assert.Equal(t, []int{10}, patcher.ids)
	assert.Equal(t, map[string]any{"exon": "5-6"}, patcher.patches[0])
}

func TestRunClearsNotFound(t *testing.T) {
	src := &fakeSource{
		name:      "rsid",
		fields:    []string{lead.FieldRsID},
		annotated: func(v *lead.Variant) bool { return v.HasRsID() },
		outcome:   NotFound(),
	}
	patcher := &recordingPatcher{}
	runner := NewRunner(src, patcher, Policy{OverwriteAll: true, ClearNotFound: true})

	counters, err := runner.Run(context.Background(), []lead.Variant{{ID: 11, RsID: strptr("rs5")}})
	require.NoError(t, err)

	assert.Equal(t, Counters{NotFound: 1, Cleared: 1}, counters)
	require.Len(t, patcher.patches, 1)
	assert.Nil(t, patcher.patches[0]["rsid"])
}

func TestDryRunAndLiveRunCountIdentically(t *testing.T) {
	variants := []lead.Variant{
		{ID: 1},                        // found -> updated
		{ID: 2, RsID: strptr("rs2")},   // skipped (already annotated)
		{ID: 3},                        // found -> updated
	}

	run := func(dry bool) Counters {
		src := &fakeSource{
			name:      "rsid",
			fields:    []string{lead.FieldRsID},
			annotated: func(v *lead.Variant) bool { return v.HasRsID() },
			outcome:   Found(map[string]any{"rsid": "rs77"}),
		}
		patcher := &recordingPatcher{}
		runner := NewRunner(src, patcher, Policy{})
		runner.SetDryRun(dry)
		counters, err := runner.Run(context.Background(), variants)
		require.NoError(t, err)
		if dry {
			assert.Empty(t, patcher.patches, "dry run must not send updates")
		} else {
			assert.Len(t, patcher.patches, 2)
		}
		return counters
	}

	assert.Equal(t, run(false), run(true))
}

func TestRunPacesConsecutiveQueries(t *testing.T) {
	src := &fakeSource{
		name:     "rsid",
		fields:   []string{lead.FieldRsID},
		outcome:  NotFound(),
		interval: 50 * time.Millisecond,
	}
	patcher := &recordingPatcher{}
	runner := NewRunner(src, patcher, Policy{})

	_, err := runner.Run(context.Background(), []lead.Variant{{ID: 1}, {ID: 2}, {ID: 3}})
	require.NoError(t, err)

	require.Len(t, src.queryAt, 3)

	// Timestamps are taken just after the limiter releases, so allow a
	// small measurement slack below the nominal interval.
	minGap := src.interval - 5*time.Millisecond
	assert.GreaterOrEqual(t, src.queryAt[1].Sub(src.queryAt[0]), minGap,
		"the first two queries must be a full interval apart")
	assert.GreaterOrEqual(t, src.queryAt[2].Sub(src.queryAt[1]), minGap)
}

func TestRunContinuesPastErrorOutcomes(t *testing.T) {
	src := &fakeSource{
		name:    "gnomad",
		fields:  lead.GnomadFields,
		outcome: Failed(errors.New("timeout")),
	}
	patcher := &recordingPatcher{}
	runner := NewRunner(src, patcher, Policy{})

	counters, err := runner.Run(context.Background(), []lead.Variant{{ID: 1}, {ID: 2}})
	require.NoError(t, err)

	assert.Equal(t, 2, src.queries, "errors must not abort the batch")
	assert.Equal(t, Counters{NotFound: 2}, counters)
}

func TestRunPatchFailureDoesNotCount(t *testing.T) {
	src := &fakeSource{
		name:    "exons",
		fields:  []string{lead.FieldExon, lead.FieldIntron},
		outcome: Found(map[string]any{"exon": "3"}),
	}
	patcher := &recordingPatcher{err: errors.New("503")}
	runner := NewRunner(src, patcher, Policy{})

	counters, err := runner.Run(context.Background(), []lead.Variant{{ID: 1}})
	require.NoError(t, err)
	assert.Equal(t, Counters{}, counters)
}
