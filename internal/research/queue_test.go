package research

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vendor-research/internal/model"
)

func TestQueueProcessesInOrder(t *testing.T) {
	st := newTestStore(t)
	ext := &stubExtractor{result: defaultExtraction()}
	o := NewOrchestrator(st, ext, &stubEnricher{})
	q := NewQueue(o)

	var jobIDs []string
	var sites []string
	for _, site := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		v := seedVendor(t, st, "Vendor "+site, site)
		job, err := o.CreateResearchRequest(context.Background(), v.ID)
		require.NoError(t, err)
		jobIDs = append(jobIDs, job.ID)
		sites = append(sites, site)
	}

	for _, id := range jobIDs {
		q.Enqueue(context.Background(), id)
	}
	q.Wait()

	assert.Equal(t, sites, ext.captured)
	for _, id := range jobIDs {
		got, err := st.GetResearch(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.ResearchStatusCompleted, got.Status)
	}
}

func TestQueueSingleInFlight(t *testing.T) {
	st := newTestStore(t)
	ext := &stubExtractor{result: defaultExtraction(), delay: 10 * time.Millisecond}
	o := NewOrchestrator(st, ext, &stubEnricher{})
	q := NewQueue(o)

	for i := 0; i < 4; i++ {
		v := seedVendor(t, st, "Vendor", "https://v.example")
		job, err := o.CreateResearchRequest(context.Background(), v.ID)
		require.NoError(t, err)
		q.Enqueue(context.Background(), job.ID)
	}
	q.Wait()

	assert.Equal(t, int32(1), ext.maxSeen.Load())
	assert.Zero(t, q.Len())
}

func TestQueueContinuesPastFailingJob(t *testing.T) {
	st := newTestStore(t)
	fs := &flakyStore{Store: st, failGetResearch: map[string]bool{}}
	ext := &stubExtractor{result: defaultExtraction()}
	o := NewOrchestrator(fs, ext, &stubEnricher{})
	q := NewQueue(o)

	v := seedVendor(t, st, "Acme", "https://acme.example")
	bad, err := o.CreateResearchRequest(context.Background(), v.ID)
	require.NoError(t, err)
	good, err := o.CreateResearchRequest(context.Background(), v.ID)
	require.NoError(t, err)
	fs.failGetResearch[bad.ID] = true

	q.Enqueue(context.Background(), bad.ID)
	q.Enqueue(context.Background(), good.ID)
	q.Wait()

	gotBad, err := st.GetResearch(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ResearchStatusPending, gotBad.Status)

	gotGood, err := st.GetResearch(context.Background(), good.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ResearchStatusCompleted, gotGood.Status)
}

func TestQueueRestartsAfterDrain(t *testing.T) {
	st := newTestStore(t)
	ext := &stubExtractor{result: defaultExtraction()}
	o := NewOrchestrator(st, ext, &stubEnricher{})
	q := NewQueue(o)

	v := seedVendor(t, st, "Acme", "https://acme.example")

	first, err := o.CreateResearchRequest(context.Background(), v.ID)
	require.NoError(t, err)
	q.Enqueue(context.Background(), first.ID)
	q.Wait()

	second, err := o.CreateResearchRequest(context.Background(), v.ID)
	require.NoError(t, err)
	q.Enqueue(context.Background(), second.ID)
	q.Wait()

	got, err := st.GetResearch(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ResearchStatusCompleted, got.Status)
}
