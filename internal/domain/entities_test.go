package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syncrvault/syncr/internal/domain"
)

func TestValidTransition(t *testing.T) {
	valid := [][2]domain.JobStatus{
		{domain.JobPending, domain.JobReadyToFinalize},
		{domain.JobPending, domain.JobError},
		{domain.JobReadyToFinalize, domain.JobFinalizing},
		{domain.JobReadyToFinalize, domain.JobError},
		{domain.JobFinalizing, domain.JobCompleted},
		{domain.JobFinalizing, domain.JobError},
	}
	for _, e := range valid {
		assert.True(t, domain.ValidTransition(e[0], e[1]), "%s -> %s", e[0], e[1])
	}

	invalid := [][2]domain.JobStatus{
		{domain.JobPending, domain.JobFinalizing},
		{domain.JobPending, domain.JobCompleted},
		{domain.JobReadyToFinalize, domain.JobCompleted},
		{domain.JobReadyToFinalize, domain.JobPending},
		{domain.JobFinalizing, domain.JobPending},
		{domain.JobCompleted, domain.JobError},
		{domain.JobCompleted, domain.JobPending},
		{domain.JobError, domain.JobPending},
		{domain.JobError, domain.JobCompleted},
	}
	for _, e := range invalid {
		assert.False(t, domain.ValidTransition(e[0], e[1]), "%s -> %s", e[0], e[1])
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.True(t, domain.JobCompleted.Terminal())
	assert.True(t, domain.JobError.Terminal())
	assert.False(t, domain.JobPending.Terminal())
	assert.False(t, domain.JobReadyToFinalize.Terminal())
	assert.False(t, domain.JobFinalizing.Terminal())
}

func TestJobResult_Validate(t *testing.T) {
	var nilRes *domain.JobResult
	assert.NoError(t, nilRes.Validate(domain.JobTypeMerge))

	sync := &domain.JobResult{Songs: []domain.TrackDecision{{Name: "a", Status: domain.DecisionFound, TargetID: "x"}}}
	assert.NoError(t, sync.Validate(domain.JobTypeSyncSpToYt))
	assert.Error(t, sync.Validate(domain.JobTypeMerge))

	merge := &domain.JobResult{Merge: &domain.MergeSummary{SpotifyAdded: 2}}
	assert.NoError(t, merge.Validate(domain.JobTypeMerge))
	assert.Error(t, merge.Validate(domain.JobTypeSyncYtToSp))
}

func TestJobResult_FoundTargetIDs(t *testing.T) {
	r := &domain.JobResult{Songs: []domain.TrackDecision{
		{Name: "a", Status: domain.DecisionFound, TargetID: "id1"},
		{Name: "b", Status: domain.DecisionNotFound},
		{Name: "c", Status: domain.DecisionFound, TargetID: "id2"},
		{Name: "d", Status: domain.DecisionFound, TargetID: ""},
	}}
	assert.Equal(t, []string{"id1", "id2"}, r.FoundTargetIDs())

	var nilRes *domain.JobResult
	assert.Nil(t, nilRes.FoundTargetIDs())
}
