package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeFlagsPerType(t *testing.T) {
	assert.True(t, Describe(CopyFile).TransferRelated)
	assert.False(t, Describe(CopyFile).Upload)
	assert.False(t, Describe(CopyFile).Move)

	assert.True(t, Describe(MoveFile).Move)
	assert.True(t, Describe(UploadCopyFile).Upload)
	assert.True(t, Describe(ExploreDir).Explore)
	assert.False(t, Describe(ChAttr).TransferRelated)
}

func TestItemSetStateFollowsLegalTransitions(t *testing.T) {
	item := &Item{State: Waiting}

	assert.True(t, item.SetState(Processing))
	assert.Equal(t, Processing, item.State)

	assert.True(t, item.SetState(Done))
	assert.Equal(t, Done, item.State)
}

func TestItemSetStateRejectsIllegalTransition(t *testing.T) {
	item := &Item{State: Done}

	assert.False(t, item.SetState(Processing))
	assert.Equal(t, Done, item.State)
}

func TestItemSetStateWaitingToDoneDirectlyIsIllegal(t *testing.T) {
	item := &Item{State: Waiting}

	assert.False(t, item.SetState(Done))
	assert.Equal(t, Waiting, item.State)
}

func TestUserInputNeededCanResumeOrTerminate(t *testing.T) {
	item := &Item{State: UserInputNeeded}
	assert.True(t, CanTransition(item.State, Waiting))
	assert.True(t, CanTransition(item.State, Skipped))
	assert.False(t, CanTransition(item.State, Done))
}

func TestTypeStringNames(t *testing.T) {
	assert.Equal(t, "copy-file", CopyFile.String())
	assert.Equal(t, "upload-move-explore", UploadMoveExplore.String())
	assert.Equal(t, "unknown", Type(99).String())
}
