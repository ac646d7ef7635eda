package model_test

import (
	"regexp"
	"testing"

	"github.com/patchgate-project/patchgate/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var changeIDPattern = regexp.MustCompile(`^\d{13}-[0-9a-f]{8}$`)

func TestNewChangeID_Format(t *testing.T) {
	id := model.NewChangeID()
	require.Regexp(t, changeIDPattern, string(id))
}

func TestChangeID_ShortID(t *testing.T) {
	id := model.ChangeID("1708300800000-a3f7c1b2")
	assert.Equal(t, "17083008", id.ShortID())
}

func TestNewChangeID_Uniqueness(t *testing.T) {
	seen := make(map[model.ChangeID]bool)
	for i := 0; i < 100; i++ {
		id := model.NewChangeID()
		assert.False(t, seen[id], "duplicate: %s", id)
		seen[id] = true
	}
}

func TestChangeStatus_Terminal(t *testing.T) {
	assert.True(t, model.StatusApplied.Terminal())
	assert.True(t, model.StatusRejected.Terminal())
	assert.True(t, model.StatusResolved.Terminal())
	assert.False(t, model.StatusPending.Terminal())
	assert.False(t, model.StatusFailed.Terminal())
	assert.False(t, model.StatusConflict.Terminal())
}

func TestChangeStatus_Actionable(t *testing.T) {
	assert.True(t, model.StatusPending.Actionable())
	assert.True(t, model.StatusFailed.Actionable())
	assert.True(t, model.StatusConflict.Actionable())
	assert.False(t, model.StatusApplied.Actionable())
	assert.False(t, model.StatusRejected.Actionable())
	assert.False(t, model.StatusResolved.Actionable())
}

func TestLineStats_Total(t *testing.T) {
	stats := model.LineStats{Added: 3, Removed: 2, Modified: 4}
	assert.Equal(t, 9, stats.Total())
}

func TestHunk_LineCount(t *testing.T) {
	h := model.Hunk{
		StartLine:     10,
		EndLine:       12,
		OriginalLines: []string{"a", "b", "c"},
		ModifiedLines: []string{"a", "x", "c", "d"},
	}
	assert.Equal(t, 4, h.LineCount())
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "main.go", model.BaseName("/home/user/project/main.go"))
	assert.Equal(t, "config.yaml", model.BaseName("config.yaml"))
}
