package model_test

import (
	"testing"

	"github.com/patchgate-project/patchgate/pkg/model"
	"github.com/stretchr/testify/assert"
)

func TestFileStatusFor_Mapping(t *testing.T) {
	cases := []struct {
		change model.ChangeStatus
		want   model.FileStatus
		ok     bool
	}{
		{model.StatusApplied, model.FileAccepted, true},
		{model.StatusRejected, model.FileRejected, true},
		{model.StatusResolved, model.FileResolved, true},
		{model.StatusPending, model.FilePending, true},
		{model.StatusAccepted, "", false},
		{model.StatusFailed, "", false},
		{model.StatusConflict, "", false},
	}
	for _, tc := range cases {
		got, ok := model.FileStatusFor(tc.change)
		assert.Equal(t, tc.ok, ok, "status %s", tc.change)
		if tc.ok {
			assert.Equal(t, tc.want, got, "status %s", tc.change)
		}
	}
}

func TestEditSession_FileCount(t *testing.T) {
	session := &model.EditSession{
		PermissionID: "perm-42",
		Files: []*model.FileEntry{
			{Filepath: "/a.go"},
			{Filepath: "/b.go"},
		},
	}
	assert.Equal(t, 2, session.FileCount())
}
