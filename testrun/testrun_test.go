package testrun

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   bool
	}{
		{"pending is valid", StatusPending, true},
		{"running is valid", StatusRunning, true},
		{"passed is valid", StatusPassed, true},
		{"failed is valid", StatusFailed, true},
		{"skipped is valid", StatusSkipped, true},
		{"invalid status", Status("invalid"), false},
		{"empty status", Status(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsValid())
		})
	}
}

func TestStatus_IsFinal(t *testing.T) {
	assert.True(t, StatusPassed.IsFinal())
	assert.True(t, StatusFailed.IsFinal())
	assert.True(t, StatusSkipped.IsFinal())
	assert.False(t, StatusPending.IsFinal())
	assert.False(t, StatusRunning.IsFinal())
}

func TestTestRun_Validate(t *testing.T) {
	tests := []struct {
		name    string
		testRun TestRun
		wantErr error
	}{
		{
			name:    "valid test run",
			testRun: TestRun{CaseID: "SB-1234", Project: "Chrome", Attempt: 1, Status: StatusPending},
		},
		{
			name:    "missing case id",
			testRun: TestRun{Project: "Chrome", Attempt: 1, Status: StatusPending},
			wantErr: ErrInvalidCaseID,
		},
		{
			name:    "missing project",
			testRun: TestRun{CaseID: "SB-1234", Attempt: 1, Status: StatusPending},
			wantErr: ErrInvalidProject,
		},
		{
			name:    "attempt zero",
			testRun: TestRun{CaseID: "SB-1234", Project: "Chrome", Status: StatusPending},
			wantErr: ErrInvalidAttempt,
		},
		{
			name:    "invalid status",
			testRun: TestRun{CaseID: "SB-1234", Project: "Chrome", Attempt: 1, Status: "done"},
			wantErr: ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.testRun.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTestRun_Lifecycle(t *testing.T) {
	tr := &TestRun{CaseID: "SB-1", Project: "Chrome", Attempt: 1, Status: StatusPending}
	assert.ErrorIs(t, tr.Complete(StatusPassed, ""), ErrTestRunNotRunning)
	assert.Zero(t, tr.Duration())

	require.NoError(t, tr.Start())
	assert.Equal(t, StatusRunning, tr.Status)
	assert.ErrorIs(t, tr.Start(), ErrTestRunAlreadyStarted)

	assert.ErrorIs(t, tr.Complete(StatusRunning, ""), ErrInvalidStatus)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, tr.Complete(StatusFailed, "expected dialog visible"))
	assert.Equal(t, StatusFailed, tr.Status)
	assert.Equal(t, "expected dialog visible", tr.Error)
	assert.Greater(t, tr.Duration(), time.Duration(0))
}

func TestAssetTypeFor(t *testing.T) {
	assert.Equal(t, AssetTypeImage, AssetTypeFor("image/png"))
	assert.Equal(t, AssetTypeVideo, AssetTypeFor("video/webm"))
	assert.Equal(t, AssetTypeDocument, AssetTypeFor("application/json"))
}

func TestRunAsset_Validate(t *testing.T) {
	valid := RunAsset{TestRunID: uuid.New(), AssetType: AssetTypeVideo, StorageKey: "runs/x/video.webm", FileName: "video.webm"}
	assert.NoError(t, valid.Validate())

	missingRun := valid
	missingRun.TestRunID = uuid.Nil
	assert.ErrorIs(t, missingRun.Validate(), ErrInvalidTestRunID)

	badType := valid
	badType.AssetType = "binary"
	assert.ErrorIs(t, badType.Validate(), ErrInvalidAssetType)

	noKey := valid
	noKey.StorageKey = ""
	assert.ErrorIs(t, noKey.Validate(), ErrInvalidStorageKey)

	noName := valid
	noName.FileName = ""
	assert.ErrorIs(t, noName.Validate(), ErrInvalidFileName)
}
