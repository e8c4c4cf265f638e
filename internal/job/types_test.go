package job

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusSubmitted, StatusInProgress, true},
		{StatusSubmitted, StatusFailed, true},
		{StatusInProgress, StatusComplete, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusInProgress, true},
		{StatusComplete, StatusComplete, true},
		{StatusInProgress, StatusSubmitted, false},
		{StatusComplete, StatusInProgress, false},
		{StatusComplete, StatusFailed, false},
		{StatusFailed, StatusComplete, false},
		{StatusSubmitted, Status("queued"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusSubmitted.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusComplete.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestDate_JSON(t *testing.T) {
	d, err := ParseDate("05/01/2020")
	require.NoError(t, err)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"05/01/2020"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, d.Equal(back.Time))

	assert.Error(t, json.Unmarshal([]byte(`"2020-05-01"`), &back))
}

func TestParseDate_Rejects(t *testing.T) {
	for _, s := range []string{"", "2020-05-01", "5/1/2020 10:00", "13/01/2020", "02/30/2020"} {
		_, err := ParseDate(s)
		assert.Error(t, err, s)
	}
}
