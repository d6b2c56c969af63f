package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSplitsVerbsAndParam(t *testing.T) {
	a, err := Parse("exec,wait:/usr/bin/thing arg1=0", Start)
	require.NoError(t, err)
	assert.Equal(t, []string{"exec", "wait"}, a.Verbs)
	assert.Equal(t, "/usr/bin/thing arg1", a.Param)
	assert.True(t, a.HasExpected)
	assert.Equal(t, 0, a.Expected)
}

func TestParseDropsDisallowedVerbsForContext(t *testing.T) {
	a, err := Parse("start,exec:thing", Watch)
	require.NoError(t, err)
	assert.Equal(t, []string{"exec"}, a.Verbs)
}

func TestParseServiceVerbDroppedOnNonWindows(t *testing.T) {
	if platformSupportsService {
		t.Skip("only meaningful off Windows")
	}
	a, err := Parse("service:myservice", Watch)
	require.NoError(t, err)
	assert.Empty(t, a.Verbs)
}

func TestParseNoColonMeansNoParam(t *testing.T) {
	a, err := Parse("start", Start)
	require.NoError(t, err)
	assert.Equal(t, []string{"start"}, a.Verbs)
	assert.Equal(t, "", a.Param)
	assert.False(t, a.HasExpected)
}

func TestParseHTTPActionKeepsFullURLInParam(t *testing.T) {
	a, err := Parse("http://127.0.0.1:8080/health=200", Watch)
	require.NoError(t, err)
	assert.Equal(t, []string{"http"}, a.Verbs)
	assert.Equal(t, "//127.0.0.1:8080/health", a.Param)
	assert.Equal(t, 200, a.Expected)
	assert.True(t, a.HasExpected)
	assert.Equal(t, "http://127.0.0.1:8080/health", a.URLFor("http"))
}

func TestExpectedOrDefault(t *testing.T) {
	a := &Action{HasExpected: false}
	assert.Equal(t, 0, a.ExpectedOrDefault("wait"))
	assert.Equal(t, 200, a.ExpectedOrDefault("http"))

	a2 := &Action{HasExpected: true, Expected: 201}
	assert.Equal(t, 201, a2.ExpectedOrDefault("http"))
}
