package expand

import (
	"strings"
	"testing"

	"github.com/kodflow/agld/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExpander(t *testing.T) *Expander {
	t.Helper()
	settings := &config.Settings{
		ManifestFolder:       "/etc/agld/services",
		ManifestExt:          ".yaml",
		StateFilePath:        "/var/run/agld/agld.state",
		HTTPProbeTimeoutMS:   200,
		LevelStartTimeoutSec: 30,
		ExtraParams:          "--foo",
	}
	return New(settings, "/opt/agld/bin/agld")
}

func TestExpandPercentPercentCollapses(t *testing.T) {
	e := newTestExpander(t)
	out, err := e.Expand(&config.Manifest{}, "100%% done")
	require.NoError(t, err)
	assert.Equal(t, "100% done", out)
}

func TestExpandUnknownTokenFails(t *testing.T) {
	e := newTestExpander(t)
	_, err := e.Expand(&config.Manifest{}, "%nope%")
	assert.Error(t, err)
}

func TestExpandManifestField(t *testing.T) {
	e := newTestExpander(t)
	m := &config.Manifest{Name: "web", Run: "/usr/bin/web"}
	out, err := e.Expand(m, "launching %name%: %run%")
	require.NoError(t, err)
	assert.Equal(t, "launching web: /usr/bin/web", out)
}

func TestExpandAglField(t *testing.T) {
	e := newTestExpander(t)
	out, err := e.Expand(&config.Manifest{}, "%agl.folder%/%agl.params%")
	require.NoError(t, err)
	assert.Equal(t, "/etc/agld/services/--foo", out)
}

func TestExpandAglBase(t *testing.T) {
	e := newTestExpander(t)
	out, err := e.Expand(&config.Manifest{}, "%agl.base%")
	require.NoError(t, err)
	assert.Equal(t, "/opt/agld/bin", out)
}

func TestExpandAglNowIsCompactAndFilenameSafe(t *testing.T) {
	e := newTestExpander(t)
	out, err := e.Expand(&config.Manifest{}, "%agl.now%")
	require.NoError(t, err)
	assert.NotContains(t, out, ":")
	assert.NotContains(t, out, " ")
	assert.Len(t, out, len("20060102-150405"))
}

func TestExpandRecursivePlaceholder(t *testing.T) {
	e := newTestExpander(t)
	// %description% resolves to a string that itself contains %run%.
	m := &config.Manifest{Run: "/usr/bin/inner", Description: "wrapping %run%"}
	out, err := e.Expand(m, "%description%")
	require.NoError(t, err)
	assert.Equal(t, "wrapping /usr/bin/inner", out)
}

func TestExpandRecursionDepthExceeded(t *testing.T) {
	e := newTestExpander(t)
	// description references itself indirectly through run, and run
	// references description, forming a cycle that never stabilizes.
	m := &config.Manifest{}
	m.Description = "%run%"
	m.Run = "%description%"
	_, err := e.Expand(m, "%description%")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "depth"))
}

func TestExpandUnterminatedPlaceholder(t *testing.T) {
	e := newTestExpander(t)
	_, err := e.Expand(&config.Manifest{}, "%name")
	assert.Error(t, err)
}
