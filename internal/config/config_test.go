package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
[engine]
fetch_timeout = "2s"
dump_dir = "/tmp/dumps"

[classpath]
entries = ["build/classes", "lib/dep.jar"]

[log]
verbosity = 2
file = "jumpline.log"
`))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, c.Engine.FetchTimeout.Std())
	assert.Equal(t, DefaultTimeout, c.Engine.ApplyTimeout.Std())
	assert.Equal(t, "/tmp/dumps", c.Engine.DumpDir)
	assert.Equal(t, []string{"build/classes", "lib/dep.jar"}, c.Classpath.Entries)
	assert.Equal(t, DefaultCacheSize, c.Classpath.CacheSize)
	assert.Equal(t, 2, c.Log.Verbosity)
	require.NotNil(t, c.Log.Path())
	assert.Equal(t, "jumpline.log", *c.Log.Path())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("[engine]\nfetch_timeout = \"soon\"\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("[engine]\nfetch_timeot = \"1s\"\n"))
	assert.ErrorContains(t, err, "fetch_timeot")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	c, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Nil(t, c.Log.Path())

	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("[classpath]\ncache_size = 7\n"), 0o644))
	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Classpath.CacheSize)
	assert.Equal(t, DefaultTimeout, c.Engine.FetchTimeout.Std())
}

func TestDuration_MarshalText(t *testing.T) {
	b, err := Duration(1500 * time.Millisecond).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", string(b))
}
