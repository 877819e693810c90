package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, manifest string, locks map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MeltanoFile), []byte(manifest), 0o644))
	for rel, content := range locks {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadCustomPlugin(t *testing.T) {
	dir := writeProject(t, `
version: 1
plugins:
  extractors:
    - name: tap-custom
      namespace: tap_custom
      executable: ./tap-custom.sh
`, nil)

	p, err := Load(dir)
	require.NoError(t, err)

	def := p.Plugin(PluginTypeExtractors, "tap-custom")
	require.NotNil(t, def)
	assert.Equal(t, "tap-custom", def.Name())
	assert.Equal(t, "./tap-custom.sh", def["executable"])
	assert.True(t, p.HasPlugin(PluginTypeExtractors, "tap-custom"))
}

func TestLoadLockFileMerge(t *testing.T) {
	dir := writeProject(t, `
version: 1
plugins:
  extractors:
    - name: tap-github
      variant: meltanolabs
      pip_url: tap-github==2.0.0
`, map[string]string{
		"plugins/extractors/tap-github--meltanolabs.lock": `{
			"name": "tap-github",
			"namespace": "tap_github",
			"pip_url": "tap-github==1.0.0",
			"settings": [{"name": "auth_token", "kind": "password"}]
		}`,
	})

	p, err := Load(dir)
	require.NoError(t, err)

	def := p.Plugin(PluginTypeExtractors, "tap-github")
	require.NotNil(t, def)
	// meltano.yml wins over the lock file
	assert.Equal(t, "tap-github==2.0.0", def["pip_url"])
	// lock-only keys survive
	assert.Equal(t, "tap_github", def["namespace"])

	settings := def.Settings()
	require.Len(t, settings, 1)
	assert.Equal(t, "auth_token", settings[0]["name"])
}

func TestLoadSkipsInherited(t *testing.T) {
	dir := writeProject(t, `
version: 1
plugins:
  extractors:
    - name: tap-github
      namespace: tap_github
    - name: tap-github--staging
      inherit_from: tap-github
`, nil)

	p, err := Load(dir)
	require.NoError(t, err)

	assert.True(t, p.HasPlugin(PluginTypeExtractors, "tap-github"))
	assert.False(t, p.HasPlugin(PluginTypeExtractors, "tap-github--staging"))
}

func TestLoadMissingLock(t *testing.T) {
	dir := writeProject(t, `
version: 1
plugins:
  extractors:
    - name: tap-github
      variant: meltanolabs
`, nil)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tap-github")
	assert.Contains(t, err.Error(), "lock file")
}

func TestLoadMissingVariant(t *testing.T) {
	dir := writeProject(t, `
version: 1
plugins:
  extractors:
    - name: tap-github
`, nil)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no variant and no namespace")
}

func TestNames(t *testing.T) {
	dir := writeProject(t, `
version: 1
plugins:
  extractors:
    - name: tap-zulu
      namespace: tap_zulu
    - name: tap-alpha
      namespace: tap_alpha
  loaders:
    - name: target-postgres
      namespace: target_postgres
`, nil)

	p, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"tap-alpha", "tap-zulu"}, p.Extractors())
	assert.Equal(t, []string{"target-postgres"}, p.Loaders())
}

func TestOrphanLocks(t *testing.T) {
	dir := writeProject(t, `
version: 1
plugins:
  extractors:
    - name: tap-github
      variant: meltanolabs
`, map[string]string{
		"plugins/extractors/tap-github--meltanolabs.lock": `{"name": "tap-github"}`,
		"plugins/extractors/tap-old--airbyte.lock":        `{"name": "tap-old"}`,
	})

	p, err := Load(dir)
	require.NoError(t, err)

	locks, err := p.LockFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"plugins/extractors/tap-github--meltanolabs.lock",
		"plugins/extractors/tap-old--airbyte.lock",
	}, locks)

	orphans, err := p.OrphanLocks()
	require.NoError(t, err)
	assert.Equal(t, []string{"plugins/extractors/tap-old--airbyte.lock"}, orphans)
}
