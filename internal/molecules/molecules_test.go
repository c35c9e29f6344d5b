package molecules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLookup(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)
	assert.Greater(t, m.Len(), 50)

	assert.Equal(t, "Desloratadine", m.Lookup("AERIUS"))
	assert.Equal(t, "Desloratadine", m.Lookup("  aerius "))
	assert.Equal(t, "Levocetirizine", m.Lookup("ZENARO  BTE >>"))
	assert.Equal(t, "", m.Lookup("NOT A DRUG"))
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "molecules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
molecules:
  Desloratadine: [NEW BRAND]
  Aspirin: [AERIUS]
`), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Desloratadine", m.Lookup("new brand"))
	assert.Equal(t, "Aspirin", m.Lookup("AERIUS"), "file entries win over built-ins")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Desloratadine", m.Lookup("AERIUS"))
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("molecules: [not, a, map"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestAddSaveAndUnknown(t *testing.T) {
	m := New()
	m.Add("Brand X", "Moleculine")
	m.Add("", "ignored")
	assert.Equal(t, 1, m.Len())

	assert.Equal(t, []string{"OTHER", "ZED"}, m.Unknown([]string{"ZED", "brand x", "OTHER", "ZED", " "}))

	path := filepath.Join(t.TempDir(), "out", "molecules.yaml")
	require.NoError(t, m.Save(path))

	reloaded := New()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, reloaded.merge(data))
	assert.Equal(t, "Moleculine", reloaded.Lookup("BRAND X"))
}
