package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(Options{})
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BLOCKCFG_DB", "/var/lib/blockcfg.db")
	t.Setenv("BLOCKCFG_ICONS_SOURCE_DIR", "/srv/icons")
	t.Setenv("BLOCKCFG_ALWAYS_SHOW_DROPDOWN", "true")
	t.Setenv("BLOCKCFG_ELEMENT_CACHE_TTL", "30s")

	cfg, err := Load(Options{})
	require.NoError(t, err)

	require.Equal(t, "/var/lib/blockcfg.db", cfg.DB)
	require.Equal(t, "/srv/icons", cfg.Icons.SourceDir)
	require.True(t, cfg.AlwaysShowDropdown)
	require.Equal(t, 30*time.Second, cfg.ElementCacheTTL)
	require.Equal(t, "neo", cfg.Namespace)
}

func TestLoadFileThenFlags(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
db: from-file.db
namespace: blocks
icons:
  base_url: https://cdn.example.com
`), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.String("namespace", "", "")
	require.NoError(t, flags.Parse([]string{"--db", "from-flag.db"}))

	cfg, err := Load(Options{File: file, Flags: flags})
	require.NoError(t, err)

	require.Equal(t, "from-flag.db", cfg.DB)
	require.Equal(t, "blocks", cfg.Namespace, "unset flags do not override the file")
	require.Equal(t, "https://cdn.example.com", cfg.Icons.BaseURL)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Namespace = "a.b"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ElementCacheTTL = -time.Second
	require.Error(t, cfg.Validate())
}
