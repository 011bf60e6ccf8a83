package staticasset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeusData/codegraph/internal/discover"
	"github.com/DeusData/codegraph/internal/lang"
)

func writeTempFile(t *testing.T, name, content string) discover.FileInfo {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	language, _ := lang.LanguageForExtension(filepath.Ext(name))
	return discover.FileInfo{Path: path, RelPath: name, Language: language}
}

func TestParseFileHTMLEmitsNoEntities(t *testing.T) {
	src := `<html><head><title>Widgets</title></head><body><div class="app"></div></body></html>`
	f := writeTempFile(t, "index.html", src)
	fe := New()
	result, err := fe.ParseFile(context.Background(), f, "sample", "file-id-1")
	require.NoError(t, err)
	require.Empty(t, result.Entities)
	require.Equal(t, "Widgets", result.FileProperties["title"])
	require.Contains(t, result.FileProperties["tags"], "title")
}

func TestParseFileCSSSelectors(t *testing.T) {
	src := `.app { color: red; } #root { display: flex; }`
	f := writeTempFile(t, "styles.css", src)
	fe := New()
	result, err := fe.ParseFile(context.Background(), f, "sample", "file-id-2")
	require.NoError(t, err)
	require.Empty(t, result.Entities)
	require.Contains(t, result.FileProperties["selectors"], ".app")
	require.Contains(t, result.FileProperties["selectors"], "#root")
}

func TestLanguagesIsHTMLAndCSS(t *testing.T) {
	fe := New()
	require.ElementsMatch(t, []lang.Language{lang.HTML, lang.CSS}, fe.Languages())
}
