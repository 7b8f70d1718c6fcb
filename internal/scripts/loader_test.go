package scripts_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"codeberg.org/sigterm-de/boopscript/assets"
	"codeberg.org/sigterm-de/boopscript/internal/scripts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBundledScripts(t *testing.T) {
	catalog, result, err := scripts.Load(assets.Scripts(), scripts.Dirs{})
	require.NoError(t, err)
	t.Cleanup(catalog.Close)

	assert.Empty(t, result.Skipped)
	assert.GreaterOrEqual(t, result.Counts[scripts.Bundled], 20)
	assert.Equal(t, result.Total(), catalog.Len())

	for _, s := range catalog.All() {
		assert.True(t, s.IsBundled(), s.Name())
		assert.NotEmpty(t, s.Metadata.Description, s.Name())
		assert.Equal(t, strings.ToLower(s.Metadata.Icon), s.Metadata.Icon)
	}
	_, ok := catalog.Get("Base64 Encode")
	assert.True(t, ok)
}

func TestBundledScriptsRun(t *testing.T) {
	catalog, _, err := scripts.Load(assets.Scripts(), scripts.Dirs{})
	require.NoError(t, err)
	t.Cleanup(catalog.Close)

	tests := []struct {
		script string
		input  string
		want   string
	}{
		{"Base64 Encode", "héllo", "aMOpbGxv"},
		{"Base64 Decode", "aMOpbGxv", "héllo"},
		{"Camel Case", "hello big_world", "helloBigWorld"},
		{"Snake Case", "helloBigWorld", "hello_big_world"},
		{"Kebab Case", "Hello Big World", "hello-big-world"},
		{"Upcase", "boop", "BOOP"},
		{"Reverse String", "abc", "cba"},
		{"Sort lines", "b\na\nc", "a\nb\nc"},
		{"Remove Duplicate Lines", "a\nb\na", "a\nb"},
		{"Minify JSON", "{ \"a\": [1, 2] }", `{"a":[1,2]}`},
		{"YAML to JSON", "a: 1", "{\n  \"a\": 1\n}"},
		{"URL Encode", "a b&c", "a%20b%26c"},
	}
	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			status, err := catalog.Execute(tt.script, tt.input, nil)
			require.NoError(t, err)
			_, failed := status.ErrorMessage()
			require.False(t, failed)
			assert.Equal(t, tt.want, status.Replacement().Text)
		})
	}
}

func TestBundledInsertCounterKeepsState(t *testing.T) {
	catalog, _, err := scripts.Load(assets.Scripts(), scripts.Dirs{})
	require.NoError(t, err)
	t.Cleanup(catalog.Close)

	for _, want := range []string{"1", "2", "3"} {
		status, err := catalog.Execute("Insert Counter", "", nil)
		require.NoError(t, err)
		assert.Equal(t, want, status.Replacement().InsertText())
	}
}

func TestLoadOverlaysByName(t *testing.T) {
	bundled := fstest.MapFS{
		"Shared.js":     {Data: []byte(validScript("Shared", `function main(s) { s.text = "bundled"; }`))},
		"OnlyBundle.js": {Data: []byte(validScript("Only Bundled", `function main(s) {}`))},
		"lib/helper.js": {Data: []byte(`module.exports = {};`)},
		"README.md":     {Data: []byte("not a script")},
	}
	system := t.TempDir()
	writeScript(t, system, "shared.js", validScript("Shared", `function main(s) { s.text = "system"; }`))
	writeScript(t, system, "sys.js", validScript("System Only", `function main(s) {}`))
	user := t.TempDir()
	userShared := writeScript(t, user, "shared.js", validScript("Shared", `function main(s) { s.text = "user"; }`))

	catalog, result, err := scripts.Load(bundled, scripts.Dirs{
		System: []string{system, filepath.Join(system, "does-not-exist")},
		User:   user,
	})
	require.NoError(t, err)
	t.Cleanup(catalog.Close)

	assert.Equal(t, map[scripts.Origin]int{scripts.Bundled: 2, scripts.System: 2, scripts.User: 1}, result.Counts)
	assert.Equal(t, []string{"Only Bundled", "Shared", "System Only"}, catalog.Names())

	s, _ := catalog.Get("Shared")
	assert.Equal(t, userShared, s.Path())
	status, err := s.Execute("", nil)
	require.NoError(t, err)
	assert.Equal(t, "user", status.Replacement().Text)
}

func TestLoadSkipsBadFiles(t *testing.T) {
	user := t.TempDir()
	writeScript(t, user, "good.js", validScript("Good", `function main(s) {}`))
	bad := writeScript(t, user, "bad.js", "function main() {}")
	writeScript(t, user, "notes.txt", validScript("Not A Script", `function main(s) {}`))
	writeScript(t, user, ".hidden.js", validScript("Hidden", `function main(s) {}`))
	big := filepath.Join(user, "big.js")
	require.NoError(t, os.WriteFile(big, make([]byte, 5*1024*1024+1), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(user, "dir.js"), 0o755))

	catalog, result, err := scripts.Load(nil, scripts.Dirs{User: user})
	require.NoError(t, err)
	t.Cleanup(catalog.Close)

	assert.Equal(t, []string{"Good"}, catalog.Names())
	assert.ElementsMatch(t, []string{bad, big}, result.SkippedPaths())
	for _, skipped := range result.Skipped {
		if skipped.Path == bad {
			assert.ErrorIs(t, skipped.Err, scripts.ErrNoMetadata)
		}
	}
}

func TestLoadCreatesUserDir(t *testing.T) {
	user := filepath.Join(t.TempDir(), "nested", "scripts")

	catalog, _, err := scripts.Load(nil, scripts.Dirs{User: user})
	require.NoError(t, err)
	assert.Zero(t, catalog.Len())
	assert.DirExists(t, user)
}

func TestLoadUserDirErrors(t *testing.T) {
	bundled := fstest.MapFS{"A.js": {Data: []byte(validScript("A", `function main(s) {}`))}}

	// A regular file where the directory should be cannot be created or read.
	file := filepath.Join(t.TempDir(), "scripts")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	catalog, _, err := scripts.Load(bundled, scripts.Dirs{User: file})
	assert.ErrorIs(t, err, scripts.ErrFailedToCreateScriptDirectory)
	assert.Equal(t, []string{"A"}, catalog.Names(), "bundled scripts are still returned")

	blocked := filepath.Join(file, "child")
	_, _, err = scripts.Load(bundled, scripts.Dirs{User: blocked})
	assert.ErrorIs(t, err, scripts.ErrFailedToCreateScriptDirectory)
}

func TestIsScriptFile(t *testing.T) {
	assert.True(t, scripts.IsScriptFile("/a/b/Upcase.js"))
	assert.False(t, scripts.IsScriptFile("/a/b/.Upcase.js"))
	assert.False(t, scripts.IsScriptFile("/a/b/Upcase.js~"))
	assert.False(t, scripts.IsScriptFile("/a/b/Upcase.json"))
}
