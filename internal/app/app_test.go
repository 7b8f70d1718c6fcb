package app

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/sigterm-de/boopscript/internal/scripts"
	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every XDG location at a fresh temp dir and returns it.
func isolate(t *testing.T) string {
	t.Helper()
	t.Cleanup(xdg.Reload)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CONFIG_DIRS", filepath.Join(dir, "etc"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	xdg.Reload()
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	c := newCLI("test")
	t.Cleanup(c.teardown)

	var stdout, stderr bytes.Buffer
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func userScript(name, body string) string {
	return fmt.Sprintf("/**\n{\"api\":1,\"name\":%q,\"description\":\"test\",\"icon\":\"test\"}\n**/\n%s\n", name, body)
}

func TestRunBundledScript(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "boop", "run", "Upcase")
	require.NoError(t, err)
	assert.Equal(t, "BOOP", out)
}

func TestRunWithSelection(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "boop", "run", "Upcase", "--selection-start", "1", "--selection-end", "3")
	require.NoError(t, err)
	assert.Equal(t, "bOOp", out)
}

func TestRunUserScriptMessages(t *testing.T) {
	dir := isolate(t)
	scriptsDir := filepath.Join(dir, "mine")
	require.NoError(t, os.MkdirAll(scriptsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scriptsDir, "warn.js"), []byte(userScript("Warner",
		`function main(s) { s.postInfo("did it"); s.postError("careful"); s.text = "changed"; }`)), 0o644))

	out, stderr, err := execute(t, "x", "--scripts-dir", scriptsDir, "run", "Warner")
	assert.ErrorIs(t, err, errReported)
	assert.Equal(t, "changed", out, "text is still replaced after postError")
	assert.Contains(t, stderr, "did it")
	assert.Contains(t, stderr, "careful")
}

func TestRunSelectionWithoutSelectionKeepsText(t *testing.T) {
	dir := isolate(t)
	scriptsDir := filepath.Join(dir, "mine")
	require.NoError(t, os.MkdirAll(scriptsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scriptsDir, "sel.js"), []byte(userScript("Selector",
		`function main(s) { s.selection = "replaced"; }`)), 0o644))

	out, _, err := execute(t, "original", "--scripts-dir", scriptsDir, "run", "Selector")
	require.NoError(t, err)
	assert.Equal(t, "original", out)
}

func TestRunCompileErrorShowsSource(t *testing.T) {
	dir := isolate(t)
	scriptsDir := filepath.Join(dir, "mine")
	require.NoError(t, os.MkdirAll(scriptsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scriptsDir, "bad.js"), []byte(userScript("Broken",
		"function main(s) {\n  var = 1;\n}")), 0o644))

	out, stderr, err := execute(t, "x", "--scripts-dir", scriptsDir, "run", "Broken")
	assert.ErrorIs(t, err, errReported)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Error compiling script")
	assert.Contains(t, stderr, "var = 1;")
}

func TestRunUnknownScript(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "x", "run", "definitely missing zzz")
	assert.ErrorIs(t, err, scripts.ErrScriptNotFound)
}

func TestRunWriteBack(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "input.txt")
	require.NoError(t, os.WriteFile(file, []byte("b\na\nc"), 0o644))

	out, _, err := execute(t, "", "run", "Sort lines", "--file", file, "--write")
	require.NoError(t, err)
	assert.Empty(t, out)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc", string(data))

	_, _, err = execute(t, "", "run", "Sort lines", "--write")
	assert.ErrorContains(t, err, "--write requires --file")
}

func TestList(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Base64 Encode")
	assert.Contains(t, out, "Upcase")

	out, _, err = execute(t, "", "list", "base64", "--long")
	require.NoError(t, err)
	assert.Contains(t, out, "Base64 Decode")
	assert.NotContains(t, out, "Upcase")
	assert.Contains(t, out, "[bundled]")
}

func TestConfigShowUsesEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("BOOPSCRIPT_LOG_LEVEL", "warn")

	out, _, err := execute(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "log_level: warn")
	assert.Contains(t, out, "max_source_length: ")
}

func TestConfigInit(t *testing.T) {
	isolate(t)
	path := DefaultConfigPath()

	_, _, err := execute(t, "", "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, _, err = execute(t, "", "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, _, err = execute(t, "", "config", "init", "--force")
	assert.NoError(t, err)
}

func TestFindScript(t *testing.T) {
	c := scripts.NewCatalog()
	t.Cleanup(c.Close)
	for _, name := range []string{"Upcase", "Downcase", "URL Encode"} {
		s, err := scripts.FromSource(userScript(name, "function main(s) {}"), "")
		require.NoError(t, err)
		c.Insert(s)
	}

	s, err := findScript(c, "Downcase")
	require.NoError(t, err)
	assert.Equal(t, "Downcase", s.Name())

	s, err = findScript(c, "upc")
	require.NoError(t, err)
	assert.Equal(t, "Upcase", s.Name())

	_, err = findScript(c, "case")
	assert.ErrorIs(t, err, scripts.ErrScriptNotFound)
	assert.ErrorContains(t, err, "did you mean")

	_, err = findScript(c, "zzz")
	assert.ErrorIs(t, err, scripts.ErrScriptNotFound)
}

func TestShellHandle(t *testing.T) {
	c := scripts.NewCatalog()
	t.Cleanup(c.Close)
	for name, body := range map[string]string{
		"Upcase":  `function main(s) { s.text = s.text.toUpperCase(); }`,
		"Counter": `var n = 0; function main(s) { n++; s.text = s.text + n; }`,
	} {
		s, err := scripts.FromSource(userScript(name, body), "")
		require.NoError(t, err)
		c.Insert(s)
	}

	var out, errOut bytes.Buffer
	sh := &shell{catalog: c, out: &out, errOut: &errOut}

	assert.False(t, sh.handle("abc"))
	assert.Contains(t, errOut.String(), "no script selected")

	assert.False(t, sh.handle(":use Upcase"))
	assert.False(t, sh.handle("abc"))
	assert.Equal(t, "ABC\n", out.String())

	out.Reset()
	sh.handle(":use Counter")
	sh.handle("x")
	sh.handle("x")
	sh.handle(":reset")
	sh.handle("x")
	assert.Equal(t, "x1\nx2\nx1\n", out.String())

	errOut.Reset()
	sh.handle(":bogus")
	assert.Contains(t, errOut.String(), "unknown command :bogus")
	assert.True(t, sh.handle(":quit"))
}
