//go:build cgo

package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProject(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBuildCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeProject(t, dir, map[string]string{
		"src/index.js": "import strings from './strings.json';\n" +
			"const __ = (key) => strings[key];\n" +
			"export default __('someKey');\n",
		"src/strings.json": `{"someKey":"someValue1","someUnusedKey":"someValue2"}`,
	})
	if _, err := execute(t, "init"); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "build")
	if err != nil {
		t.Fatalf("build error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "0 errors") {
		t.Errorf("summary missing:\n%s", out)
	}
	bundle, err := os.ReadFile(filepath.Join(dir, "dist", "main.js"))
	if err != nil {
		t.Fatalf("bundle not written: %v", err)
	}
	if !strings.Contains(string(bundle), `["someValue1"]`) || strings.Contains(string(bundle), "someUnusedKey") {
		t.Errorf("bundle not optimized:\n%s", bundle)
	}

	// A second build is served from the persistent cache and stays identical.
	if _, err := execute(t, "build"); err != nil {
		t.Fatalf("second build error = %v", err)
	}
	again, err := os.ReadFile(filepath.Join(dir, "dist", "main.js"))
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != string(bundle) {
		t.Errorf("second bundle differs:\n%s\nvs\n%s", again, bundle)
	}

	out, err = execute(t, "history", "--format", "json")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	var history struct {
		Builds []struct {
			Modules int `json:"modules"`
		} `json:"builds"`
	}
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("history output is not JSON: %v\n%s", err, out)
	}
	if len(history.Builds) != 2 || history.Builds[0].Modules != 2 {
		t.Errorf("history = %+v", history)
	}

	out, err = execute(t, "cache", "stats", "--format", "json")
	if err != nil {
		t.Fatalf("cache stats error = %v", err)
	}
	if !strings.Contains(out, `"modules": 2`) {
		t.Errorf("cache stats = %s", out)
	}

	if _, err := execute(t, "cache", "clear"); err != nil {
		t.Fatalf("cache clear error = %v", err)
	}
	out, err = execute(t, "cache", "stats", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"modules": 0`) {
		t.Errorf("cache stats after clear = %s", out)
	}
}

func TestBuildCommand_FailsOnKeySetMismatch(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeProject(t, dir, map[string]string{
		"src/index.js": "import en from './en.json';\nimport de from './de.json';\n" +
			"export default __('a');\n",
		"src/en.json": `{"a": 1, "b": 2}`,
		"src/de.json": `{"a": 1}`,
	})

	out, err := execute(t, "build", "--no-cache")
	if !errors.Is(err, errBuildFailed) {
		t.Fatalf("build error = %v, want build failure\n%s", err, out)
	}
	if !strings.Contains(out, "do not have identical keys") {
		t.Errorf("mismatch not reported:\n%s", out)
	}
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeProject(t, dir, map[string]string{
		"src/index.js":     "import s from './strings.json';\nexport default [__('b'), __('a'), __('missing')];\n",
		"src/strings.json": `{"a": "A", "b": "B", "c": "C"}`,
	})

	out, err := execute(t, "report", "--format", "json")
	if err != nil {
		t.Fatalf("report error = %v\n%s", err, out)
	}
	var r struct {
		Modules []struct {
			Resource     string `json:"resource"`
			Keys         int    `json:"keys"`
			SelectedKeys int    `json:"selectedKeys"`
		} `json:"modules"`
		Keys []struct {
			Key   string `json:"key"`
			Index int    `json:"index"`
		} `json:"keys"`
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, out)
	}
	if len(r.Modules) != 1 || r.Modules[0].Resource != "strings.json" || r.Modules[0].Keys != 3 || r.Modules[0].SelectedKeys != 2 {
		t.Errorf("modules = %+v", r.Modules)
	}
	if len(r.Keys) != 3 || r.Keys[0].Key != "a" || r.Keys[1].Key != "b" || r.Keys[2].Index != -1 {
		t.Errorf("keys = %+v", r.Keys)
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], `JSON key "missing" does not exist`) {
		t.Errorf("warnings = %v", r.Warnings)
	}
}

func TestBuildCommand_FlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeProject(t, dir, map[string]string{
		"src/index.js":     "import s from './strings.json';\nexport default t('a');\n",
		"src/strings.json": `{"a": "A", "b": "B"}`,
	})

	if _, err := execute(t, "build", "--no-cache", "--accessor", "t", "--validate-only"); err != nil {
		t.Fatalf("build error = %v", err)
	}
	bundle, err := os.ReadFile(filepath.Join(dir, "dist", "main.js"))
	if err != nil {
		t.Fatal(err)
	}
	// Validation only: the call and the payload are left alone.
	if !strings.Contains(string(bundle), "t('a')") || !strings.Contains(string(bundle), `"b"`) {
		t.Errorf("bundle was rewritten:\n%s", bundle)
	}
}
