package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"tokyo"}, "tokyo"},
		{"multiple words", []string{"who", "lives", "in", "tokyo"}, "who lives in tokyo"},
		{"single quoted phrase", []string{"who lives in tokyo"}, "who lives in tokyo"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd("1.2.3")
	if cmd.Use != "kotae" || cmd.Version != "1.2.3" {
		t.Errorf("root: use=%q version=%q", cmd.Use, cmd.Version)
	}
	for _, name := range []string{"config", "debug"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag %q", name)
		}
	}
	want := map[string]bool{"index": false, "retrieve": false, "ask": false, "serve": false, "version": false}
	for _, c := range cmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_defaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists")
	}
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty", resolved)
	}
	if cfg.Embedding.Backend != "hashing" || cfg.Retrieval.DefaultTopK != 5 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfig_explicitMissingPathFails(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

// writeFixture writes a config and a CSV into a temp dir and returns their paths.
func writeFixture(t *testing.T) (configPath, csvPath string) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.yaml")
	csvPath = filepath.Join(dir, "things.csv")
	config := "storage:\n  database_path: ./kotae.db\ndataset:\n  encoding: utf-8\n"
	if err := os.WriteFile(configPath, []byte(config), 0600); err != nil {
		t.Fatal(err)
	}
	csv := "name,kind\napple,fruit\nbanana,fruit\ncar,vehicle\n"
	if err := os.WriteFile(csvPath, []byte(csv), 0600); err != nil {
		t.Fatal(err)
	}
	return configPath, csvPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRetrieveCommand_JSON(t *testing.T) {
	configPath, csvPath := writeFixture(t)
	out, err := execute(t, "retrieve", "--config", configPath, "--top-k", "2", "-o", "json", csvPath, "fresh", "fruit")
	if err != nil {
		t.Fatalf("retrieve: %v\n%s", err, out)
	}
	var res models.RetrieveResponse
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if res.Query != "fresh fruit" || len(res.Records) != 2 {
		t.Fatalf("unexpected response: %+v", res)
	}
	for _, r := range res.Records {
		if !strings.HasSuffix(r.Text, "| fruit") {
			t.Errorf("expected fruit rows, got %q", r.Text)
		}
	}
}

func TestRetrieveCommand_Columns(t *testing.T) {
	configPath, csvPath := writeFixture(t)
	out, err := execute(t, "retrieve", "--config", configPath, "--columns", "kind,name", "-k", "1", csvPath, "vehicle")
	if err != nil {
		t.Fatalf("retrieve: %v\n%s", err, out)
	}
	if !strings.Contains(out, "vehicle | car") {
		t.Errorf("expected reordered columns in output:\n%s", out)
	}

	if _, err := execute(t, "retrieve", "--config", configPath, "--columns", "colour", csvPath, "x"); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestIndexCommand_Save(t *testing.T) {
	configPath, csvPath := writeFixture(t)
	out, err := execute(t, "index", "--config", configPath, "--save", csvPath)
	if err != nil {
		t.Fatalf("index: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Indexed 3 records") || !strings.Contains(out, "Saved:") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(configPath), "kotae.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestAskCommand_MissingAPIKey(t *testing.T) {
	configPath, csvPath := writeFixture(t)
	_, err := execute(t, "ask", "--config", configPath, csvPath, "what", "is", "fruit")
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("expected missing API key error, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "kotae version test" {
		t.Errorf("version output = %q", out)
	}
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
