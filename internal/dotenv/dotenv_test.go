package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := `# comment
MENTOR_TEST_A=plain
export MENTOR_TEST_B="quoted value"
MENTOR_TEST_C='single'

=broken
MENTOR_TEST_EXISTING=from_file
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("MENTOR_TEST_EXISTING", "from_env")
	for _, k := range []string{"MENTOR_TEST_A", "MENTOR_TEST_B", "MENTOR_TEST_C"} {
		os.Unsetenv(k)
		t.Cleanup(func() { os.Unsetenv(k) })
	}

	n, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 3 {
		t.Fatalf("Load set %d vars, want 3", n)
	}
	if got := os.Getenv("MENTOR_TEST_A"); got != "plain" {
		t.Fatalf("MENTOR_TEST_A = %q", got)
	}
	if got := os.Getenv("MENTOR_TEST_B"); got != "quoted value" {
		t.Fatalf("MENTOR_TEST_B = %q", got)
	}
	if got := os.Getenv("MENTOR_TEST_C"); got != "single" {
		t.Fatalf("MENTOR_TEST_C = %q", got)
	}
	if got := os.Getenv("MENTOR_TEST_EXISTING"); got != "from_env" {
		t.Fatalf("existing env overwritten: %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	n, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	if err != nil {
		t.Fatalf("Load missing file: %v", err)
	}
	if n != 0 {
		t.Fatalf("Load missing file set %d vars", n)
	}
}
