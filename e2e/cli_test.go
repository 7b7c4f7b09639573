package e2e

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func TestCLICompleteAndFold(t *testing.T) {
	skipUnlessE2E(t)
	t.Parallel()

	bin := ensureMDCBinary(t)
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "components.json")
	mustWrite(t, catalogPath, []byte(testCatalogJSON))
	docPath := filepath.Join(dir, "page.md")
	mustWrite(t, docPath, []byte("::card\n:::alert\nbody\n:::\n::\n::c\n"))

	stdout, stderr, err := runMDC(t, bin, "complete", "-catalog", catalogPath, "-json", docPath, "6:4")
	if err != nil {
		t.Fatalf("complete: %v stderr=%s", err, stderr)
	}
	var items []completionItem
	if err := json.Unmarshal([]byte(stdout), &items); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if len(items) == 0 || items[0].Label != "card" {
		t.Fatalf("expected card first, got %+v", items)
	}

	stdout, stderr, err = runMDC(t, bin, "fold", docPath)
	if err != nil {
		t.Fatalf("fold: %v stderr=%s", err, stderr)
	}
	if stdout != "1-5 card\n2-4 alert\n" {
		t.Fatalf("fold output = %q", stdout)
	}
}

func TestCLIVersionAndUnknownCommand(t *testing.T) {
	skipUnlessE2E(t)
	t.Parallel()

	bin := ensureMDCBinary(t)
	stdout, _, err := runMDC(t, bin, "--version")
	if err != nil || !strings.Contains(stdout, "version: ") {
		t.Fatalf("version output %q, err %v", stdout, err)
	}

	_, stderr, err := runMDC(t, bin, "frobnicate")
	if err == nil || !strings.Contains(stderr, "unknown command") {
		t.Fatalf("expected unknown command failure, stderr=%q err=%v", stderr, err)
	}
}
