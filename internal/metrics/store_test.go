package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStoreFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqa.db")
	g := NewStoreFileSize(path)

	if got := testutil.ToFloat64(g); got != 0 {
		t.Errorf("missing file: got %v, want 0", got)
	}

	if err := os.WriteFile(path, make([]byte, 4096), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+"-wal", make([]byte, 1000), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(g); got != 5096 {
		t.Errorf("got %v, want 5096", got)
	}
}
