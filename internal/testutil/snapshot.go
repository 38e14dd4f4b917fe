package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// updateSnapshots mirrors go-snaps: UPDATE_SNAPS=true rewrites snapshot files.
func updateSnapshots() bool { return os.Getenv("UPDATE_SNAPS") == "true" }

// MatchDockerfileSnapshot compares a rendered Dockerfile byte for byte with
//
//	__snapshots__/<TestName>_1.snap.Dockerfile
//
// next to the calling test file. go-snaps' standalone snapshots expand tabs,
// which a Dockerfile heredoc or RUN continuation cannot tolerate.
func MatchDockerfileSnapshot(tb testing.TB, content string) {
	tb.Helper()
	_, callerFile, _, ok := runtime.Caller(1)
	if !ok {
		tb.Fatal("testutil.MatchDockerfileSnapshot: unable to determine caller")
	}
	matchRaw(tb, snapshotPath(tb, callerFile, "Dockerfile"), content)
}

func snapshotPath(tb testing.TB, callerFile, ext string) string {
	name := strings.ReplaceAll(tb.Name(), "/", "_")
	return filepath.Join(filepath.Dir(callerFile), "__snapshots__", name+"_1.snap."+ext)
}

func matchRaw(tb testing.TB, snapFile, content string) {
	tb.Helper()

	if updateSnapshots() {
		if err := os.MkdirAll(filepath.Dir(snapFile), 0o750); err != nil {
			tb.Fatalf("mkdir snapshot dir: %v", err)
		}
		if err := os.WriteFile(snapFile, []byte(content), 0o644); err != nil { //nolint:gosec // test-only snapshot
			tb.Fatalf("write snapshot: %v", err)
		}
		return
	}

	prev, err := os.ReadFile(snapFile)
	if err != nil {
		tb.Fatalf("snapshot not found: %s\nRun with UPDATE_SNAPS=true to create", snapFile)
	}
	if string(prev) == content {
		return
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemanticLossless(dmp.DiffMain(string(prev), content, true))
	tb.Errorf("snapshot mismatch: %s\n%s", snapFile, dmp.PatchToText(dmp.PatchMake(string(prev), diffs)))
}
