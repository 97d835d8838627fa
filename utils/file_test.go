package utils

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestResolvePath(t *testing.T) {
	test.That(t, ResolvePath("/jobs", ""), test.ShouldEqual, "")
	test.That(t, ResolvePath("/jobs", "/data/calib.txt"), test.ShouldEqual, "/data/calib.txt")
	test.That(t, ResolvePath("/jobs", "calib.txt"), test.ShouldEqual, filepath.Join("/jobs", "calib.txt"))
	test.That(t, ResolvePath("/jobs/a", "../b/in.png"), test.ShouldEqual, filepath.Join("/jobs", "b", "in.png"))
}

func TestRemoveFileNoError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.png")
	test.That(t, os.WriteFile(path, []byte("x"), 0o600), test.ShouldBeNil)

	RemoveFileNoError(path)
	_, err := os.Stat(path)
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)

	// already gone
	RemoveFileNoError(path)
}
