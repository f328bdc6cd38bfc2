// Package testutil provides utilities for testing.
package testutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// MinimalProfile declares two events, one function with self cost and one
// call to a function that never reports cost of its own.
const MinimalProfile = `events: Cycles Instructions
fn=main
100 50
cfn=helper
calls=3
10 5
`

// SampleProfile is a compressed dump with line positions, relative
// sub-positions, inlined files, a cross-object call and matching totals.
//
// Self costs: main 150/30, compute 1050/240, memcpy 20/10, helper 150/60.
const SampleProfile = `# callgrind format
version: 1
creator: callgrind-3.22.0
pid: 4242
thread: 1
part: 1
cmd: ./app --fast
desc: I1 cache: 32768 B, 64 B, 8-way associative
desc: Timerange: Basic block 0 - 1234
event: Ir : Instruction Fetch
events: Ir Dr
positions: line
summary: 1370 340

ob=(1) /usr/bin/app
fl=(1) app.c
fn=(1) main
10 100 20
+2 50 10
cfl=(2) util.c
cfn=(2) compute
calls=3 40
+1 1200 300
cob=(2) /lib/libc.so.6
cfi=(3) memcpy.S
cfn=(4) memcpy
calls=1 0
14 20 10

fl=(2)
fn=(2)
40 900 200
jcnd=1 4 45
fi=(4) inline.h
42 100 20
fe=(2)
43 50 20
cfl=(1)
cfn=(3) helper
calls=2 5
* 150 60

fl=(1)
fn=(3)
5 75 30
+1 75 30

ob=(2)
fl=(3)
fn=(4)
0 20 10

totals: 1370 340
`

// Sample function identities of SampleProfile.
const (
	SampleObject  = "/usr/bin/app"
	SampleLibc    = "/lib/libc.so.6"
	SampleMainSrc = "app.c"
	SampleUtilSrc = "util.c"
)

// Reader returns a reader over a fixture string.
func Reader(fixture string) io.Reader {
	return strings.NewReader(fixture)
}

// GetTestDataPath returns the absolute path to a file in the testdata directory.
// It searches for testdata in the caller's directory and parent directories.
func GetTestDataPath(t *testing.T, filename string) string {
	t.Helper()

	_, callerFile, _, ok := runtime.Caller(1)
	if !ok {
		t.Fatal("failed to get caller file path")
	}

	dir := filepath.Dir(callerFile)
	for i := 0; i < 5; i++ {
		testdataPath := filepath.Join(dir, "testdata", filename)
		if _, err := os.Stat(testdataPath); err == nil {
			return testdataPath
		}
		dir = filepath.Dir(dir)
	}

	return filepath.Join("testdata", filename)
}

// LoadFixture loads a test fixture file and returns its contents.
func LoadFixture(t *testing.T, filename string) []byte {
	t.Helper()
	path := GetTestDataPath(t, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", filename, err)
	}
	return data
}

// LoadFixtureReader loads a test fixture file and returns an io.Reader.
func LoadFixtureReader(t *testing.T, filename string) io.Reader {
	return bytes.NewReader(LoadFixture(t, filename))
}

// TempDir creates a temporary directory for testing and returns its path.
// The directory is automatically cleaned up when the test completes.
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "callgrind-analysis-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// TempFileWithName creates a temporary file with the given name and content.
func TempFileWithName(t *testing.T, name, content string) string {
	t.Helper()
	dir := TempDir(t)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// ReadFile reads a file and returns its contents.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return string(data)
}
