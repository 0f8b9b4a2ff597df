package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"

	"github.com/ignite/personal-audit/internal/audit"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func writeInput(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0644))
	return p
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	// A config path that cannot exist keeps a stray config.yaml out of the run.
	full := append([]string{"-config", filepath.Join(t.TempDir(), "none.yaml")}, args...)
	code := run(full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func readSheet(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

// =============================================================================
// TESTS
// =============================================================================

func TestRunWritesWorkbook(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "in.csv", []byte(
		" recipient_status ,campaign\nJohn.Doe@GMAIL.com,spring\ninfo@company.org,spring\n,fall\n"))
	out := filepath.Join(dir, "out.xlsx")

	code, _, stderr := runCLI(t, in, out)
	require.Equal(t, exitOK, code, stderr)

	rows := readSheet(t, out, "Sheet1")
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"recipient_status", "campaign", "sent_to_personal_acc"}, rows[0])
	assert.Equal(t, "1", rows[1][2])
	assert.Equal(t, "0", rows[2][2])
	assert.Equal(t, []string{"", "fall", "0"}, rows[3])

	assert.Contains(t, stderr, `"msg":"audit complete"`)
	assert.Contains(t, stderr, `"run_id"`)
	assert.NotContains(t, stderr, "John.Doe@GMAIL.com")
}

func TestRunUTF16Input(t *testing.T) {
	dir := t.TempDir()
	data, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().
		Bytes([]byte("recipient_status\r\na@yandex.ru\r\nb@corp.example\r\n"))
	require.NoError(t, err)
	in := writeInput(t, dir, "in.csv", data)
	out := filepath.Join(dir, "out.xlsx")

	code, _, stderr := runCLI(t, in, out)
	require.Equal(t, exitOK, code, stderr)

	rows := readSheet(t, out, "Sheet1")
	assert.Equal(t, [][]string{
		{"recipient_status", "sent_to_personal_acc"},
		{"a@yandex.ru", "1"},
		{"b@corp.example", "0"},
	}, rows)
}

func TestRunSheetFlag(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "in.csv", []byte("recipient_status\nx@me.com\n"))
	out := filepath.Join(dir, "out.xlsx")

	code, _, stderr := runCLI(t, "-sheet", "Audit", in, out)
	require.Equal(t, exitOK, code, stderr)
	assert.Len(t, readSheet(t, out, "Audit"), 2)
}

func TestRunMissingColumnWritesNothing(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "in.csv", []byte("email,name\na@gmail.com,A\n"))
	out := filepath.Join(dir, "out.xlsx")

	code, _, stderr := runCLI(t, in, out)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "Error: 'recipient_status' column not found. Available columns: ['email', 'name']")

	_, err := os.Stat(out)
	assert.True(t, errors.Is(err, os.ErrNotExist), "output must not be created")
}

func TestRunEncodingFlag(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "in.csv", []byte("recipient_status,fee\nx@gmail.com,\x80 5\n"))
	out := filepath.Join(dir, "out.xlsx")

	code, _, stderr := runCLI(t, "-encoding", "cp1252", in, out)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stderr, `"encoding":"cp1252"`)

	rows := readSheet(t, out, "Sheet1")
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"x@gmail.com", "€ 5", "1"}, rows[1])
}

func TestRunManualFallbackDiagnostics(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "in.csv", []byte("\"recipient_status,name\nx@gmail.com,Ann\n"))
	out := filepath.Join(dir, "out.xlsx")

	code, stdout, stderr := runCLI(t, in, out)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "All parsing methods failed. Trying manual approach...")
	assert.Contains(t, stdout, "Manual headers: ['recipient_status', 'name']")
}

func TestRunParseFailedWritesNothing(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "in.csv", []byte{})
	out := filepath.Join(dir, "out.xlsx")

	code, _, _ := runCLI(t, in, out)
	assert.Equal(t, exitFailure, code)

	_, err := os.Stat(out)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunMissingInput(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "nope.csv")

	code, _, stderr := runCLI(t, missing, filepath.Join(dir, "out.xlsx"))
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, fmt.Sprintf("Path '%s' does not exist.", missing))
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no args", nil},
		{"one arg", []string{"in.csv"}},
		{"three args", []string{"a", "b", "c"}},
		{"unknown flag", []string{"-bogus", "a", "b"}},
		{"bad s3 input", []string{"s3://bucket-only", "out.xlsx"}},
		{"unknown encoding", []string{"-encoding", "ebcdic", "a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, exitUsage, code)
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Could not determine file encoding", describe(audit.ErrEncodingUndetermined))

	wrapped := fmt.Errorf("validate columns: %w", &audit.MissingColumnError{Column: "recipient_status", Available: []string{"a"}})
	assert.Equal(t, "'recipient_status' column not found. Available columns: ['a']", describe(wrapped))

	assert.Equal(t, "boom", describe(errors.New("boom")))
}
