package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenEmptyDir(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.False(t, s.IsNotFound("x"))
	assert.Equal(t, 0, s.Sizes()[notFoundFile])
}

func TestFlushAndReload(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	s.MarkNotFound("0001")
	s.MarkMissingBranch("11222333000262")
	s.MarkOversized("11222333000181", 9000)
	s.MarkProcessed("0002", "ok")
	s.SetRate("2020-01_2024-01", 0.42)
	require.NoError(t, s.Flush())

	s2, err := Open(dir)
	require.NoError(t, err)
	assert.True(t, s2.IsNotFound("0001"))
	assert.True(t, s2.IsMissingBranch("11222333000262"))
	assert.Equal(t, 9000, s2.Oversized("11222333000181"))
	assert.Equal(t, "ok", s2.ProcessStatus("0002"))
	rate, ok := s2.Rate("2020-01_2024-01")
	require.True(t, ok)
	assert.Equal(t, 0.42, rate)
}

func TestOpenCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, notFoundFile), []byte("{not json"), 0o644))
	_, err := Open(dir)
	require.Error(t, err)
}

func TestSplit(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	s.MarkNotFound("b")

	known, pending := s.Split([]string{"a", "b", "c"})
	assert.Equal(t, []string{"b"}, known)
	assert.Equal(t, []string{"a", "c"}, pending)
}

func TestErrorLogRing(t *testing.T) {
	l := NewErrorLog(3)
	for _, p := range []string{"1", "2", "3", "4", "5"} {
		l.Append(ErrorRecord{Process: p, Kind: "detail", Detail: "boom"})
	}

	recs := l.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "3", recs[0].Process)
	assert.Equal(t, "5", recs[2].Process)
	assert.Equal(t, int64(2), l.Dropped())
	assert.False(t, recs[0].At.IsZero())
}

func TestErrorLogWriteFile(t *testing.T) {
	l := NewErrorLog(10)
	l.Append(ErrorRecord{Process: "0001", Kind: "detail", Detail: "timeout"})

	path := filepath.Join(t.TempDir(), "errors.json")
	require.NoError(t, l.WriteFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "0001")
	assert.Contains(t, string(raw), "timeout")
}
