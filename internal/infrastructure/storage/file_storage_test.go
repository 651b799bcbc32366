package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_ReadAndExists(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "supply.txt"), []byte("terms"), 0644))
	s := NewLocalFileStorage(base, zap.NewNop())
	ctx := context.Background()

	assert.True(t, s.Exists(ctx, "supply.txt"))
	assert.False(t, s.Exists(ctx, "missing.txt"))

	data, err := s.Read(ctx, "supply.txt")
	require.NoError(t, err)
	assert.Equal(t, "terms", string(data))
}

func TestLocalFileStorage_RejectsEscape(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	tests := []string{"../etc/passwd", "/etc/passwd", "a/../../b", ""}
	for _, p := range tests {
		t.Run(p, func(t *testing.T) {
			_, err := s.Resolve(p)
			assert.Error(t, err)
		})
	}
}

func TestLocalFileStorage_AbsoluteInsideBase(t *testing.T) {
	base := t.TempDir()
	s := NewLocalFileStorage(base, zap.NewNop())

	got, err := s.Resolve(filepath.Join(base, "docs", "a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "docs", "a.pdf"), got)
}

func TestLocalFileStorage_EnsureDirAndDelete(t *testing.T) {
	base := t.TempDir()
	s := NewLocalFileStorage(base, zap.NewNop())
	ctx := context.Background()

	dir, err := s.EnsureDir(ctx, "reports")
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.xlsx"), []byte("x"), 0644))
	require.NoError(t, s.Delete(ctx, "reports/r.xlsx"))
	assert.False(t, s.Exists(ctx, "reports/r.xlsx"))
	assert.NoError(t, s.Delete(ctx, "reports/r.xlsx"))
}
