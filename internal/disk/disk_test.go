package disk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMountPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"E:", `E:\`},
		{"e:", `e:\`},
		{` "E:" `, `E:\`},
		{`E:\`, `E:\`},
		{"E:/", `E:\`},
		{`E:\Movies\`, `E:\Movies`},
		{"E:/Movies//Old/", `E:\Movies\Old`},
		{`\\nas\media`, `\\nas\media`},
		{`\\nas\media\`, `\\nas\media`},
		{"//nas/media/tv", `\\nas\media\tv`},
		{"/mnt/archive/", "/mnt/archive"},
		{"/mnt//archive/./x/..", "/mnt/archive"},
	}

	for _, tt := range tests {
		got, err := NormalizeMountPath(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNormalizeMountPathRejects(t *testing.T) {
	for _, in := range []string{"", "   ", `\\server`, `""`} {
		_, err := NormalizeMountPath(in)
		assert.ErrorIs(t, err, ErrMountPath, in)
	}
}

func TestValidateRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ValidateRoot(dir))

	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	err := ValidateRoot(file)
	assert.True(t, errors.Is(err, ErrMountPath))

	err = ValidateRoot(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrMountPath)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestMatchMount(t *testing.T) {
	mounts := []MountInfo{
		{Device: "/dev/sda1", Mountpoint: "/"},
		{Device: "/dev/sdb1", Mountpoint: "/mnt/archive"},
		{Device: "/dev/sdc1", Mountpoint: "/mnt/archive2"},
		{Device: `\\.\PhysicalDrive1`, Mountpoint: `E:\`},
	}

	m, ok := MatchMount(mounts, "/mnt/archive/movies")
	require.True(t, ok)
	assert.Equal(t, "/dev/sdb1", m.Device)

	m, ok = MatchMount(mounts, "/mnt/archive2")
	require.True(t, ok)
	assert.Equal(t, "/dev/sdc1", m.Device)

	m, ok = MatchMount(mounts, "/home/user")
	require.True(t, ok)
	assert.Equal(t, "/dev/sda1", m.Device)

	m, ok = MatchMount(mounts, `e:\Movies`)
	require.True(t, ok)
	assert.Equal(t, `\\.\PhysicalDrive1`, m.Device)

	_, ok = MatchMount(mounts[1:3], "/srv")
	assert.False(t, ok)
}

func TestGetSpace(t *testing.T) {
	info, err := GetSpace(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, info.TotalBytes, int64(0))
	assert.LessOrEqual(t, info.FreeBytes, info.TotalBytes)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.50 KB", FormatBytes(1536))
	assert.Equal(t, "2.00 GB", FormatBytes(2*1024*1024*1024))
	assert.Equal(t, "-1.00 MB", FormatBytes(-1024*1024))
}

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"1024": 1024,
		"4MB":  4 * 1024 * 1024,
		"1gb":  1024 * 1024 * 1024,
		"2 KB": 2048,
		"10B":  10,
	}
	for in, want := range cases {
		got, err := ParseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "abc", "-5MB", "3XB"} {
		_, err := ParseSize(in)
		assert.Error(t, err, in)
	}
}
