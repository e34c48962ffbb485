package safefileio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// safeTempDir creates a temporary directory and resolves any symlinks in its path
// to ensure consistent behavior across different environments.
func safeTempDir(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	realPath, err := filepath.EvalSymlinks(tempDir)
	require.NoError(t, err, "Failed to resolve symlinks in temp dir")
	return realPath
}

func TestSafeWriteFile(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) (string, []byte, os.FileMode)
		wantErr bool
		errType error
	}{
		{
			name: "write to new file",
			setup: func(t *testing.T) (string, []byte, os.FileMode) {
				tempDir := safeTempDir(t)
				filePath := filepath.Join(tempDir, "testfile.txt")
				content := []byte("test content")
				return filePath, content, 0o644
			},
			wantErr: false,
		},
		{
			name: "write to existing file should fail",
			setup: func(t *testing.T) (string, []byte, os.FileMode) {
				tempDir := safeTempDir(t)
				filePath := filepath.Join(tempDir, "existing.txt")
				require.NoError(t, os.WriteFile(filePath, []byte("old content"), 0o600), "Failed to create test file")
				return filePath, []byte("new content"), 0o600
			},
			wantErr: true,
			errType: ErrFileExists,
		},
		{
			name: "write to directory should fail",
			setup: func(t *testing.T) (string, []byte, os.FileMode) {
				tempDir := safeTempDir(t)
				return tempDir, []byte("should fail"), 0o644
			},
			wantErr: true,
			errType: nil,
		},
		{
			name: "write to path containing symlink should fail with ErrIsSymlink",
			setup: func(t *testing.T) (string, []byte, os.FileMode) {
				tempDir := safeTempDir(t)

				targetDir := filepath.Join(tempDir, "target")
				require.NoError(t, os.MkdirAll(targetDir, 0o755), "Failed to create target directory")

				testDir := filepath.Join(tempDir, "testdir")
				require.NoError(t, os.Mkdir(testDir, 0o755), "Failed to create test directory")

				symlinkPath := filepath.Join(testDir, "symlink")
				require.NoError(t, os.Symlink(targetDir, symlinkPath), "Failed to create symlink")

				filePath := filepath.Join(symlinkPath, "file.txt")
				return filePath, []byte("test content"), 0o644
			},
			wantErr: true,
			errType: ErrIsSymlink,
		},
		{
			name: "write with group writable permissions should fail",
			setup: func(t *testing.T) (string, []byte, os.FileMode) {
				tempDir := safeTempDir(t)
				filePath := filepath.Join(tempDir, "group_writable_new.txt")
				content := []byte("test content")
				return filePath, content, 0o664
			},
			wantErr: true,
			errType: ErrInvalidFilePermissions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, content, perm := tt.setup(t)

			err := SafeWriteFile(path, content, perm)
			if tt.wantErr {
				assert.Error(t, err, "SafeWriteFile() should return an error")
				if tt.errType != nil {
					assert.ErrorIs(t, err, tt.errType, "SafeWriteFile() error should be of expected type")
				}
				return
			}

			assert.NoError(t, err, "SafeWriteFile() should not return an error")

			info, err := os.Lstat(path)
			require.NoError(t, err, "Failed to stat file")
			assert.True(t, info.Mode()&0o600 == 0o600, "File should be readable and writable by owner, got permissions %v", info.Mode())

			gotContent, err := os.ReadFile(path)
			require.NoError(t, err, "Failed to read file")
			assert.Equal(t, string(content), string(gotContent), "File content should match")
		})
	}
}

func TestSafeReadFile(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		want    []byte
		wantErr bool
		errType error
	}{
		{
			name: "read existing file",
			setup: func(t *testing.T) string {
				tempDir := safeTempDir(t)
				filePath := filepath.Join(tempDir, "testfile.txt")
				content := []byte("test content")
				err := os.WriteFile(filePath, content, 0o600)
				require.NoError(t, err, "Failed to create test file")
				return filePath
			},
			want:    []byte("test content"),
			wantErr: false,
		},
		{
			name: "non-existent file",
			setup: func(t *testing.T) string {
				tempDir := safeTempDir(t)
				return filepath.Join(tempDir, "nonexistent.txt")
			},
			wantErr: true,
		},
		{
			name: "directory instead of file",
			setup: func(t *testing.T) string {
				tempDir := safeTempDir(t)
				return tempDir
			},
			wantErr: true,
			errType: ErrInvalidFilePath,
		},
		{
			name: "symlink to file",
			setup: func(t *testing.T) string {
				tempDir := safeTempDir(t)
				targetFile := filepath.Join(tempDir, "target.txt")
				symlink := filepath.Join(tempDir, "symlink.txt")

				require.NoError(t, os.WriteFile(targetFile, []byte("target content"), 0o600), "Failed to create target file")
				require.NoError(t, os.Symlink(targetFile, symlink), "Failed to create symlink")

				return symlink
			},
			wantErr: true,
			errType: ErrIsSymlink,
		},
		{
			name: "file too large",
			setup: func(t *testing.T) string {
				tempDir := safeTempDir(t)
				filePath := filepath.Join(tempDir, "largefile.bin")

				f, err := os.Create(filePath)
				require.NoError(t, err, "Failed to create test file")
				defer func() { _ = f.Close() }()

				err = f.Chmod(0o600)
				require.NoError(t, err, "Failed to set file permissions")

				_, err = f.Write(make([]byte, MaxFileSize+1))
				require.NoError(t, err, "Failed to write test data")

				return filePath
			},
			wantErr: true,
			errType: ErrFileTooLarge,
		},
		{
			name: "group writable file can still be read",
			setup: func(t *testing.T) string {
				tempDir := safeTempDir(t)
				filePath := filepath.Join(tempDir, "group_writable.txt")
				require.NoError(t, os.WriteFile(filePath, []byte("test content"), 0o664), "Failed to create test file")
				return filePath
			},
			want:    []byte("test content"),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)

			got, err := SafeReadFile(path)
			if tt.wantErr {
				assert.Error(t, err, "SafeReadFile() should return an error")
				if tt.errType != nil {
					assert.ErrorIs(t, err, tt.errType, "SafeReadFile() error should be of expected type")
				}
				return
			}

			assert.NoError(t, err, "SafeReadFile() should not return an error")
			assert.Equal(t, string(tt.want), string(got), "SafeReadFile() content should match")
		})
	}
}

// failingFile is a file that fails on Close
type failingFile struct {
	File
}

var errSimulatedClose = errors.New("simulated close error")

func (f *failingFile) Close() error {
	return errSimulatedClose
}

// failingCloseFS is a FileSystem that returns files that fail on Close
type failingCloseFS struct {
	FileSystem
}

func (fs failingCloseFS) SafeOpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := fs.FileSystem.SafeOpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &failingFile{File: f}, nil
}

// failingWriteCloseFS is a file that fails on Write and Close
type failingWriteCloseFS struct {
	File
}

var errSimulatedWrite = errors.New("simulated write error")

func (f *failingWriteCloseFS) Write(_ []byte) (n int, err error) {
	return 0, errSimulatedWrite
}

func (f *failingWriteCloseFS) Close() error {
	_ = f.File.Close()
	return errSimulatedClose
}

// failingWriteFS is a FileSystem that returns files that fail on Write and Close
type failingWriteFS struct {
	FileSystem
}

func (fs failingWriteFS) SafeOpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := fs.FileSystem.SafeOpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &failingWriteCloseFS{File: f}, nil
}

func TestValidateRequestedPermissions(t *testing.T) {
	tests := []struct {
		name        string
		permissions os.FileMode
		expectError bool
	}{
		{name: "owner only (600)", permissions: 0o600, expectError: false},
		{name: "owner+read others (644)", permissions: 0o644, expectError: false},
		{name: "executable (755)", permissions: 0o755, expectError: false},
		{name: "group writable (664) should fail", permissions: 0o664, expectError: true},
		{name: "world writable (666) should fail", permissions: 0o666, expectError: true},
		{name: "fully open (777) should fail", permissions: 0o777, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequestedPermissions(tt.permissions)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrInvalidFilePermissions)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSafeWriteFile_FileCloseError(t *testing.T) {
	t.Run("close error only", func(t *testing.T) {
		tempDir := safeTempDir(t)
		filePath := filepath.Join(tempDir, "testfile.txt")

		fs := failingCloseFS{FileSystem: defaultFS}
		err := safeWriteFileWithFS(filePath, []byte("test"), 0o644, fs)
		assert.Error(t, err, "Expected error when closing file fails")
		assert.ErrorIs(t, err, errSimulatedClose, "Expected specific close error")
	})

	t.Run("write error takes precedence over close error", func(t *testing.T) {
		tempDir := safeTempDir(t)
		filePath := filepath.Join(tempDir, "testfile.txt")

		fs := failingWriteFS{FileSystem: defaultFS}
		err := safeWriteFileWithFS(filePath, []byte("test"), 0o644, fs)
		assert.Error(t, err, "Expected error when writing to file")
		assert.ErrorIs(t, err, errSimulatedWrite, "Expected specific write error")
	})
}

func TestSetuidSetgidBehavior(t *testing.T) {
	t.Run("SafeReadFile allows reading file with setuid/setgid bits", func(t *testing.T) {
		tempDir := safeTempDir(t)
		filePath := filepath.Join(tempDir, "setuid_setgid_read.txt")

		content := []byte("read-ok")
		require.NoError(t, os.WriteFile(filePath, content, 0o644), "failed to create file")
		require.NoError(t, os.Chmod(filePath, 0o6755), "failed to chmod setuid/setgid")

		got, err := SafeReadFile(filePath)
		assert.NoError(t, err, "SafeReadFile should allow reading file with setuid/setgid bits")
		assert.Equal(t, string(content), string(got))
	})

	t.Run("SafeWriteFile forbids creating file with group/other writable bits", func(t *testing.T) {
		tempDir := safeTempDir(t)
		filePath := filepath.Join(tempDir, "setuid_setgid_create.txt")

		err := SafeWriteFile(filePath, []byte("deny"), 0o6775)
		assert.Error(t, err, "SafeWriteFile should reject group-writable perms on creation")
		assert.ErrorIs(t, err, ErrInvalidFilePermissions)
		if _, statErr := os.Lstat(filePath); statErr == nil {
			_ = os.Remove(filePath)
		}
	})
}

func TestSafeAtomicMoveFile(t *testing.T) {
	t.Run("successful atomic move with permission setting", func(t *testing.T) {
		tempDir := safeTempDir(t)
		srcPath := filepath.Join(tempDir, "source.txt")
		dstPath := filepath.Join(tempDir, "destination.txt")
		content := []byte("test content for atomic move")

		require.NoError(t, os.WriteFile(srcPath, content, 0o644))

		err := SafeAtomicMoveFile(srcPath, dstPath, 0o600)
		assert.NoError(t, err, "SafeAtomicMoveFile should succeed")

		_, err = os.Stat(srcPath)
		assert.True(t, os.IsNotExist(err), "Source file should not exist after move")

		stat, err := os.Stat(dstPath)
		require.NoError(t, err, "Destination file should exist")
		assert.Equal(t, os.FileMode(0o600), stat.Mode().Perm(), "Destination should have 0600 permissions")

		gotContent, err := os.ReadFile(dstPath)
		require.NoError(t, err, "Should be able to read destination file")
		assert.Equal(t, content, gotContent, "Content should match")
	})

	t.Run("move to existing file overwrites", func(t *testing.T) {
		tempDir := safeTempDir(t)
		srcPath := filepath.Join(tempDir, "source.txt")
		dstPath := filepath.Join(tempDir, "destination.txt")
		srcContent := []byte("new content")
		oldContent := []byte("old content")

		require.NoError(t, os.WriteFile(srcPath, srcContent, 0o600))
		require.NoError(t, os.WriteFile(dstPath, oldContent, 0o600))

		err := SafeAtomicMoveFile(srcPath, dstPath, 0o600)
		assert.NoError(t, err, "SafeAtomicMoveFile should succeed with overwrite")

		gotContent, err := os.ReadFile(dstPath)
		require.NoError(t, err, "Should be able to read destination file")
		assert.Equal(t, srcContent, gotContent, "Content should be from source file")
	})

	t.Run("fails with invalid permissions", func(t *testing.T) {
		tempDir := safeTempDir(t)
		srcPath := filepath.Join(tempDir, "source.txt")
		dstPath := filepath.Join(tempDir, "destination.txt")

		require.NoError(t, os.WriteFile(srcPath, []byte("test"), 0o600))

		err := SafeAtomicMoveFile(srcPath, dstPath, 0o664)
		assert.Error(t, err, "Should fail with overly permissive permissions")
		assert.ErrorIs(t, err, ErrInvalidFilePermissions)
	})

	t.Run("fails when source does not exist", func(t *testing.T) {
		tempDir := safeTempDir(t)
		srcPath := filepath.Join(tempDir, "nonexistent.txt")
		dstPath := filepath.Join(tempDir, "destination.txt")

		err := SafeAtomicMoveFile(srcPath, dstPath, 0o600)
		assert.Error(t, err, "Should fail when source file does not exist")
	})

	t.Run("succeeds when destination directory exists", func(t *testing.T) {
		tempDir := safeTempDir(t)
		srcPath := filepath.Join(tempDir, "source.txt")
		dstPath := filepath.Join(tempDir, "subdir", "destination.txt")
		content := []byte("test content")

		require.NoError(t, os.WriteFile(srcPath, content, 0o600))
		require.NoError(t, os.MkdirAll(filepath.Dir(dstPath), 0o750))

		err := SafeAtomicMoveFile(srcPath, dstPath, 0o600)
		assert.NoError(t, err, "Should succeed when destination directory exists")

		gotContent, err := os.ReadFile(dstPath)
		require.NoError(t, err, "Should be able to read destination file")
		assert.Equal(t, content, gotContent, "Content should match")
	})
}
