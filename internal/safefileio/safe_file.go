// Package safefileio provides secure file I/O operations with protection against
// common security vulnerabilities like symlink attacks and TOCTOU race conditions.
//
// Platform-specific implementations:
//   - Linux: see safe_file_linux.go (uses openat2 with fallback to portable method)
//   - Others: see safe_file_nonlinux.go (uses portable method only)
package safefileio

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
)

// FileSystemConfig holds configuration for the file system operations
type FileSystemConfig struct {
	// DisableOpenat2 explicitly disables openat2 usage even if available
	DisableOpenat2 bool
}

// osFS implements FileSystem using the local disk
type osFS struct {
	openat2Available bool
	config           FileSystemConfig
}

// NewFileSystem creates a new FileSystem with the given configuration
func NewFileSystem(config FileSystemConfig) FileSystem {
	fs := &osFS{
		config: config,
	}

	if !config.DisableOpenat2 {
		fs.openat2Available = isOpenat2Available()
	}

	return fs
}

// defaultFS is the default filesystem implementation
var defaultFS = NewFileSystem(FileSystemConfig{})

// FileSystem is an interface that abstracts secure file system operations
type FileSystem interface {
	// SafeOpenFile opens a file with security checks to prevent symlink attacks and TOCTOU race conditions
	SafeOpenFile(name string, flag int, perm os.FileMode) (File, error)
	// Remove removes the named file or (empty) directory
	Remove(name string) error
	// AtomicMoveFile atomically moves a file from source to destination with secure permissions
	AtomicMoveFile(srcPath, dstPath string, requiredPerm os.FileMode) error
}

// File is an interface that abstracts file operations
// The underlying *os.File implements all these interfaces.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.ReaderAt
	Close() error
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
}

// IsOpenat2Available returns true if openat2 is available and enabled
func (fs *osFS) IsOpenat2Available() bool {
	return fs.openat2Available
}

func (fs *osFS) SafeOpenFile(name string, flag int, perm os.FileMode) (File, error) {
	absPath, err := filepath.Abs(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilePath, err)
	}

	return fs.safeOpenFileInternal(absPath, flag, perm)
}

// Remove removes the named file or (empty) directory
func (fs *osFS) Remove(name string) error {
	return os.Remove(name)
}

// AtomicMoveFile atomically moves a file from source to destination with secure permissions
func (fs *osFS) AtomicMoveFile(srcPath, dstPath string, requiredPerm os.FileMode) error {
	return safeAtomicMoveFileWithFS(srcPath, dstPath, requiredPerm, fs)
}

// SafeWriteFile writes a file safely after validating the path and checking file properties.
// It uses openat2 with RESOLVE_NO_SYMLINKS when available for atomic symlink-safe operations,
// eliminating TOCTOU (Time-of-Check Time-of-Use) race conditions completely.
// On systems without openat2, it falls back to path verification before opening the file.
func SafeWriteFile(filePath string, content []byte, perm os.FileMode) (err error) {
	return safeWriteFileWithFS(filePath, content, perm, defaultFS)
}

// SafeWriteFileOverwrite writes a file safely, allowing overwrite of existing files.
func SafeWriteFileOverwrite(filePath string, content []byte, perm os.FileMode) (err error) {
	return safeWriteFileOverwriteWithFS(filePath, content, perm, defaultFS)
}

// SafeAtomicMoveFile atomically moves a file from source to destination with secure permissions.
func SafeAtomicMoveFile(srcPath, dstPath string, requiredPerm os.FileMode) error {
	return safeAtomicMoveFileWithFS(srcPath, dstPath, requiredPerm, defaultFS)
}

func safeWriteFileOverwriteWithFS(filePath string, content []byte, perm os.FileMode, fs FileSystem) (err error) {
	return safeWriteFileCommon(filePath, content, perm, fs, os.O_WRONLY|os.O_CREATE)
}

func safeWriteFileWithFS(filePath string, content []byte, perm os.FileMode, fs FileSystem) (err error) {
	return safeWriteFileCommon(filePath, content, perm, fs, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
}

func safeAtomicMoveFileWithFS(srcPath, dstPath string, requiredPerm os.FileMode, fs FileSystem) error {
	absSrc, err := filepath.Abs(srcPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilePath, err)
	}

	absDst, err := filepath.Abs(dstPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilePath, err)
	}

	if err := validateRequestedPermissions(requiredPerm); err != nil {
		return err
	}

	if err := os.Chmod(absSrc, requiredPerm); err != nil {
		return fmt.Errorf("failed to set secure permissions on source: %w", err)
	}

	srcFile, err := fs.SafeOpenFile(absSrc, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open source file safely: %w", err)
	}
	defer func() {
		if closeErr := srcFile.Close(); closeErr != nil {
			slog.Warn("error closing source file", slog.Any("error", closeErr))
		}
	}()

	if err := requireRegularFile(srcFile, absSrc); err != nil {
		return fmt.Errorf("source file validation failed: %w", err)
	}

	if err := ensureParentDirsNoSymlinks(absDst); err != nil {
		return fmt.Errorf("destination parent directory unsafe: %w", err)
	}

	if err := os.Rename(absSrc, absDst); err != nil {
		return fmt.Errorf("atomic move failed: %w", err)
	}

	dstFile, err := fs.SafeOpenFile(absDst, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open destination file safely: %w", err)
	}
	defer func() {
		if closeErr := dstFile.Close(); closeErr != nil {
			slog.Warn("error closing destination file", slog.Any("error", closeErr))
		}
	}()

	if err := requireRegularFile(dstFile, absDst); err != nil {
		return fmt.Errorf("destination file validation failed: %w", err)
	}

	return nil
}

func safeWriteFileCommon(filePath string, content []byte, perm os.FileMode, fs FileSystem, flags int) (err error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilePath, err)
	}

	if err := validateRequestedPermissions(perm); err != nil {
		return err
	}

	fileCreated := false

	file, err := fs.SafeOpenFile(absPath, flags, perm)
	if err != nil {
		return err
	}
	if flags&os.O_EXCL != 0 {
		fileCreated = true
	}

	defer func() {
		closeErr := file.Close()

		if err != nil && fileCreated {
			if removeErr := fs.Remove(absPath); removeErr != nil {
				slog.Warn("failed to remove file after error",
					slog.String("path", absPath),
					slog.Any("original_error", err),
					slog.Any("remove_error", removeErr))
			}
		}

		if closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", closeErr)
		}
	}()

	if err := requireRegularFile(file, absPath); err != nil {
		return err
	}

	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", absPath, err)
	}

	if _, err = file.Write(content); err != nil {
		return fmt.Errorf("failed to write to %s: %w", absPath, err)
	}

	return nil
}

// validateRequestedPermissions rejects modes that grant write access to group or other,
// which would let any co-resident user tamper with the file.
func validateRequestedPermissions(perm os.FileMode) error {
	if perm&0o022 != 0 {
		return fmt.Errorf("%w: mode %o grants group/other write access", ErrInvalidFilePermissions, perm)
	}
	return nil
}

// ensureParentDirsNoSymlinks checks if any component of the path is a symlink
// by traversing the directory hierarchy step-by-step.
func ensureParentDirsNoSymlinks(absPath string) error {
	dir := filepath.Dir(absPath)

	components := splitPathComponents(dir)

	currentPath := filepath.VolumeName(dir) + string(os.PathSeparator)

	for _, component := range components {
		currentPath = filepath.Join(currentPath, component)

		fi, err := os.Lstat(currentPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", currentPath, err)
		}

		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s", ErrIsSymlink, currentPath)
		}

		if !fi.IsDir() {
			return fmt.Errorf("%w: not a directory: %s", ErrInvalidFilePath, currentPath)
		}
	}

	return nil
}

// splitPathComponents splits the given directory path into its components from root to target directory.
// Example: "/home/user/docs" becomes ["home", "user", "docs"].
func splitPathComponents(dir string) []string {
	components := []string{}
	current := dir
	for {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}

		components = append(components, filepath.Base(current))
		current = parent
	}

	for i, j := 0, len(components)-1; i < j; i, j = i+1, j-1 {
		components[i], components[j] = components[j], components[i]
	}
	return components
}

// MaxFileSize is the maximum allowed file size for SafeReadFile (128 MB)
const MaxFileSize = 128 * 1024 * 1024

// SafeReadFile reads a file safely after validating the path and checking file properties.
// It enforces a maximum file size of MaxFileSize to prevent memory exhaustion attacks.
func SafeReadFile(filePath string) ([]byte, error) {
	return SafeReadFileWithFS(filePath, defaultFS)
}

// SafeReadFileWithFS is the internal implementation that accepts a FileSystem for testing
func SafeReadFileWithFS(filePath string, fs FileSystem) ([]byte, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilePath, err)
	}

	file, err := fs.SafeOpenFile(absPath, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("error closing file", slog.Any("error", closeErr))
		}
	}()

	return readFileContent(file, absPath)
}

// readFileContent reads and validates the content of an already opened file
func readFileContent(file File, filePath string) ([]byte, error) {
	fileInfo, err := requireRegularFileInfo(file, filePath)
	if err != nil {
		return nil, err
	}

	if fileInfo.Size() > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	content, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if int64(len(content)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	return content, nil
}

// requireRegularFileInfo validates that the already-opened file is a regular file and
// returns its FileInfo.
func requireRegularFileInfo(file File, filePath string) (os.FileInfo, error) {
	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", ErrInvalidFilePath, filePath)
	}

	return fileInfo, nil
}

// requireRegularFile validates that the already-opened file is a regular file.
func requireRegularFile(file File, filePath string) error {
	_, err := requireRegularFileInfo(file, filePath)
	return err
}

// safeOpenFileFallback implements the fallback method for opening files without openat2.
// This method performs two-phase verification to detect symlink attacks:
// 1. Verify parent directories are not symlinks before opening
// 2. Verify again after opening to detect TOCTOU race conditions
func safeOpenFileFallback(absPath string, flag int, perm os.FileMode) (*os.File, error) {
	if err := ensureParentDirsNoSymlinks(absPath); err != nil {
		return nil, err
	}

	// #nosec G304 - absPath is properly validated above
	file, err := os.OpenFile(absPath, flag|syscall.O_NOFOLLOW, perm)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrFileExists
		}
		if isNoFollowError(err) {
			return nil, ErrIsSymlink
		}
		return nil, err
	}

	if err := ensureParentDirsNoSymlinks(absPath); err != nil {
		return nil, err
	}

	return file, nil
}
