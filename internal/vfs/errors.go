// Package vfs implements the filesystem core: a files metadata table, a
// reactive path index rebuilt on every change, a per-file content-doc
// pool, and POSIX-like high level file operations over a time-ordered
// content timeline.
package vfs

import "fmt"

// Errno is a POSIX-style error code.
type Errno string

const (
	ENOENT    Errno = "ENOENT"
	EEXIST    Errno = "EEXIST"
	EISDIR    Errno = "EISDIR"
	ENOTDIR   Errno = "ENOTDIR"
	ENOTEMPTY Errno = "ENOTEMPTY"
	ENOSYS    Errno = "ENOSYS"
)

// FsError is thrown by the high-level filesystem surface to match
// POSIX idioms.
type FsError struct {
	Code Errno
	Path string
}

func (e *FsError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Path)
}

func errNoEnt(path string) error    { return &FsError{Code: ENOENT, Path: path} }
func errExist(path string) error    { return &FsError{Code: EEXIST, Path: path} }
func errIsDir(path string) error    { return &FsError{Code: EISDIR, Path: path} }
func errNotDir(path string) error   { return &FsError{Code: ENOTDIR, Path: path} }
func errNotEmpty(path string) error { return &FsError{Code: ENOTEMPTY, Path: path} }
func errNoSys(path string) error    { return &FsError{Code: ENOSYS, Path: path} }
