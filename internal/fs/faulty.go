package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault")

// Fault describes how a file misbehaves.
type Fault struct {
	// FailOnOpen fails OpenFile for writing.
	FailOnOpen bool
	// FailOnWrite fails every write.
	FailOnWrite bool
	// FailAfterBytes fails a write that would take the file past this many
	// bytes. Zero disables the limit.
	FailAfterBytes int64
	FailOnSync     bool
	FailOnRename   bool
	FailOnTruncate bool
	// Err is returned by the fault. Nil means ErrInjected.
	Err error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS wraps a FileSystem and injects faults into files whose name
// contains a rule's pattern. Rule changes apply to files that are already
// open. The byte count of FailAfterBytes is kept per open file.
type FaultyFS struct {
	FS FileSystem

	mu    sync.Mutex
	rules map[string]Fault
}

// NewFaultyFS wraps fsys, or Default if fsys is nil.
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{FS: fsys, rules: make(map[string]Fault)}
}

// AddRule applies fault to files whose name contains pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// Clear removes all rules.
func (f *FaultyFS) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.rules)
}

func (f *FaultyFS) match(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			return rule, true
		}
	}
	return Fault{}, false
}

func (f *FaultyFS) Open(name string) (File, error) {
	return f.FS.Open(name)
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	fault, ok := f.match(name)
	writable := flag&(os.O_WRONLY|os.O_RDWR) != 0
	if ok && writable && fault.FailOnOpen {
		return nil, &os.PathError{Op: "open", Path: name, Err: fault.err()}
	}
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil || !writable {
		return file, err
	}
	return &faultyFile{File: file, fs: f, name: name}, nil
}

func (f *FaultyFS) Remove(name string) error { return f.FS.Remove(name) }

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if fault, ok := f.match(newpath); ok && fault.FailOnRename {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fault.err()}
	}
	return f.FS.Rename(oldpath, newpath)
}

func (f *FaultyFS) Truncate(name string, size int64) error {
	if fault, ok := f.match(name); ok && fault.FailOnTruncate {
		return &os.PathError{Op: "truncate", Path: name, Err: fault.err()}
	}
	return f.FS.Truncate(name, size)
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.FS.Stat(name) }

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}

type faultyFile struct {
	File
	fs      *FaultyFS
	name    string
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if fault, ok := ff.fs.match(ff.name); ok {
		if fault.FailOnWrite {
			return 0, fault.err()
		}
		if limit := fault.FailAfterBytes; limit > 0 && ff.written+int64(len(p)) > limit {
			return 0, fault.err()
		}
	}
	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if fault, ok := ff.fs.match(ff.name); ok && fault.FailOnSync {
		return fault.err()
	}
	return ff.File.Sync()
}
