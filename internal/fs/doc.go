// Package fs abstracts the file operations of the WAL so tests can inject
// I/O failures.
//
// Production code uses [Default], backed by the os package. Tests wrap it
// in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("ledgerq.wal", fs.Fault{FailOnSync: true})
//	w, err := wal.Open(func(o *wal.Options) { o.FS = ffs })
//
// Operations take no context: local file calls are not interruptible.
// Remote storage goes through blobstore instead.
package fs
