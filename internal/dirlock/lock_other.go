//go:build !unix && !windows

package dirlock

import "os"

func osLock(*os.File) error   { return nil }
func osUnlock(*os.File) error { return nil }
