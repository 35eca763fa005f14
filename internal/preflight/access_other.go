//go:build !unix

package preflight

import "os"

// accessRWX probes writability by creating and removing a temp file.
func accessRWX(path string) error {
	f, err := os.CreateTemp(path, ".vidqc-access-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
