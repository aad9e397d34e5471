//go:build !unix

package local

import "errors"

// DiskStats is unsupported on this platform.
func (b *Backend) DiskStats() (total, free uint64, err error) {
	return 0, 0, errors.New("disk stats unsupported on this platform")
}
