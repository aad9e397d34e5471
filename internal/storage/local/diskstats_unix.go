//go:build unix

package local

import "golang.org/x/sys/unix"

// DiskStats reports total and free bytes of the filesystem holding the
// library root.
func (b *Backend) DiskStats() (total, free uint64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(b.rootPath, &st); err != nil {
		return 0, 0, err
	}
	bsize := uint64(st.Bsize)
	return uint64(st.Blocks) * bsize, uint64(st.Bavail) * bsize, nil
}
