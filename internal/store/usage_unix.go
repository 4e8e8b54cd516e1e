//go:build linux || darwin || freebsd

package store

import "golang.org/x/sys/unix"

// filesystemFree reports the bytes available to unprivileged users on the
// filesystem holding dir.
func filesystemFree(dir string) (int64, bool, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, true, err
	}
	return int64(st.Bavail) * int64(st.Bsize), true, nil
}
