//go:build linux

package engine

import "golang.org/x/sys/unix"

// setXattr writes one extended attribute on path, ignoring ENOTSUP
// (common on tmpfs/overlay filesystems in CI) so it never turns an
// otherwise-successful download into a failure.
func setXattr(path, name, value string) error {
	if value == "" {
		return nil
	}
	err := unix.Setxattr(path, name, []byte(value), 0)
	if err == unix.ENOTSUP || err == unix.EOPNOTSUPP {
		return nil
	}
	return err
}

// SetOriginXattrs writes the user.xdg.origin.url, user.xdg.referrer.url,
// user.mime_type, and user.charset extended attributes, best-effort.
func SetOriginXattrs(path, originURL, refererURL, mimeType, charset string) {
	_ = setXattr(path, "user.xdg.origin.url", originURL)
	_ = setXattr(path, "user.xdg.referrer.url", refererURL)
	_ = setXattr(path, "user.mime_type", mimeType)
	_ = setXattr(path, "user.charset", charset)
}
