//go:build !linux

package engine

// SetOriginXattrs is a no-op outside Linux, where the user.* extended
// attribute namespace isn't available.
func SetOriginXattrs(path, originURL, refererURL, mimeType, charset string) {}
