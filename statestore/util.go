package statestore

import "net/url"

func parseStoreURL(raw string) (*url.URL, error) {
	return url.Parse(raw)
}
