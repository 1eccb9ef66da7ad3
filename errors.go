package leapsec

import "errors"

var (
	// ErrMalformedTable reports an unparseable record in the published table.
	// A refresh that hits it is aborted; any previously loaded table stays in
	// effect.
	ErrMalformedTable = errors.New("malformed leap-second table")

	// ErrCacheDirNotFound reports that the configured cache directory does
	// not exist.
	ErrCacheDirNotFound = errors.New("cache directory does not exist")

	// ErrNoCacheFile reports a cache directory with no table files in it.
	ErrNoCacheFile = errors.New("no cached leap-second table found")
)
