package vectorstore

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
)

// Bucket names double as Postgres table names, which are capped at 63
// bytes, must start with a letter, and fold to lowercase when referenced
// unquoted. Names are lowercased up front so quoted and unquoted
// references resolve to the same table. Long sources keep a fixed-length
// sanitized prefix and are disambiguated by a hash of the original
// identifier.
const (
	bucketPrefix   = "col_"
	fallbackBucket = "col_default"

	maxSanitizedLen = 48
	hashPrefixLen   = 40
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// BucketName derives the bucket name for a source identifier. The mapping
// is deterministic: the same source always lands in the same bucket.
func BucketName(source string) string {
	if strings.TrimSpace(source) == "" {
		return fallbackBucket
	}

	sanitized := nonAlnum.ReplaceAllString(strings.ToLower(source), "_")
	if len(sanitized) > maxSanitizedLen {
		sum := md5.Sum([]byte(source))
		sanitized = sanitized[:hashPrefixLen] + "_" + hex.EncodeToString(sum[:])[:8]
	}

	return bucketPrefix + sanitized
}
