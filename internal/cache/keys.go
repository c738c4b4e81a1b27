package cache

import (
	"strings"
	"time"
)

const (
	TTLBucket = 10 * time.Minute
	TTLFile   = 5 * time.Minute
	TTLShort  = 10 * time.Minute
	TTLToken  = 2 * time.Minute
	TTLStats  = 5 * time.Minute
)

const StatsKey = "stats"

func BucketKey(id string) string { return "bucket:" + id }
func FileKey(bucketID, path string) string {
	return "file:" + bucketID + ":" + strings.ToLower(path)
}
func ShortKey(code string) string { return "short:" + code }
func TokenKey(token string) string { return "uploadtoken:" + token }
