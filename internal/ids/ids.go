// Package ids generates the identifiers of spec §4.1 (C1): bucket IDs,
// short codes, API keys and upload tokens all draw from crypto/rand because
// the spec explicitly requires a cryptographically strong source for every
// credential/identifier that gates access to a bucket's contents. The one
// non-security-critical identifier here — the blob store's temp-file tie
// breaker — instead uses teris-io/shortid, the same "short, readable unique
// string" library the teacher pulls in for cmn.GenUUID/GenTie.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/teris-io/shortid"
)

const alphanum = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var tieGen *shortid.Shortid

func init() {
	var err error
	tieGen, err = shortid.New(1, shortid.DefaultABC, 2166136261)
	if err != nil {
		tieGen = nil
	}
}

func randAlnum(n int) string {
	out := make([]byte, n)
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("ids: crypto/rand unavailable: %v", err))
	}
	for i, b := range buf {
		out[i] = alphanum[int(b)%len(alphanum)]
	}
	return string(out)
}

func randHex(nbytes int) string {
	buf := make([]byte, nbytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("ids: crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

// BucketID generates a 10-char URL-safe alphanumeric bucket primary key.
func BucketID() string { return randAlnum(10) }

// ShortCode generates a 6-char URL-safe alphanumeric short-URL code.
func ShortCode() string { return randAlnum(6) }

// ApiKey generates a full API key of the form cf4_{8hex}_{32hex}; the two
// hex halves are drawn independently so the prefix alone (cf4_{8hex}) can
// serve as the non-secret primary key stored in ApiKey.prefix.
func ApiKey() (full, prefix string) {
	prefix = "cf4_" + randHex(4)
	secret := randHex(16)
	return prefix + "_" + secret, prefix
}

// UploadToken generates a token of the form cfu_{48 lowercase hex chars}.
func UploadToken() string { return "cfu_" + randHex(24) }

// TempSuffix returns a short, non-secret tie-breaker for naming the blob
// store's "{final}.tmp.{suffix}" staging file (spec §4.3).
func TempSuffix() string {
	if tieGen != nil {
		if s, err := tieGen.Generate(); err == nil {
			return s
		}
	}
	return randHex(6)
}
