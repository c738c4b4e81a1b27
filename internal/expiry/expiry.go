// Package expiry parses the three expiry shapes of spec §4.1: a unix
// seconds literal, an ISO-8601 instant, or a preset token. Callers supply
// the preset's "now" so the logic stays deterministic under test.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package expiry

import (
	"strconv"
	"strings"
	"time"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
)

var presets = map[string]time.Duration{
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  3 * 24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
	"2w":  14 * 24 * time.Hour,
	"1m":  30 * 24 * time.Hour,
}

// Parse resolves raw (one of the three shapes, or empty) into an absolute
// expiry instant, or nil for "never"/empty-with-no-default. When raw is
// empty, def is used in its place.
func Parse(raw string, def string, now time.Time) (*time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		s = def
	}
	if s == "" || s == "never" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.Unix(n, 0).UTC()
		return &t, nil
	}
	if strings.Contains(s, "T") {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, xerr.Validationf("invalid ISO-8601 expiry %q", raw)
		}
		t = t.UTC()
		return &t, nil
	}
	d, ok := presets[s]
	if !ok {
		return nil, xerr.Validationf("unrecognized expiry %q", raw)
	}
	t := now.Add(d)
	return &t, nil
}

// ParseCapped is Parse with a hard ceiling (used for dashboard credentials,
// capped at 24h per spec §4.1/§4.7). Requests above the cap fail 400.
func ParseCapped(raw string, def string, now time.Time, cap time.Duration) (*time.Time, error) {
	t, err := Parse(raw, def, now)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, xerr.Validationf("expiry is required and cannot be \"never\"")
	}
	if t.Sub(now) > cap {
		return nil, xerr.Validationf("requested expiry exceeds the %s cap", cap)
	}
	return t, nil
}
