// Package xlog centralizes CarbonFiles logging on top of glog, the same
// leveled logger the teacher codebase wraps as 3rdparty/glog.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package xlog

import "github.com/golang/glog"

func Infof(format string, args ...interface{})    { glog.Infof(format, args...) }
func Warningf(format string, args ...interface{}) { glog.Warningf(format, args...) }
func Errorf(format string, args ...interface{})   { glog.Errorf(format, args...) }

// Flush forces buffered log lines to be written, called at shutdown and
// after a fatal startup error.
func Flush() { glog.Flush() }
