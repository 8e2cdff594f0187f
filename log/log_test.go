//
// Tencent is pleased to support the open source community by making trpc-opflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-opflow-go is licensed under the Apache License Version 2.0.
//
//

package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

// recorder captures the last call made through the Logger interface.
type recorder struct {
	method string
	format string
	args   []any
}

func (r *recorder) Debug(args ...any)                 { r.method, r.args = "Debug", args }
func (r *recorder) Debugf(format string, args ...any) { r.method, r.format, r.args = "Debugf", format, args }
func (r *recorder) Info(args ...any)                  { r.method, r.args = "Info", args }
func (r *recorder) Infof(format string, args ...any)  { r.method, r.format, r.args = "Infof", format, args }
func (r *recorder) Warn(args ...any)                  { r.method, r.args = "Warn", args }
func (r *recorder) Warnf(format string, args ...any)  { r.method, r.format, r.args = "Warnf", format, args }
func (r *recorder) Error(args ...any)                 { r.method, r.args = "Error", args }
func (r *recorder) Errorf(format string, args ...any) { r.method, r.format, r.args = "Errorf", format, args }
func (r *recorder) Fatal(args ...any)                 { r.method, r.args = "Fatal", args }
func (r *recorder) Fatalf(format string, args ...any) { r.method, r.format, r.args = "Fatalf", format, args }

func TestPackageHelpersDelegateToDefault(t *testing.T) {
	orig := Default
	defer func() { Default = orig }()

	rec := &recorder{}
	Default = rec

	Debug("d")
	assert.Equal(t, "Debug", rec.method)

	Infof("hello %s", "world")
	assert.Equal(t, "Infof", rec.method)
	assert.Equal(t, "hello %s", rec.format)

	Warn("w")
	assert.Equal(t, "Warn", rec.method)

	Errorf("e %d", 1)
	assert.Equal(t, "Errorf", rec.method)
}

func TestSetLevel(t *testing.T) {
	defer SetLevel(LevelInfo)

	cases := []struct {
		level string
		want  zapcore.Level
	}{
		{LevelDebug, zapcore.DebugLevel},
		{LevelInfo, zapcore.InfoLevel},
		{LevelWarn, zapcore.WarnLevel},
		{LevelError, zapcore.ErrorLevel},
		{LevelFatal, zapcore.FatalLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, c := range cases {
		SetLevel(c.level)
		assert.Equal(t, c.want, zapLevel.Level(), "level %q", c.level)
	}
}
