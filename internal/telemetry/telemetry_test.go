// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/linuxassist/internal/config"
)

func TestInit_DisabledIsNoop(t *testing.T) {
	cfg := config.TelemetryConfig{TraceFile: filepath.Join(t.TempDir(), "traces.log")}

	tp, shutdown, err := Init(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	_, err = os.Stat(cfg.TraceFile)
	assert.True(t, os.IsNotExist(err), "disabled tracing must not create files")
}

func TestNewProvider_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewProvider(context.Background(), &buf, "linuxassist", "test")
	require.NoError(t, err)

	_, span := tp.Tracer("api").Start(context.Background(), "GET /health")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "GET /health")
	assert.Contains(t, buf.String(), "linuxassist")
}
