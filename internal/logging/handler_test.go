// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupStampsServiceIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("userforge", "1.2.3", "json", &buf)

	logger.Info("hello", "key", "value")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "userforge", record["service"])
	assert.Equal(t, "1.2.3", record["version"])
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "value", record["key"])
}

func TestSetupTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("userforge", "dev", "text", &buf)

	logger.Info("hello")

	out := buf.String()
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "service=userforge")
	assert.False(t, strings.HasPrefix(out, "{"))
}

func TestSetupDefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("userforge", "dev", "", &buf)

	logger.Info("hello")

	assert.True(t, strings.HasPrefix(buf.String(), "{"))
}

func TestHandlerPreservesAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("userforge", "dev", "json", &buf)

	logger.With("request_id", "abc").WithGroup("db").Info("query", "rows", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "abc", record["request_id"])

	db, ok := record["db"].(map[string]any)
	require.True(t, ok, "expected db group, got %v", record)
	assert.EqualValues(t, 3, db["rows"])
}

func TestDebugLevelEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("userforge", "dev", "json", &buf)

	logger.Debug("verbose")

	assert.Contains(t, buf.String(), "verbose")
}
