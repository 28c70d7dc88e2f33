// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"path/filepath"
	"testing"

	"github.com/google/crashtriage/pkg/osutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Debugger string   `json:"debugger" yaml:"debugger"`
	Timeout  int      `json:"timeout" yaml:"timeout"`
	Args     []string `json:"args" yaml:"args"`
	Nested   struct {
		TopFrame int `json:"top_frame" yaml:"top_frame"`
	} `json:"nested" yaml:"nested"`
}

func TestLoadData(t *testing.T) {
	tests := []struct {
		input string
		want  testConfig
		err   bool
	}{
		{
			input: `{"debugger": "gdb", "timeout": 10}`,
			want:  testConfig{Debugger: "gdb", Timeout: 10},
		},
		{
			input: "# a comment\n{\n  # another one\n  \"args\": [\"./app\", \"@@\"]\n}",
			want:  testConfig{Args: []string{"./app", "@@"}},
		},
		{
			input: `{"nested": {"top_frame": 5}}`,
			want: func() testConfig {
				var cfg testConfig
				cfg.Nested.TopFrame = 5
				return cfg
			}(),
		},
		{
			input: `{"unknown": 1}`,
			err:   true,
		},
		{
			input: `{"timeout": "abc"}`,
			err:   true,
		},
	}
	for i, test := range tests {
		var cfg testConfig
		err := LoadData([]byte(test.input), &cfg)
		if test.err {
			assert.Error(t, err, "#%v", i)
			continue
		}
		require.NoError(t, err, "#%v", i)
		assert.Equal(t, test.want, cfg, "#%v", i)
	}
}

func TestLoadFileFormats(t *testing.T) {
	dir := t.TempDir()
	jsonFile := filepath.Join(dir, "triage.cfg")
	require.NoError(t, osutil.WriteFile(jsonFile, []byte(`{"debugger": "gdb-multiarch", "timeout": 30}`)))
	yamlFile := filepath.Join(dir, "triage.yaml")
	require.NoError(t, osutil.WriteFile(yamlFile, []byte("debugger: gdb-multiarch\ntimeout: 30\n")))
	badYAML := filepath.Join(dir, "bad.yml")
	require.NoError(t, osutil.WriteFile(badYAML, []byte("debuger: gdb\n")))

	for _, file := range []string{jsonFile, yamlFile} {
		var cfg testConfig
		require.NoError(t, LoadFile(file, &cfg), file)
		assert.Equal(t, testConfig{Debugger: "gdb-multiarch", Timeout: 30}, cfg, file)
	}
	var cfg testConfig
	assert.Error(t, LoadFile(badYAML, &cfg))
	assert.Error(t, LoadFile("", &cfg))
	assert.Error(t, LoadFile(filepath.Join(dir, "missing.cfg"), &cfg))
}
