// Copyright 2025 DriveFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"root", "/", ""},
		{"empty", "", ""},
		{"simple", "/docs", "docs"},
		{"nested", "/docs/reports/q1", "docs/reports/q1"},
		{"no leading slash", "docs/reports", "docs/reports"},
		{"trailing slash", "/docs/", "docs"},
		{"repeated slashes", "//docs///reports//", "docs/reports"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"dot segment", "/docs/./reports"},
		{"dotdot segment", "/docs/../etc"},
		{"leading dotdot", "../escape"},
		{"bare dot", "."},
		{"nul byte", "/docs/evil\x00name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Normalize(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	parts, err := SplitPath("/docs/reports/q1")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "reports", "q1"}, parts)

	parts, err = SplitPath("/")
	require.NoError(t, err)
	assert.Nil(t, parts, "root should split to nil")
}

func TestJoinParentBase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "docs/reports", JoinPath("docs", "reports"))
	assert.Equal(t, "docs", JoinPath("", "docs"))
	assert.Equal(t, "", JoinPath())

	assert.Equal(t, "docs", ParentPath("docs/reports"))
	assert.Equal(t, "", ParentPath("docs"))
	assert.Equal(t, "reports", BaseName("docs/reports"))
	assert.Equal(t, "docs", BaseName("docs"))
}
