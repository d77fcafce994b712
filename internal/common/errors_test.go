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
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found", ErrNotFound, "not_found"},
		{"not a folder", ErrNotAFolder, "not_a_folder"},
		{"name conflict", ErrNameConflict, "name_conflict"},
		{"cyclic move", ErrCyclicMove, "cyclic_move"},
		{"quota exceeded", ErrQuotaExceeded, "quota_exceeded"},
		{"invalid name", ErrInvalidName, "invalid_name"},
		{"invalid path", ErrInvalidPath, "invalid_path"},
		{"too large", ErrTooLarge, "too_large"},
		{"blob io", ErrBlobIO, "blob_io"},
		{"cancelled sentinel", ErrCancelled, "cancelled"},
		{"context canceled", context.Canceled, "cancelled"},
		{"deadline exceeded", context.DeadlineExceeded, "cancelled"},
		{"unknown", errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestCodeUnwrapsWrappedErrors(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("resolving %q: %w", "/docs/missing", ErrNotFound)
	assert.Equal(t, "not_found", Code(wrapped))

	doubly := fmt.Errorf("request failed: %w", wrapped)
	assert.Equal(t, "not_found", Code(doubly))
}
