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
	"fmt"
	"strings"
)

// Logical paths are always forward-slash separated and rooted at the owner's
// tree. The normalized form has no leading or trailing slash; the root is the
// empty string. Dot and dot-dot segments are rejected outright rather than
// resolved, so traversal can never be expressed at this layer.

// Normalize collapses repeated slashes, strips leading/trailing slashes and
// rejects "." and ".." segments. Returns the normalized path ("" for root).
func Normalize(path string) (string, error) {
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("%w: contains NUL byte", ErrInvalidPath)
	}
	var parts []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "":
			// collapsed slash
		case ".", "..":
			return "", fmt.Errorf("%w: %q segment not allowed", ErrInvalidPath, seg)
		default:
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "/"), nil
}

// SplitPath normalizes a path and splits it into its components.
// The root path yields nil.
func SplitPath(path string) ([]string, error) {
	norm, err := Normalize(path)
	if err != nil {
		return nil, err
	}
	if norm == "" {
		return nil, nil
	}
	return strings.Split(norm, "/"), nil
}

// JoinPath joins already-normalized components into a path.
func JoinPath(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

// ParentPath returns the parent of a normalized path ("" for root and for
// top-level entries).
func ParentPath(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// BaseName returns the last component of a normalized path.
func BaseName(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}
