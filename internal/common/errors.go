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
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNotAFolder    = errors.New("not a folder")
	ErrNameConflict  = errors.New("name already exists")
	ErrCyclicMove    = errors.New("destination is the entry itself or one of its descendants")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidPath   = errors.New("invalid path")
	ErrTooLarge      = errors.New("file exceeds maximum upload size")
	ErrBlobIO        = errors.New("blob storage I/O error")
	ErrCancelled     = errors.New("operation cancelled")
)

// Code returns the stable wire code for an error so the transport layer can
// translate it without string matching. Unrecognized errors map to "internal".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotAFolder):
		return "not_a_folder"
	case errors.Is(err, ErrNameConflict):
		return "name_conflict"
	case errors.Is(err, ErrCyclicMove):
		return "cyclic_move"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrBlobIO):
		return "blob_io"
	case errors.Is(err, ErrCancelled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
