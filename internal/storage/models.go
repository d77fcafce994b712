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

package storage

import (
	"time"

	"github.com/uptrace/bun"
)

// Kind discriminates files from folders. Closed set.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Entry is one file or folder in an owner's tree. The logical path of an
// entry is derived by walking ParentID links; it is never stored.
type Entry struct {
	ID        string
	OwnerID   string
	ParentID  string // "" only for the owner's root
	Name      string
	Kind      Kind
	SizeBytes int64  // files only; folders derive size on demand
	MimeType  string // files only, optional
	BlobRef   string // files only; opaque key into the blob store
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFolder returns true if the entry is a folder.
func (e *Entry) IsFolder() bool {
	return e.Kind == KindFolder
}

// IsFile returns true if the entry is a regular file.
func (e *Entry) IsFile() bool {
	return e.Kind == KindFile
}

// IsRoot returns true if the entry is an owner's root folder.
func (e *Entry) IsRoot() bool {
	return e.ParentID == ""
}

// Quota is the per-owner storage accounting row.
type Quota struct {
	OwnerID    string
	LimitBytes int64
	UsedBytes  int64
}

// Remaining returns the number of bytes still available to the owner.
func (q *Quota) Remaining() int64 {
	r := q.LimitBytes - q.UsedBytes
	if r < 0 {
		return 0
	}
	return r
}

// SchemaInfoModel represents the schema_info table
type SchemaInfoModel struct {
	bun.BaseModel `bun:"table:schema_info"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// EntryModel represents the entries table.
// Note: Times are stored as Unix timestamps in the database.
type EntryModel struct {
	bun.BaseModel `bun:"table:entries"`

	ID        string `bun:"id,pk"`
	OwnerID   string `bun:"owner_id,notnull"`
	ParentID  string `bun:"parent_id,notnull"`
	Name      string `bun:"name,notnull"`
	Kind      string `bun:"kind,notnull"`
	SizeBytes int64  `bun:"size_bytes,notnull"`
	MimeType  string `bun:"mime_type,notnull"`
	BlobRef   string `bun:"blob_ref,notnull"`
	CreatedAt int64  `bun:"created_at,notnull"` // Unix timestamp
	UpdatedAt int64  `bun:"updated_at,notnull"` // Unix timestamp
}

// ToEntry converts an EntryModel to the Entry domain struct
func (m *EntryModel) ToEntry() *Entry {
	return &Entry{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		ParentID:  m.ParentID,
		Name:      m.Name,
		Kind:      Kind(m.Kind),
		SizeBytes: m.SizeBytes,
		MimeType:  m.MimeType,
		BlobRef:   m.BlobRef,
		CreatedAt: time.Unix(m.CreatedAt, 0),
		UpdatedAt: time.Unix(m.UpdatedAt, 0),
	}
}

// EntryModelFromEntry converts an Entry to EntryModel
func EntryModelFromEntry(e *Entry) *EntryModel {
	return &EntryModel{
		ID:        e.ID,
		OwnerID:   e.OwnerID,
		ParentID:  e.ParentID,
		Name:      e.Name,
		Kind:      string(e.Kind),
		SizeBytes: e.SizeBytes,
		MimeType:  e.MimeType,
		BlobRef:   e.BlobRef,
		CreatedAt: e.CreatedAt.Unix(),
		UpdatedAt: e.UpdatedAt.Unix(),
	}
}

// QuotaModel represents the quotas table
type QuotaModel struct {
	bun.BaseModel `bun:"table:quotas"`

	OwnerID    string `bun:"owner_id,pk"`
	LimitBytes int64  `bun:"limit_bytes,notnull"`
	UsedBytes  int64  `bun:"used_bytes,notnull"`
}

// ToQuota converts a QuotaModel to the Quota domain struct
func (m *QuotaModel) ToQuota() *Quota {
	return &Quota{
		OwnerID:    m.OwnerID,
		LimitBytes: m.LimitBytes,
		UsedBytes:  m.UsedBytes,
	}
}
