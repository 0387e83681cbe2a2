// Copyright 2025 Poiesic Systems
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
	"encoding/json"
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/lectern/core"
)

// ProjectIndex is the persisted registry document for one project.
type ProjectIndex struct {
	ProjectID string         `json:"project_id"`
	Sources   []*core.Source `json:"sources"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MarshalProjectIndex serializes a ProjectIndex to bytes.
func MarshalProjectIndex(index *ProjectIndex) ([]byte, error) {
	data, err := json.Marshal(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalProjectIndex deserializes a ProjectIndex from bytes.
func UnmarshalProjectIndex(data []byte) (*ProjectIndex, error) {
	var index ProjectIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return &index, nil
}

// MarshalVector serializes a vector record value. The id is carried by
// the key.
func MarshalVector(record *core.VectorRecord) []byte {
	buf := make([]byte, VectorRecordMUS.Size(*record))
	VectorRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalVector deserializes a vector record value produced by MarshalVector.
func UnmarshalVector(id string, data []byte) (*core.VectorRecord, error) {
	record, _, err := VectorRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	record.ID = id
	return &record, nil
}

// VectorRecordMUS is the MUS serializer for vector record values: the
// component count, the raw float32 components, then the metadata fields.
var VectorRecordMUS = vectorRecordMUS{}

type vectorRecordMUS struct{}

func (vectorRecordMUS) Marshal(r core.VectorRecord, bs []byte) (n int) {
	n = varint.PositiveInt.Marshal(len(r.Values), bs)
	for _, v := range r.Values {
		n += raw.Float32.Marshal(v, bs[n:])
	}
	n += ord.String.Marshal(r.Metadata.SourceID, bs[n:])
	n += varint.Int.Marshal(r.Metadata.PageNumber, bs[n:])
	n += ord.String.Marshal(r.Metadata.Text, bs[n:])
	n += ord.String.Marshal(r.Metadata.SourceName, bs[n:])
	return n
}

func (vectorRecordMUS) Unmarshal(bs []byte) (r core.VectorRecord, n int, err error) {
	dim, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return r, n, err
	}
	if dim < 0 || dim > (len(bs)-n)/4 {
		return r, n, fmt.Errorf("%d components in %d bytes", dim, len(bs)-n)
	}
	r.Values = make([]float32, dim)
	var n1 int
	for i := range r.Values {
		r.Values[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return r, n, err
		}
	}
	r.Metadata.SourceID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}
	r.Metadata.PageNumber, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}
	r.Metadata.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}
	r.Metadata.SourceName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return r, n, err
}

func (vectorRecordMUS) Size(r core.VectorRecord) (size int) {
	size = varint.PositiveInt.Size(len(r.Values))
	for _, v := range r.Values {
		size += raw.Float32.Size(v)
	}
	size += ord.String.Size(r.Metadata.SourceID)
	size += varint.Int.Size(r.Metadata.PageNumber)
	size += ord.String.Size(r.Metadata.Text)
	return size + ord.String.Size(r.Metadata.SourceName)
}
