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


package core

import (
	"fmt"
	"maps"
	"slices"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the domain types. These are small and
// stable enough that code generation is not worth the extra tooling.
var (
	// IDMUS serializes ID values.
	IDMUS = idMUS{}
	// VectorMUS serializes embedding vectors.
	VectorMUS = vectorMUS{}
	// MetadataMUS serializes metadata maps with deterministic key order.
	MetadataMUS = metadataMUS{}
	// DocumentMUS serializes documents.
	DocumentMUS = documentMUS{}
)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

func (idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

type vectorMUS struct{}

func (vectorMUS) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (vectorMUS) Unmarshal(bs []byte) ([]float32, int, error) {
	l, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if l < 0 {
		return nil, n, fmt.Errorf("%w: negative vector length %d", ErrInvalidEncoding, l)
	}
	v := make([]float32, l)
	for i := 0; i < l; i++ {
		var (
			f  float32
			fn int
		)
		f, fn, err = raw.Float32.Unmarshal(bs[n:])
		n += fn
		if err != nil {
			return nil, n, err
		}
		v[i] = f
	}
	return v, n, nil
}

func (vectorMUS) Size(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func (s vectorMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type metadataMUS struct{}

func (metadataMUS) Marshal(m Metadata, bs []byte) (n int) {
	n = varint.Int.Marshal(len(m), bs)
	for _, k := range slices.Sorted(maps.Keys(m)) {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(m[k], bs[n:])
	}
	return n
}

func (metadataMUS) Unmarshal(bs []byte) (Metadata, int, error) {
	l, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if l < 0 {
		return nil, n, fmt.Errorf("%w: negative metadata length %d", ErrInvalidEncoding, l)
	}
	m := make(Metadata, l)
	for i := 0; i < l; i++ {
		var (
			k, v string
			kn   int
		)
		k, kn, err = ord.String.Unmarshal(bs[n:])
		n += kn
		if err != nil {
			return nil, n, err
		}
		v, kn, err = ord.String.Unmarshal(bs[n:])
		n += kn
		if err != nil {
			return nil, n, err
		}
		m[k] = v
	}
	return m, n, nil
}

func (metadataMUS) Size(m Metadata) (size int) {
	size = varint.Int.Size(len(m))
	for k, v := range m {
		size += ord.String.Size(k)
		size += ord.String.Size(v)
	}
	return size
}

func (s metadataMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type documentMUS struct{}

func (documentMUS) Marshal(d Document, bs []byte) (n int) {
	n = IDMUS.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.Content, bs[n:])
	n += MetadataMUS.Marshal(d.Metadata, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (Document, int, error) {
	var d Document
	id, n, err := IDMUS.Unmarshal(bs)
	if err != nil {
		return d, n, err
	}
	d.Id = id
	content, cn, err := ord.String.Unmarshal(bs[n:])
	n += cn
	if err != nil {
		return d, n, err
	}
	d.Content = content
	meta, mn, err := MetadataMUS.Unmarshal(bs[n:])
	n += mn
	if err != nil {
		return d, n, err
	}
	d.Metadata = meta
	return d, n, nil
}

func (documentMUS) Size(d Document) int {
	return IDMUS.Size(d.Id) + ord.String.Size(d.Content) + MetadataMUS.Size(d.Metadata)
}

func (s documentMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}
