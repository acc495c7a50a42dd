// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ulogtest builds synthetic ULog containers for tests.
//
// Production code never writes ULog files; this encoder exists so decoder
// and pipeline tests can exercise the real binary path instead of mocking
// the parsed form.
package ulogtest

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FieldSpec declares one field of a synthetic topic format.
type FieldSpec struct {
	// Type is a ULog basic type name ("uint64_t", "float", "uint8_t", ...).
	Type string

	// Name is the field name, without array suffix.
	Name string

	// Array is the fixed array length; 0 or 1 means scalar.
	Array int
}

// TopicSpec declares one channel instance and its sample rows.
type TopicSpec struct {
	Name    string
	MultiID uint8
	Fields  []FieldSpec

	// Rows holds one slice per sample, with one value per flattened scalar
	// cell in field order (array fields contribute Array cells).
	Rows [][]float64
}

var sizes = map[string]int{
	"int8_t": 1, "uint8_t": 1, "bool": 1, "char": 1,
	"int16_t": 2, "uint16_t": 2,
	"int32_t": 4, "uint32_t": 4, "float": 4,
	"int64_t": 8, "uint64_t": 8, "double": 8,
}

// Encode assembles a complete ULog byte stream containing the given topics.
// Panics on malformed specs; tests should fail loudly.
func Encode(specs ...TopicSpec) []byte {
	out := header()

	formatsWritten := make(map[string]bool)
	for _, spec := range specs {
		if !formatsWritten[spec.Name] {
			out = append(out, message('F', formatPayload(spec))...)
			formatsWritten[spec.Name] = true
		}
	}

	for i, spec := range specs {
		msgID := uint16(i)
		sub := make([]byte, 3+len(spec.Name))
		sub[0] = spec.MultiID
		binary.LittleEndian.PutUint16(sub[1:3], msgID)
		copy(sub[3:], spec.Name)
		out = append(out, message('A', sub)...)

		for _, row := range spec.Rows {
			body := make([]byte, 2)
			binary.LittleEndian.PutUint16(body, msgID)
			body = append(body, encodeRow(spec.Fields, row)...)
			out = append(out, message('D', body)...)
		}
	}
	return out
}

// Truncate returns the stream cut to n bytes, for corrupt-log tests.
func Truncate(data []byte, n int) []byte {
	if n > len(data) {
		n = len(data)
	}
	return data[:n]
}

func header() []byte {
	h := make([]byte, 16)
	copy(h, "ULog\x01\x12\x35")
	h[7] = 1 // version
	binary.LittleEndian.PutUint64(h[8:], 1_000_000)
	return h
}

func message(typ byte, payload []byte) []byte {
	m := make([]byte, 3, 3+len(payload))
	binary.LittleEndian.PutUint16(m[0:2], uint16(len(payload)))
	m[2] = typ
	return append(m, payload...)
}

func formatPayload(spec TopicSpec) []byte {
	s := spec.Name + ":"
	for _, f := range spec.Fields {
		if f.Array > 1 {
			s += fmt.Sprintf("%s[%d] %s;", f.Type, f.Array, f.Name)
		} else {
			s += fmt.Sprintf("%s %s;", f.Type, f.Name)
		}
	}
	return []byte(s)
}

func encodeRow(fields []FieldSpec, row []float64) []byte {
	var out []byte
	idx := 0
	for _, f := range fields {
		n := f.Array
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			if idx >= len(row) {
				panic(fmt.Sprintf("ulogtest: row has %d cells, format needs more", len(row)))
			}
			out = append(out, encodeScalar(row[idx], f.Type)...)
			idx++
		}
	}
	if idx != len(row) {
		panic(fmt.Sprintf("ulogtest: row has %d cells, format consumed %d", len(row), idx))
	}
	return out
}

func encodeScalar(v float64, typ string) []byte {
	b := make([]byte, sizes[typ])
	switch typ {
	case "int8_t":
		b[0] = byte(int8(v))
	case "uint8_t", "bool", "char":
		b[0] = byte(uint8(v))
	case "int16_t":
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case "uint16_t":
		binary.LittleEndian.PutUint16(b, uint16(v))
	case "int32_t":
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	case "uint32_t":
		binary.LittleEndian.PutUint32(b, uint32(v))
	case "int64_t":
		binary.LittleEndian.PutUint64(b, uint64(int64(v)))
	case "uint64_t":
		binary.LittleEndian.PutUint64(b, uint64(v))
	case "float":
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case "double":
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	default:
		panic("ulogtest: unknown type " + typ)
	}
	return b
}
