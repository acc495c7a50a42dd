// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ulog

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// magic is the 7-byte ULog file signature followed by a version byte and a
// uint64 start timestamp (16 bytes of header total).
const magic = "ULog\x01\x12\x35"

const headerSize = 16

// Message types from the ULog spec. Types not listed here are walked and
// ignored (info, parameters, logged strings, sync, dropouts).
const (
	msgFormat    = 'F'
	msgAddLogged = 'A'
	msgData      = 'D'
)

// maxNestingDepth bounds recursive format flattening. Real flight stacks
// nest one or two levels; anything deeper is treated as malformed.
const maxNestingDepth = 8

// basicSizes maps ULog basic type names to their encoded width in bytes.
var basicSizes = map[string]int{
	"int8_t": 1, "uint8_t": 1, "bool": 1, "char": 1,
	"int16_t": 2, "uint16_t": 2,
	"int32_t": 4, "uint32_t": 4, "float": 4,
	"int64_t": 8, "uint64_t": 8, "double": 8,
}

// fieldDef is one declared field of a format: a basic or nested type with an
// optional fixed array length.
type fieldDef struct {
	typ      string
	name     string
	arrayLen int // 1 for scalars
}

// cell is one flattened scalar slot inside a data message. Cells with
// emit=false (padding, char arrays) are sized and skipped.
type cell struct {
	name string
	typ  string
	emit bool
}

// subscription ties a logged message ID to its channel and decoded layout.
type subscription struct {
	channel *Channel
	layout  []cell
	size    int
}

// Decode parses a complete ULog byte stream into a DecodedLog.
//
// Inputs:
//   - data: The raw container bytes, typically fetched from a log source.
//
// Outputs:
//   - *DecodedLog: Topic map with per-instance channels.
//   - error: *DecodeError when the header is malformed or no topic carries
//     a subscription. A truncated trailing message is not an error.
func Decode(data []byte) (*DecodedLog, error) {
	if len(data) < headerSize {
		return nil, &DecodeError{Reason: "stream shorter than ULog header"}
	}
	if string(data[:len(magic)]) != magic {
		return nil, &DecodeError{Reason: "bad magic bytes, not a ULog container"}
	}

	formats := make(map[string][]fieldDef)
	subs := make(map[uint16]*subscription)
	topics := make(map[string][]*Channel)

	off := headerSize
	for off+3 <= len(data) {
		size := int(binary.LittleEndian.Uint16(data[off : off+2]))
		typ := data[off+2]
		off += 3
		if off+size > len(data) {
			// Truncated final message: logs cut by power loss end this way.
			break
		}
		payload := data[off : off+size]
		off += size

		switch typ {
		case msgFormat:
			name, defs, err := parseFormat(string(payload))
			if err != nil {
				return nil, &DecodeError{Reason: "invalid format definition", Err: err}
			}
			formats[name] = defs

		case msgAddLogged:
			if len(payload) < 3 {
				return nil, &DecodeError{Reason: "short subscription message"}
			}
			multiID := payload[0]
			msgID := binary.LittleEndian.Uint16(payload[1:3])
			topic := string(payload[3:])
			layout, ok := flatten(formats, topic, "", 0)
			if !ok {
				// Unresolvable nested type: drop this subscription, the
				// rest of the log is still usable.
				continue
			}
			ch := &Channel{
				Name:    topic,
				MultiID: multiID,
				Fields:  make(map[string][]float64),
			}
			for _, c := range layout {
				if c.emit {
					ch.Fields[c.name] = nil
				}
			}
			sub := &subscription{channel: ch, layout: layout}
			for _, c := range layout {
				sub.size += basicSizes[c.typ]
			}
			subs[msgID] = sub
			topics[topic] = append(topics[topic], ch)

		case msgData:
			if len(payload) < 2 {
				continue
			}
			msgID := binary.LittleEndian.Uint16(payload[:2])
			sub, ok := subs[msgID]
			if !ok {
				continue
			}
			body := payload[2:]
			if len(body) < sub.size {
				// Partial sample, usually the very last message.
				continue
			}
			pos := 0
			for _, c := range sub.layout {
				width := basicSizes[c.typ]
				if c.emit {
					v := decodeScalar(body[pos:pos+width], c.typ)
					sub.channel.Fields[c.name] = append(sub.channel.Fields[c.name], v)
				}
				pos += width
			}
		}
	}

	if len(topics) == 0 {
		return nil, &DecodeError{Reason: "container yields zero data topics"}
	}
	return &DecodedLog{topics: topics}, nil
}

// DecodeReader drains r and decodes it. Convenience for callers holding a
// byte stream handle from a log source.
func DecodeReader(r io.Reader) (*DecodedLog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &DecodeError{Reason: "reading stream", Err: err}
	}
	return Decode(data)
}

// parseFormat splits "name:type0 field0;type1 field1;" into field defs.
func parseFormat(s string) (string, []fieldDef, error) {
	name, rest, ok := strings.Cut(s, ":")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("missing ':' separator in %q", s)
	}
	var defs []fieldDef
	for _, part := range strings.Split(rest, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		typeSpec, fieldName, ok := strings.Cut(part, " ")
		if !ok {
			return "", nil, fmt.Errorf("malformed field %q", part)
		}
		def := fieldDef{typ: typeSpec, name: fieldName, arrayLen: 1}
		if open := strings.IndexByte(typeSpec, '['); open >= 0 {
			end := strings.IndexByte(typeSpec, ']')
			if end < open {
				return "", nil, fmt.Errorf("malformed array type %q", typeSpec)
			}
			n, err := strconv.Atoi(typeSpec[open+1 : end])
			if err != nil || n <= 0 {
				return "", nil, fmt.Errorf("malformed array length in %q", typeSpec)
			}
			def.typ = typeSpec[:open]
			def.arrayLen = n
		}
		defs = append(defs, def)
	}
	return name, defs, nil
}

// flatten expands a format into a flat cell layout, resolving nested formats
// recursively. Returns ok=false when a referenced type is unknown or nesting
// exceeds maxNestingDepth.
func flatten(formats map[string][]fieldDef, format, prefix string, depth int) ([]cell, bool) {
	if depth > maxNestingDepth {
		return nil, false
	}
	defs, ok := formats[format]
	if !ok {
		return nil, false
	}
	var out []cell
	for _, def := range defs {
		emit := !strings.HasPrefix(def.name, "_padding") && def.typ != "char"
		name := def.name
		if prefix != "" {
			name = prefix + "." + def.name
		}
		if _, basic := basicSizes[def.typ]; basic {
			if def.arrayLen == 1 {
				out = append(out, cell{name: name, typ: def.typ, emit: emit})
				continue
			}
			for i := 0; i < def.arrayLen; i++ {
				out = append(out, cell{
					name: fmt.Sprintf("%s[%d]", name, i),
					typ:  def.typ,
					emit: emit,
				})
			}
			continue
		}
		// Nested format type.
		for i := 0; i < def.arrayLen; i++ {
			elem := name
			if def.arrayLen > 1 {
				elem = fmt.Sprintf("%s[%d]", name, i)
			}
			nested, ok := flatten(formats, def.typ, elem, depth+1)
			if !ok {
				return nil, false
			}
			out = append(out, nested...)
		}
	}
	return out, true
}

// decodeScalar widens one encoded basic value to float64.
func decodeScalar(b []byte, typ string) float64 {
	switch typ {
	case "int8_t":
		return float64(int8(b[0]))
	case "uint8_t", "bool", "char":
		return float64(b[0])
	case "int16_t":
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case "uint16_t":
		return float64(binary.LittleEndian.Uint16(b))
	case "int32_t":
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case "uint32_t":
		return float64(binary.LittleEndian.Uint32(b))
	case "int64_t":
		return float64(int64(binary.LittleEndian.Uint64(b)))
	case "uint64_t":
		return float64(binary.LittleEndian.Uint64(b))
	case "float":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case "double":
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		return 0
	}
}
