// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badgerstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// Key layout. IDs are zero-padded so keys sort numerically.
//
//	ref                          -> reference node ID
//	seq/node, seq/edge           -> badger sequences
//	n/<node>                     -> node marker
//	p/<node>/<key>               -> gob(propValue)
//	e/<edge>                     -> gob(edgeRecord)
//	a/<node>/<o|i>/<type>/<edge> -> adjacency marker
//	v/<node>                     -> adjacency version
const (
	refKey     = "ref"
	nodeSeqKey = "seq/node"
	edgeSeqKey = "seq/edge"
)

func nodeKey(id graphstore.NodeID) []byte {
	return []byte(fmt.Sprintf("n/%016d", uint64(id)))
}

func propPrefix(id graphstore.NodeID) []byte {
	return []byte(fmt.Sprintf("p/%016d/", uint64(id)))
}

func propKey(id graphstore.NodeID, key string) []byte {
	return append(propPrefix(id), key...)
}

func edgeKey(id graphstore.EdgeID) []byte {
	return []byte(fmt.Sprintf("e/%016d", uint64(id)))
}

func versionKey(id graphstore.NodeID) []byte {
	return []byte(fmt.Sprintf("v/%016d", uint64(id)))
}

// dirTag is the adjacency key segment for one side of an edge.
func dirTag(outgoing bool) string {
	if outgoing {
		return "o"
	}
	return "i"
}

// adjPrefix selects a node's adjacency entries on one side, optionally
// narrowed to one edge type.
func adjPrefix(id graphstore.NodeID, outgoing bool, typ graphstore.EdgeType) []byte {
	if typ == "" {
		return []byte(fmt.Sprintf("a/%016d/%s/", uint64(id), dirTag(outgoing)))
	}
	return []byte(fmt.Sprintf("a/%016d/%s/%s/", uint64(id), dirTag(outgoing), typ))
}

func adjKey(id graphstore.NodeID, outgoing bool, typ graphstore.EdgeType, edge graphstore.EdgeID) []byte {
	return []byte(fmt.Sprintf("a/%016d/%s/%s/%016d", uint64(id), dirTag(outgoing), typ, uint64(edge)))
}

// parseAdjEdge extracts the edge ID from an adjacency key.
func parseAdjEdge(key []byte) (graphstore.EdgeID, error) {
	s := string(key)
	i := strings.LastIndexByte(s, '/')
	if i < 0 {
		return 0, fmt.Errorf("malformed adjacency key %q", s)
	}
	id, err := strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed adjacency key %q: %w", s, err)
	}
	return graphstore.EdgeID(id), nil
}

// edgeRecord is the stored form of an edge.
type edgeRecord struct {
	Type graphstore.EdgeType
	From graphstore.NodeID
	To   graphstore.NodeID
}

// propValue is the stored form of a property. Exactly one field is set,
// selected by Kind.
type propValue struct {
	Kind byte
	S    string
	I    int64
}

const (
	kindString byte = 's'
	kindInt64  byte = 'i'
)

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}
	return nil
}

func encodeValue(v any) ([]byte, error) {
	switch x := v.(type) {
	case string:
		return encodeGob(propValue{Kind: kindString, S: x})
	case int64:
		return encodeGob(propValue{Kind: kindInt64, I: x})
	default:
		return nil, graphstore.ValidateValue(v)
	}
}

func decodeValue(data []byte) (any, error) {
	var pv propValue
	if err := decodeGob(data, &pv); err != nil {
		return nil, err
	}
	switch pv.Kind {
	case kindString:
		return pv.S, nil
	case kindInt64:
		return pv.I, nil
	default:
		return nil, fmt.Errorf("unknown property kind %q", pv.Kind)
	}
}

func encodeUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func decodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("expected 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
