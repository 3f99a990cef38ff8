// Binary encoding of a Table for the Core -> Codegen interface (§6):
// header { magic, version, exact_count, tree_root_offset }, sorted
// (u64 hash, u32 impl_index) pairs, then the decision tree as a preorder
// flat encoding. Little-endian throughout.
package dispatchtable

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/janus-lang/dispatch/pkg/types"
)

const tableMagic uint32 = 0x4A544142 // "JTAB"
const tableVersion uint16 = 1

// Encode serializes t into the binary layout described by §6.
func Encode(t *Table) []byte {
	var buf bytes.Buffer

	var treeBuf bytes.Buffer
	encodeTree(&treeBuf, t.DecisionTree)

	header := struct {
		Magic           uint32
		Version         uint16
		_pad            uint16
		ExactCount      uint32
		TreeRootOffset  uint32
	}{
		Magic:          tableMagic,
		Version:        tableVersion,
		ExactCount:     uint32(len(t.ExactMatches)),
		TreeRootOffset: uint32(16 + len(t.ExactMatches)*12),
	}
	binary.Write(&buf, binary.LittleEndian, header.Magic)
	binary.Write(&buf, binary.LittleEndian, header.Version)
	binary.Write(&buf, binary.LittleEndian, header._pad)
	binary.Write(&buf, binary.LittleEndian, header.ExactCount)
	binary.Write(&buf, binary.LittleEndian, header.TreeRootOffset)

	for _, e := range t.ExactMatches {
		binary.Write(&buf, binary.LittleEndian, e.ArgTupleHash)
		binary.Write(&buf, binary.LittleEndian, int32(e.Impl))
	}

	buf.Write(treeBuf.Bytes())

	return buf.Bytes()
}

func encodeTree(buf *bytes.Buffer, node *DecisionNode) {
	if node == nil {
		// An absent subtree is flagged by a leading zero byte; present
		// nodes always lead with a 1, so decode never confuses a real
		// leaf (param_index 0, no children) with "no subtree here".
		binary.Write(buf, binary.LittleEndian, uint8(0))
		return
	}
	binary.Write(buf, binary.LittleEndian, uint8(1))

	binary.Write(buf, binary.LittleEndian, uint8(node.ParamIndex))
	binary.Write(buf, binary.LittleEndian, uint32(0)) // type_id slot, always 0: each child's TypeId is written as its branch key below
	binary.Write(buf, binary.LittleEndian, int32(node.ExactImpl))
	binary.Write(buf, binary.LittleEndian, int32(node.FallbackImpl))
	binary.Write(buf, binary.LittleEndian, uint16(len(node.Branches)))

	// Deterministic child order: sort by TypeId so encoding is
	// byte-for-byte reproducible across runs (§8 idempotence property).
	keys := make([]types.TypeId, 0, len(node.Branches))
	for k := range node.Branches {
		keys = append(keys, k)
	}
	sortTypeIds(keys)

	for _, k := range keys {
		binary.Write(buf, binary.LittleEndian, uint32(k))
		encodeTree(buf, node.Branches[k])
	}
}

func sortTypeIds(ids []types.TypeId) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// Decode parses the binary layout produced by Encode. The returned Table
// has no Pool: callers must supply the implementation pool separately
// (the binary format stores only indices, per §9 "Dynamic dispatch over
// polymorphic tables").
func Decode(data []byte) (*Table, error) {
	r := bytes.NewReader(data)

	var magic uint32
	var version uint16
	var pad uint16
	var exactCount uint32
	var treeOffset uint32

	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("dispatchtable: reading magic: %w", err)
	}
	if magic != tableMagic {
		return nil, fmt.Errorf("dispatchtable: bad magic %x", magic)
	}
	binary.Read(r, binary.LittleEndian, &version)
	binary.Read(r, binary.LittleEndian, &pad)
	binary.Read(r, binary.LittleEndian, &exactCount)
	binary.Read(r, binary.LittleEndian, &treeOffset)

	exact := make([]ExactEntry, exactCount)
	for i := range exact {
		var hash uint64
		var idx int32
		binary.Read(r, binary.LittleEndian, &hash)
		binary.Read(r, binary.LittleEndian, &idx)
		exact[i] = ExactEntry{ArgTupleHash: hash, Impl: ImplRef(idx)}
	}

	tree, err := decodeTree(r)
	if err != nil {
		return nil, fmt.Errorf("dispatchtable: decoding tree: %w", err)
	}

	return &Table{
		ExactMatches: exact,
		DecisionTree: tree,
	}, nil
}

func decodeTree(r *bytes.Reader) (*DecisionNode, error) {
	var present uint8
	if err := binary.Read(r, binary.LittleEndian, &present); err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}

	var paramIndex uint8
	var selfType uint32
	var exactImpl, fallbackImpl int32
	var childCount uint16

	if err := binary.Read(r, binary.LittleEndian, &paramIndex); err != nil {
		return nil, err
	}
	binary.Read(r, binary.LittleEndian, &selfType)
	binary.Read(r, binary.LittleEndian, &exactImpl)
	binary.Read(r, binary.LittleEndian, &fallbackImpl)
	binary.Read(r, binary.LittleEndian, &childCount)

	node := &DecisionNode{
		ParamIndex:   uint32(paramIndex),
		Branches:     make(map[types.TypeId]*DecisionNode, childCount),
		ExactImpl:    ImplRef(exactImpl),
		FallbackImpl: ImplRef(fallbackImpl),
	}

	for i := uint16(0); i < childCount; i++ {
		var key uint32
		if err := binary.Read(r, binary.LittleEndian, &key); err != nil {
			return nil, err
		}
		child, err := decodeTree(r)
		if err != nil {
			return nil, err
		}
		node.Branches[types.TypeId(key)] = child
	}

	return node, nil
}
