package dt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"unicode/utf8"
)

// ToNum interprets data as a big-endian unsigned number. If length is
// positive, data must be exactly length bytes long. At most 8 bytes are
// supported.
func ToNum(data []byte, length int) (uint64, error) {
	if length > 0 && len(data) != length {
		return 0, &SemanticError{Msg: fmt.Sprintf("%q is %d bytes long, expected %d", data, len(data), length)}
	}
	if len(data) > 8 {
		return 0, &SemanticError{Msg: fmt.Sprintf("%q is %d bytes long, too long for a number", data, len(data))}
	}
	var buf [8]byte
	copy(buf[8-len(data):], data)
	return binary.BigEndian.Uint64(buf[:]), nil
}

// ToBigNum interprets data as a big-endian unsigned number of any length.
// Addresses with more than two cells need it.
func ToBigNum(data []byte) *big.Int {
	return new(big.Int).SetBytes(data)
}

// ToSignedNum is like ToNum but sign-extends the value.
func ToSignedNum(data []byte, length int) (int64, error) {
	u, err := ToNum(data, length)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 || len(data) == 8 {
		return int64(u), nil
	}
	shift := 64 - 8*len(data)
	return int64(u<<shift) >> shift, nil
}

// ToNums splits data into length-byte big-endian numbers.
func ToNums(data []byte, length int) ([]uint64, error) {
	if length < 1 {
		return nil, &SemanticError{Msg: fmt.Sprintf("'size' must be greater than zero, was %d", length)}
	}
	if len(data)%length != 0 {
		return nil, &SemanticError{Msg: fmt.Sprintf(
			"%q is %d bytes long, expected a length that's a multiple of %d", data, len(data), length)}
	}
	nums := make([]uint64, 0, len(data)/length)
	for i := 0; i < len(data); i += length {
		n, err := ToNum(data[i:i+length], length)
		if err != nil {
			return nil, err
		}
		nums = append(nums, n)
	}
	return nums, nil
}

// ToString interprets data as a single NUL-terminated string.
func ToString(data []byte) (string, error) {
	strs, err := ToStrings(data)
	if err != nil {
		return "", err
	}
	if len(strs) != 1 {
		return "", &SemanticError{Msg: fmt.Sprintf("%q contains more than one string", data)}
	}
	return strs[0], nil
}

// ToStrings interprets data as a list of NUL-terminated strings.
func ToStrings(data []byte) ([]string, error) {
	if !utf8.Valid(data) {
		return nil, &SemanticError{Msg: fmt.Sprintf("%q is not valid UTF-8", data)}
	}
	if !bytes.HasSuffix(data, []byte{0}) {
		return nil, &SemanticError{Msg: fmt.Sprintf("%q is not null-terminated", data)}
	}
	parts := bytes.Split(data[:len(data)-1], []byte{0})
	strs := make([]string, len(parts))
	for i, part := range parts {
		strs[i] = string(part)
	}
	return strs, nil
}

// ToNum returns the value as a single 32-bit cell.
func (p *Property) ToNum() (uint32, error) {
	n, err := ToNum(p.Value, 4)
	if err != nil {
		return 0, p.wrap(err)
	}
	return uint32(n), nil
}

// ToNums returns the value as a list of 32-bit cells.
func (p *Property) ToNums() ([]uint32, error) {
	nums, err := ToNums(p.Value, 4)
	if err != nil {
		return nil, p.wrap(err)
	}
	cells := make([]uint32, len(nums))
	for i, n := range nums {
		cells[i] = uint32(n)
	}
	return cells, nil
}

// ToSignedNum returns the value as a single signed 32-bit cell.
func (p *Property) ToSignedNum() (int32, error) {
	n, err := p.ToNum()
	return int32(n), err
}

// ToSignedNums returns the value as a list of signed 32-bit cells.
func (p *Property) ToSignedNums() ([]int32, error) {
	cells, err := p.ToNums()
	if err != nil {
		return nil, err
	}
	nums := make([]int32, len(cells))
	for i, c := range cells {
		nums[i] = int32(c)
	}
	return nums, nil
}

// ToString returns the value as a single string.
func (p *Property) ToString() (string, error) {
	s, err := ToString(p.Value)
	if err != nil {
		return "", p.wrap(err)
	}
	return s, nil
}

// ToStrings returns the value as a list of strings.
func (p *Property) ToStrings() ([]string, error) {
	strs, err := ToStrings(p.Value)
	if err != nil {
		return nil, p.wrap(err)
	}
	return strs, nil
}

// ToNode interprets the value as a phandle and returns the node it refers
// to.
func (p *Property) ToNode() (*Node, error) {
	phandle, err := p.ToNum()
	if err != nil {
		return nil, err
	}
	node, ok := p.node.tree.PhandleToNode[phandle]
	if !ok {
		return nil, p.wrap(&SemanticError{Msg: fmt.Sprintf("non-existent phandle %d", phandle)})
	}
	return node, nil
}

func (p *Property) wrap(err error) error {
	return &SemanticError{Path: p.node.Path(), Prop: p.Name, Msg: errorMsg(err)}
}
