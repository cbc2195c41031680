package edt

import (
	"math/big"

	"github.com/golangsnmp/godts/dt"
)

// addressCells returns the #address-cells that applies to node's 'reg',
// which is set on its parent. Defaults to 2.
func addressCells(node *dt.Node) (int, error) {
	return inheritedCells(node, "#address-cells", 2)
}

// sizeCells returns the #size-cells that applies to node's 'reg'.
// Defaults to 1.
func sizeCells(node *dt.Node) (int, error) {
	return inheritedCells(node, "#size-cells", 1)
}

func inheritedCells(node *dt.Node, name string, def int) (int, error) {
	parent := node.Parent()
	if parent == nil {
		return def, nil
	}
	prop, ok := parent.Property(name)
	if !ok {
		return def, nil
	}
	n, err := prop.ToNum()
	return int(n), err
}

// ownCells returns the value of the #<kind>-cells property on node itself.
func ownCells(node *dt.Node, name string) (int, error) {
	prop, ok := node.Property(name)
	if !ok {
		return 0, errorf(node, "lacks %s", name)
	}
	n, err := prop.ToNum()
	return int(n), err
}

// translate maps addr, an address in node's parent bus, to the root
// address space by following 'ranges' up the tree. addr is not modified.
func translate(addr *big.Int, node *dt.Node) (*big.Int, error) {
	parent := node.Parent()
	if parent == nil {
		return addr, nil
	}
	ranges, ok := parent.Property("ranges")
	if !ok {
		// No translation
		return addr, nil
	}
	if len(ranges.Value) == 0 {
		// Identity mapping
		return translate(addr, parent)
	}

	childAddrCells, err := addressCells(node)
	if err != nil {
		return nil, err
	}
	parentAddrCells, err := addressCells(parent)
	if err != nil {
		return nil, err
	}
	childSizeCells, err := sizeCells(node)
	if err != nil {
		return nil, err
	}

	entries, err := slice(ranges, 4*(childAddrCells+parentAddrCells+childSizeCells))
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		childAddr := dt.ToBigNum(entry[:4*childAddrCells])
		parentAddr := dt.ToBigNum(entry[4*childAddrCells : 4*(childAddrCells+parentAddrCells)])
		childLen := dt.ToBigNum(entry[4*(childAddrCells+parentAddrCells):])

		end := new(big.Int).Add(childAddr, childLen)
		if childAddr.Cmp(addr) <= 0 && addr.Cmp(end) <= 0 {
			offset := new(big.Int).Sub(addr, childAddr)
			return translate(offset.Add(offset, parentAddr), parent)
		}
	}

	// Outside every window
	return addr, nil
}

// slice splits a property value into size-byte chunks.
func slice(prop *dt.Property, size int) ([][]byte, error) {
	raw := prop.Value
	if size <= 0 || len(raw)%size != 0 {
		return nil, errorf(prop.Node(), "'%s' property has length %d, which is not evenly divisible by %d",
			prop.Name, len(raw), size)
	}
	chunks := make([][]byte, 0, len(raw)/size)
	for i := 0; i < len(raw); i += size {
		chunks = append(chunks, raw[i:i+size])
	}
	return chunks, nil
}

// parseUnitAddr parses the hex unit address of node. It returns nil if
// the name has no '@'.
func parseUnitAddr(node *dt.Node) (*big.Int, error) {
	s := node.UnitAddr()
	if s == "" {
		return nil, nil
	}
	addr, ok := new(big.Int).SetString(s, 16)
	if !ok || s[0] == '+' || s[0] == '-' {
		return nil, errorf(node, "non-hex unit address '%s'", s)
	}
	return addr, nil
}

// rawUnitAddr returns node's unit address encoded in #address-cells cells,
// or nil if it has none.
func rawUnitAddr(node *dt.Node) ([]byte, error) {
	addr, err := parseUnitAddr(node)
	if err != nil || addr == nil {
		return nil, err
	}
	cells, err := addressCells(node)
	if err != nil {
		return nil, err
	}
	if addr.BitLen() > 32*cells {
		return nil, errorf(node, "unit address 0x%x does not fit in %d address cells", addr, cells)
	}
	return addr.FillBytes(make([]byte, 4*cells)), nil
}

// andBytes returns a AND b, padding the shorter one with 0xFF on the left.
func andBytes(a, b []byte) []byte {
	n := max(len(a), len(b))
	a, b = padLeft(a, n, 0xFF), padLeft(b, n, 0xFF)
	res := make([]byte, n)
	for i := range res {
		res[i] = a[i] & b[i]
	}
	return res
}

// orBytes returns a OR b, padding the shorter one with zeros on the left.
func orBytes(a, b []byte) []byte {
	n := max(len(a), len(b))
	a, b = padLeft(a, n, 0), padLeft(b, n, 0)
	res := make([]byte, n)
	for i := range res {
		res[i] = a[i] | b[i]
	}
	return res
}

func notBytes(b []byte) []byte {
	res := make([]byte, len(b))
	for i, x := range b {
		res[i] = ^x
	}
	return res
}

func padLeft(b []byte, n int, pad byte) []byte {
	if len(b) >= n {
		return b
	}
	res := make([]byte, n)
	for i := range n - len(b) {
		res[i] = pad
	}
	copy(res[n-len(b):], b)
	return res
}
