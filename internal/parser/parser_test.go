package parser

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golangsnmp/godts/dt"
	"github.com/golangsnmp/godts/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseTree parses and finalizes source, which is dedented first so
// fixtures can be indented with the test code.
func parseTree(t *testing.T, source string) (*dt.Tree, error) {
	t.Helper()
	tree, err := New("test.dts", []byte(testutil.Dedent(source)), nil, nil).Parse()
	if err != nil {
		return nil, err
	}
	if err := tree.Finalize(nil); err != nil {
		return nil, err
	}
	return tree, nil
}

func requireParse(t *testing.T, source, want string) *dt.Tree {
	t.Helper()
	tree, err := parseTree(t, source)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(testutil.Dedent(want)), tree.String())
	return tree
}

func requireError(t *testing.T, source, want string) {
	t.Helper()
	_, err := parseTree(t, source)
	require.Error(t, err)
	assert.Equal(t, want, err.Error())
}

func TestParseValues(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name: "cells",
			source: `
			/dts-v1/;
			/ {
				a;
				b = < >;
				c = < 10 20 30 >;
				d = < 0x10 010 10U 0x1ULL >;
				e = < (-1) >;
				f = < 'a' '\n' >;
			};`,
			want: `
			/dts-v1/;

			/ {
				a;
				b;
				c = [ 00 00 00 0A 00 00 00 14 00 00 00 1E ];
				d = [ 00 00 00 10 00 00 00 08 00 00 00 0A 00 00 00 01 ];
				e = [ FF FF FF FF ];
				f = [ 00 00 00 61 00 00 00 0A ];
			};`,
		},
		{
			name: "bits",
			source: `
			/dts-v1/;
			/ {
				a = /bits/ 8 < 0x01 0xFF >;
				b = /bits/ 16 < 0x1234 >;
				c = /bits/ 64 < 0x1 >;
				d = /bits/ 8 < (-128) (-1) >;
				e = /bits/ 64 < 0xFFFFFFFFFFFFFFFF >;
			};`,
			want: `
			/dts-v1/;

			/ {
				a = [ 01 FF ];
				b = [ 12 34 ];
				c = [ 00 00 00 00 00 00 00 01 ];
				d = [ 80 FF ];
				e = [ FF FF FF FF FF FF FF FF ];
			};`,
		},
		{
			name: "strings",
			source: `
			/dts-v1/;
			/ {
				a = "";
				b = "ABC";
				c = "\\\"\xAB\377\a\b\t\n\v\f\r";
				d = "foo", "bar";
				e = 'x';
			};`,
			want: `
			/dts-v1/;

			/ {
				a = [ 00 ];
				b = [ 41 42 43 00 ];
				c = [ 5C 22 AB FF 07 08 09 0A 0B 0C 0D 00 ];
				d = [ 66 6F 6F 00 62 61 72 00 ];
				e = [ 78 ];
			};`,
		},
		{
			name: "bytes",
			source: `
			/dts-v1/;
			/ {
				a = [ ];
				b = [ 12 34 ];
				c = [ 1234 ];
				d = [ aBcD ];
			};`,
			want: `
			/dts-v1/;

			/ {
				a;
				b = [ 12 34 ];
				c = [ 12 34 ];
				d = [ AB CD ];
			};`,
		},
		{
			name: "mixed",
			source: `
			/dts-v1/;
			/ {
				x = /bits/ 8 < 0xFF >, "A", [ 01 ], < 2 >;
			};`,
			want: `
			/dts-v1/;

			/ {
				x = [ FF 41 00 01 00 00 00 02 ];
			};`,
		},
		{
			name: "reassignment",
			source: `
			/dts-v1/;
			/ {
				x = < 1 >, "long value";
				x = [ 02 ];
			};`,
			want: `
			/dts-v1/;

			/ {
				x = [ 02 ];
			};`,
		},
		{
			name: "path references",
			source: `
			/dts-v1/;
			/ {
				a = &label;
				b = [ 01 ], &label;
				c = [ 04 ], &{/abc};
				label: abc {
				};
			};`,
			want: `
			/dts-v1/;

			/ {
				a = [ 2F 61 62 63 00 ];
				b = [ 01 2F 61 62 63 00 ];
				c = [ 04 2F 61 62 63 00 ];
				label: abc {
				};
			};`,
		},
		{
			name: "comments",
			source: `
			/**//dts-v1//**/;//
			//
			// foo
			/ /**/{// foo
			x/**/=/*
			foo
			*/</**/1/***/>/****/;/**/}/*/**/;`,
			want: `
			/dts-v1/;

			/ {
				x = [ 00 00 00 01 ];
			};`,
		},
		{
			name:   "compact formatting",
			source: `/dts-v1/;/{l1:l2:foo{l3:l4:bar{l5:x=l6:/bits/8<l7:1 l8:2>l9:,[03],"a";};};};`,
			want: `
			/dts-v1/;

			/ {
				l1: l2: foo {
					l3: l4: bar {
						l5: x = [ l6: l7: 01 l8: 02 l9: 03 61 00 ];
					};
				};
			};`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireParse(t, tt.source, tt.want)
		})
	}
}

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		expr string
		want uint32
	}{
		{"(1 + 2)", 3},
		{"(7 - 10)", 0xFFFFFFFD},
		{"(2 * 3 + 4)", 10},
		{"(2 + 3 * 4)", 14},
		{"((2 + 3) * 4)", 20},
		{"(7 / 2)", 3},
		{"(-7 / 2)", 0xFFFFFFFC},
		{"(7 % 3)", 1},
		{"(-7 % 2)", 1},
		{"(1 << 4)", 16},
		{"(256 >> 4)", 16},
		{"(1 << 32 >> 30)", 4},
		{"(5 & 3)", 1},
		{"(5 | 3)", 7},
		{"(5 ^ 3)", 6},
		{"(1 | 2 ^ 3 & 4)", 3},
		{"(~0)", 0xFFFFFFFF},
		{"(!0)", 1},
		{"(!5)", 0},
		{"(-(-1))", 1},
		{"(1 < 2)", 1},
		{"(2 <= 1)", 0},
		{"(3 > 2)", 1},
		{"(2 >= 3)", 0},
		{"(1 == 1)", 1},
		{"(1 != 1)", 0},
		{"(1 && 0)", 0},
		{"(0 || 2)", 1},
		{"(1 ? 10 : 20)", 10},
		{"(0 ? 10 : 20)", 20},
		{"(0 ? 1 : 0 ? 2 : 3)", 3},
		{"(0 ? 1 : 1 ? 2 : 3)", 2},
		{"(1 ? 1 : 0 ? 2 : 3)", 1},
		{"('a' + 1)", 0x62},
		{"(2 + 2 == 4)", 1},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			tree, err := parseTree(t, "/dts-v1/;\n/ {\n\tx = < "+tt.expr+" >;\n};\n")
			require.NoError(t, err)
			prop, ok := tree.Root().Property("x")
			require.True(t, ok)
			got, err := prop.ToNum()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeCell(t *testing.T) {
	tests := []struct {
		num     int64
		bits    int
		want    []byte
		wantErr string
	}{
		{num: 255, bits: 8, want: []byte{0xFF}},
		{num: -1, bits: 8, want: []byte{0xFF}},
		{num: -128, bits: 8, want: []byte{0x80}},
		{num: 256, bits: 8, wantErr: "256 does not fit in 8 bits"},
		{num: -129, bits: 8, wantErr: "-129 does not fit in 8 bits"},
		{num: 0x1234, bits: 16, want: []byte{0x12, 0x34}},
		{num: -2, bits: 32, want: []byte{0xFF, 0xFF, 0xFF, 0xFE}},
		{num: -1, bits: 64, want: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		got, err := encodeCell(big.NewInt(tt.num), tt.bits)
		if tt.wantErr != "" {
			assert.EqualError(t, err, tt.wantErr)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%d in %d bits", tt.num, tt.bits)
	}
}

func TestParseNodeMerging(t *testing.T) {
	requireParse(t, `
		/dts-v1/;

		/ {
			l1: l2: l1: foo {
				foo1 = [ 01 ];
				l4: l5: bar {
					bar1 = [ 01 ];
				};
			};
		};

		l3: &l1 {
			foo2 = [ 02 ];
			l6: l7: bar {
				bar2 = [ 02 ];
			};
		};

		&l3 {
			foo3 = [ 03 ];
		};

		&{/foo} {
			foo4 = [ 04 ];
		};

		&{/foo/bar} {
			bar3 = [ 03 ];
			l8: baz {};
		};

		/ {
		};

		/ {
			top = [ 01 ];
		};`, `
		/dts-v1/;

		/ {
			top = [ 01 ];
			l1: l2: l3: foo {
				foo1 = [ 01 ];
				foo2 = [ 02 ];
				foo3 = [ 03 ];
				foo4 = [ 04 ];
				l4: l5: l6: l7: bar {
					bar1 = [ 01 ];
					bar2 = [ 02 ];
					bar3 = [ 03 ];
					l8: baz {
					};
				};
			};
		};`)
}

func TestParsePropertyLabels(t *testing.T) {
	tree := requireParse(t, `
		/dts-v1/;

		/ {
			a: x1;
			b: c: x2 = [ 01 ];
			node {
				e: y = [ 01 ];
			};
		};

		/ {
			d: x2 = [ 02 ];
		};`, `
		/dts-v1/;

		/ {
			a: x1;
			b: c: d: x2 = [ 02 ];
			node {
				e: y = [ 01 ];
			};
		};`)

	for label, name := range map[string]string{"a": "x1", "b": "x2", "c": "x2", "d": "x2", "e": "y"} {
		prop, ok := tree.LabelToProp[label]
		require.True(t, ok, "label %s", label)
		assert.Equal(t, name, prop.Name, "label %s", label)
	}
	assert.Equal(t, "/node", tree.LabelToProp["e"].Node().Path())
}

func TestParseOffsetLabels(t *testing.T) {
	tree := requireParse(t, `
		/dts-v1/;

		/ {
			a = l01: l02: < l03: l04: &node l05: l06: 2 l07: l08: > l09: l10:,
			    l11: l12: [ l13: l14: 03 l15: l16: 04 l17: l18: ] l19: l20:,
			    l21: l22: "A";

			b = < 0 > l23: l24:;

			node: node {
			};
		};`, `
		/dts-v1/;

		/ {
			a = [ l01: l02: l03: l04: 00 00 00 01 l05: l06: 00 00 00 02 l07: l08: l09: l10: l11: l12: l13: l14: 03 l15: l16: 04 l17: l18: l19: l20: l21: l22: 41 00 ];
			b = [ 00 00 00 00 l23: l24: ];
			node: node {
				phandle = [ 00 00 00 01 ];
			};
		};`)

	tests := []struct {
		label  string
		prop   string
		offset int
	}{
		{"l01", "a", 0},
		{"l04", "a", 0},
		{"l05", "a", 4},
		{"l14", "a", 8},
		{"l15", "a", 9},
		{"l22", "a", 10},
		{"l23", "b", 4},
		{"l24", "b", 4},
	}
	for _, tt := range tests {
		loc, ok := tree.LabelToPropOffset[tt.label]
		require.True(t, ok, "label %s", tt.label)
		assert.Equal(t, tt.prop, loc.Prop.Name, "label %s", tt.label)
		assert.Equal(t, tt.offset, loc.Offset, "label %s", tt.label)
	}
}

func TestParsePhandles(t *testing.T) {
	t.Run("existing phandles are kept", func(t *testing.T) {
		requireParse(t, `
			/dts-v1/;

			/ {
				x = < &a &{/b} &c >;

				dummy1 {
					phandle = < 1 >;
				};

				dummy2 {
					phandle = < 3 >;
				};

				a: a {
				};

				b {
				};

				c: c {
					phandle = < 0xFF >;
				};
			};`, `
			/dts-v1/;

			/ {
				x = [ 00 00 00 02 00 00 00 04 00 00 00 FF ];
				dummy1 {
					phandle = [ 00 00 00 01 ];
				};
				dummy2 {
					phandle = [ 00 00 00 03 ];
				};
				a: a {
					phandle = [ 00 00 00 02 ];
				};
				b {
					phandle = [ 00 00 00 04 ];
				};
				c: c {
					phandle = [ 00 00 00 FF ];
				};
			};`)
	})

	t.Run("self reference", func(t *testing.T) {
		requireParse(t, `
			/dts-v1/;

			/ {
				dummy {
					phandle = < 1 >;
				};

				a {
					foo: phandle = < &{/a} >;
				};

				label: b {
					bar: phandle = < &label >;
				};
			};`, `
			/dts-v1/;

			/ {
				dummy {
					phandle = [ 00 00 00 01 ];
				};
				a {
					foo: phandle = [ 00 00 00 02 ];
				};
				label: b {
					bar: phandle = [ 00 00 00 03 ];
				};
			};`)
	})

	t.Run("self-referential node", func(t *testing.T) {
		requireParse(t, `
			/dts-v1/;

			/ {
				label: foo {
					x = &{/foo}, &label, < &label >;
				};
			};`, `
			/dts-v1/;

			/ {
				label: foo {
					x = [ 2F 66 6F 6F 00 2F 66 6F 6F 00 00 00 00 01 ];
					phandle = [ 00 00 00 01 ];
				};
			};`)
	})

	t.Run("phandle to node", func(t *testing.T) {
		tree, err := parseTree(t, `
			/dts-v1/;

			/ {
				phandle_ = < &{/node1} 0 1 >;
				phandles = < 0 &{/node2} 1 &{/node3} >;

				node1 {
					phandle = < 123 >;
				};

				node2 {
				};

				node3 {
				};
			};`)
		require.NoError(t, err)

		check := func(propName string, offset int, want string) {
			t.Helper()
			prop, ok := tree.Root().Property(propName)
			require.True(t, ok)
			phandle, err := dt.ToNum(prop.Value[offset:offset+4], 4)
			require.NoError(t, err)
			node, ok := tree.PhandleToNode[uint32(phandle)]
			require.True(t, ok, "phandle %d", phandle)
			assert.Equal(t, want, node.Name)
		}
		check("phandle_", 0, "node1")
		check("phandles", 4, "node2")
		check("phandles", 12, "node3")
	})
}

func TestParsePhandleErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name: "undefined label",
			source: `
			/dts-v1/;

			/ {
				sub {
					x = < &missing >;
				};
			};`,
			want: "/sub: undefined node label 'missing'",
		},
		{
			name: "non-32-bit array",
			source: `
			/dts-v1/;

			/ {
				a: sub {
					x = /bits/ 16 < &a >;
				};
			};`,
			want: "test.dts:5 (column 19): parse error: phandle references are only allowed in arrays with 32-bit elements",
		},
		{
			name: "bad length",
			source: `
			/dts-v1/;

			/ {
				foo {
					phandle = [ 00 ];
				};
			};`,
			want: "/foo: bad phandle length (1), expected 4 bytes",
		},
		{
			name: "zero",
			source: `
			/dts-v1/;

			/ {
				foo {
					phandle = < 0 >;
				};
			};`,
			want: "/foo: bad value 0x00000000 for phandle",
		},
		{
			name: "all ones",
			source: `
			/dts-v1/;

			/ {
				foo {
					phandle = < (-1) >;
				};
			};`,
			want: "/foo: bad value 0xffffffff for phandle",
		},
		{
			name: "duplicate",
			source: `
			/dts-v1/;

			/ {
				b {
					phandle = < 17 >;
				};

				a {
					phandle = < 17 >;
				};
			};`,
			want: "/b: duplicated phandle 0x11 (seen before at /a)",
		},
		{
			name: "refers to another node",
			source: `
			/dts-v1/;

			/ {
				foo {
					phandle = < &{/bar} >;
				};

				bar {
				};
			};`,
			want: "/foo: phandle refers to another node",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireError(t, tt.source, tt.want)
		})
	}
}

func TestParseDeletion(t *testing.T) {
	t.Run("properties", func(t *testing.T) {
		requireParse(t, `
			/dts-v1/;

			/ {
				keep = < 1 >;
				delete = < &sub >, &sub;
				/delete-property/ delete;
				/delete-property/ missing;
				sub: sub {
				};
			};`, `
			/dts-v1/;

			/ {
				keep = [ 00 00 00 01 ];
				sub: sub {
				};
			};`)
	})

	t.Run("nodes", func(t *testing.T) {
		requireParse(t, `
			/dts-v1/;

			/ {
				sub1 {
					x = < 1 >;
					sub2 {
						x = < &sub >, &sub;
					};
					/delete-node/ sub2;
				};

				sub3 {
					x = < &sub >, &sub;
				};

				sub4 {
				};

				/delete-node/ missing;
			};

			/delete-node/ &{/sub3};
			/delete-node/ &{/sub4};`, `
			/dts-v1/;

			/ {
				sub1 {
					x = [ 00 00 00 01 ];
				};
			};`)
	})

	t.Run("overridden references", func(t *testing.T) {
		requireParse(t, `
			/dts-v1/;

			/ {
				x = &foo, < &foo >;
				y = &foo, < &foo >;
				foo: foo {
				};
			};

			/ {
				x = < 1 >;
				/delete-property/ y;
			};`, `
			/dts-v1/;

			/ {
				x = [ 00 00 00 01 ];
				foo: foo {
				};
			};`)
	})

	t.Run("labels of deleted nodes", func(t *testing.T) {
		requireParse(t, `
			/dts-v1/;

			/ {
				label: foo {
				};
				label: bar {
				};
			};

			/delete-node/ &{/bar};`, `
			/dts-v1/;

			/ {
				label: foo {
				};
			};`)
	})
}

func TestParseOmitIfNoRef(t *testing.T) {
	requireParse(t, `
		/dts-v1/;

		/ {
			x = < &{/referenced} >, &referenced2;

			/omit-if-no-ref/ referenced {
			};

			referenced2: referenced2 {
			};

			/omit-if-no-ref/ unreferenced {
			};

			l1: /omit-if-no-ref/ unreferenced2 {
			};

			/omit-if-no-ref/ l2: unreferenced3 {
			};

			unreferenced4: unreferenced4 {
			};

			unreferenced5 {
			};
		};

		/omit-if-no-ref/ &referenced2;
		/omit-if-no-ref/ &unreferenced4;
		/omit-if-no-ref/ &{/unreferenced5};`, `
		/dts-v1/;

		/ {
			x = [ 00 00 00 01 2F 72 65 66 65 72 65 6E 63 65 64 32 00 ];
			referenced {
				phandle = [ 00 00 00 01 ];
			};
			referenced2: referenced2 {
			};
		};`)
}

func TestParseDuplicateLabels(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name: "two nodes",
			source: `
			/dts-v1/;

			/ {
				sub1 {
					label: foo {
					};
				};

				sub2 {
					label: bar {
					};
				};
			};`,
			want: "Label 'label' appears on /sub1/foo and on /sub2/bar",
		},
		{
			name: "two nodes across reopen",
			source: `
			/dts-v1/;

			/ {
				sub {
					label: foo {
					};
				};
			};
			/ {
				sub {
					label: bar {
					};
				};
			};`,
			want: "Label 'label' appears on /sub/bar and on /sub/foo",
		},
		{
			name: "node and property",
			source: `
			/dts-v1/;

			/ {
				foo: a = < 0 >;
				foo: node {
				};
			};`,
			want: "Label 'foo' appears on /node and on property 'a' of node /",
		},
		{
			name: "two properties",
			source: `
			/dts-v1/;

			/ {
				foo: a = < 0 >;
				node {
					foo: b = < 0 >;
				};
			};`,
			want: "Label 'foo' appears on property 'a' of node / and on property 'b' of node /node",
		},
		{
			name: "property and value",
			source: `
			/dts-v1/;

			/ {
				foo: a = foo: < 0 >;
			};`,
			want: "Label 'foo' appears in the value of property 'a' of node / and on property 'a' of node /",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireError(t, tt.source, tt.want)
		})
	}

	// The same label twice on one node is fine
	requireParse(t, `
		/dts-v1/;

		/ {
			sub {
				label: foo {
				};
			};
		};
		/ {
			sub {
				label: foo {
				};
			};
		};`, `
		/dts-v1/;

		/ {
			sub {
				label: foo {
				};
			};
		};`)
}

func TestParseAliases(t *testing.T) {
	tree, err := parseTree(t, `
		/dts-v1/;

		/ {
			aliases {
				alias1 = &l1;
				alias2 = &l2;
				alias3 = &{/sub/node3};
				alias4 = [2F 6E 6F 64 65 34 00]; // "/node4";
			};

			l1: node1 {
			};

			l2: node2 {
			};

			sub {
				node3 {
				};
			};

			node4 {
				node5 {
				};
			};
		};`)
	require.NoError(t, err)

	for path, want := range map[string]string{
		"alias1":       "/node1",
		"alias2":       "/node2",
		"alias3":       "/sub/node3",
		"alias4":       "/node4",
		"alias4/node5": "/node4/node5",
	} {
		node, err := tree.GetNode(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, node.Path(), path)
	}

	_, err = tree.GetNode("alias4/node5/node6")
	assert.EqualError(t, err, "component 3 ('node6') in path 'alias4/node5/node6' does not exist")

	node4, err := tree.GetNode("/node4")
	require.NoError(t, err)
	assert.Equal(t, []string{"alias4"}, tree.Aliases(node4))
}

func TestParseAliasErrors(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"bad name", `A = "/aliases";`,
			"/aliases: alias property name 'A' should include only characters from [0-9a-z-]"},
		{"invalid utf-8", `a = "\xFF";`,
			`"\xff\x00" is not valid UTF-8 (for property 'a' on /aliases)`},
		{"not null-terminated", `a = [ 41 ];`,
			`"A" is not null-terminated (for property 'a' on /aliases)`},
		{"bad path", `a = "/missing";`,
			"/aliases: bad path for 'a': component 1 ('missing') in path '/missing' does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireError(t, "/dts-v1/;\n/ {\n\taliases {\n\t\t"+tt.value+"\n\t};\n};\n", tt.want)
		})
	}
}

func TestParseGetNode(t *testing.T) {
	tree, err := parseTree(t, `
		/dts-v1/;

		/ {
			foo {
				bar {
				};
			};
		};`)
	require.NoError(t, err)

	for _, path := range []string{"/", "//", "///"} {
		node, err := tree.GetNode(path)
		require.NoError(t, err, path)
		assert.Equal(t, "/", node.Path(), path)
	}
	for _, path := range []string{"/foo", "/foo/", "//foo"} {
		node, err := tree.GetNode(path)
		require.NoError(t, err, path)
		assert.Equal(t, "/foo", node.Path(), path)
	}
	for _, path := range []string{"/foo/bar", "///foo///bar///"} {
		node, err := tree.GetNode(path)
		require.NoError(t, err, path)
		assert.Equal(t, "/foo/bar", node.Path(), path)
	}

	_, err = tree.GetNode("/missing")
	assert.EqualError(t, err, "component 1 ('missing') in path '/missing' does not exist")
	_, err = tree.GetNode("/foo/missing")
	assert.EqualError(t, err, "component 2 ('missing') in path '/foo/missing' does not exist")
	_, err = tree.GetNode("foo")
	assert.EqualError(t, err, "no alias 'foo' found -- did you forget the leading '/' in the node path?")

	assert.True(t, tree.HasNode("/foo/bar"))
	assert.False(t, tree.HasNode("/foo/baz"))
}

func TestParseMemreserve(t *testing.T) {
	tree := requireParse(t, `
		/dts-v1/;

		l1: l2: /memreserve/ (1 + 1) (2 * 2);
		/memreserve/ 0x100 0x200;

		/ {
		};`, `
		/dts-v1/;

		l1: l2: /memreserve/ 0x0000000000000002 0x0000000000000004;
		/memreserve/ 0x0000000000000100 0x0000000000000200;

		/ {
		};`)

	assert.Equal(t, []dt.Memreserve{
		{Labels: []string{"l1", "l2"}, Address: 2, Length: 4},
		{Address: 0x100, Length: 0x200},
	}, tree.Memreserves)
}

func TestParseNames(t *testing.T) {
	requireParse(t, `
		/dts-v1/;

		/ {
			// A leading \ is accepted but dropped
			\aA0,._+*#?- = &_, &{/aA0,._+*#?@-};

			// Names that look like operators
			+ = [ 00 ];
			* = [ 02 ];
			- = [ 01 ];
			? = [ 03 ];

			_: \aA0,._+*#?@- {
			};
		};`, `
		/dts-v1/;

		/ {
			aA0,._+*#?- = [ 2F 61 41 30 2C 2E 5F 2B 2A 23 3F 40 2D 00 2F 61 41 30 2C 2E 5F 2B 2A 23 3F 40 2D 00 ];
			+ = [ 00 ];
			* = [ 02 ];
			- = [ 01 ];
			? = [ 03 ];
			_: aA0,._+*#?@- {
			};
		};`)
}

func TestParseErrors(t *testing.T) {
	// body is placed inside the root node on line 3
	inRoot := func(body string) string {
		return "/dts-v1/;\n/ {\n" + body + "\n};\n"
	}

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"empty input", "",
			"test.dts:1 (column 1): parse error: expected /dts-v1/ -- other versions are not supported"},
		{"no root", "/dts-v1/;\n",
			"test.dts:2 (column 1): parse error: no root node defined"},
		{"plugin", "/dts-v1/; /plugin/;\n",
			"test.dts:1 (column 11): parse error: /plugin/ is not supported"},
		{"at in property name", inRoot("\tfoo@3;"),
			"test.dts:3 (column 7): parse error: '@' is only allowed in node names"},
		{"at in assigned property name", inRoot("\tfoo@3 = < 0 >;"),
			"test.dts:3 (column 8): parse error: '@' is only allowed in node names"},
		{"multiple at", inRoot("\tfoo@2@3 {\n\t};"),
			"test.dts:3 (column 10): parse error: multiple '@' in node name"},
		{"bits overflow", inRoot("\tx = /bits/ 8 < 256 >;"),
			"test.dts:3 (column 17): parse error: 256 does not fit in 8 bits"},
		{"cell overflow", inRoot("\tx = < 0x100000000 >;"),
			"test.dts:3 (column 8): parse error: 4294967296 does not fit in 32 bits"},
		{"bad bits", inRoot("\tx = /bits/ 128 < 0 >;"),
			"test.dts:3 (column 13): parse error: expected 8, 16, 32, or 64"},
		{"odd byte", inRoot("\tx = [ 123 ];"),
			"test.dts:3 (column 10): parse error: expected two-digit byte or ']'"},
		{"octal escape", inRoot("\tx = \"\\400\";"),
			"test.dts:3 (column 6): parse error: octal escape out of range (> 255)"},
		{"char literal length", inRoot("\tx = 'ab';"),
			"test.dts:3 (column 6): parse error: character literals must be length 1"},
		{"negative cell", inRoot("\tx = < -1 >;"),
			"test.dts:3 (column 8): parse error: expected number or parenthesized expression"},
		{"malformed value", inRoot("\tx = foo;"),
			"test.dts:3 (column 6): parse error: malformed value"},
		{"division by zero", inRoot("\tx = < (1/0) >;"),
			"test.dts:3 (column 11): parse error: division by zero"},
		{"nested division by zero", inRoot("\tx = < (1/(-1 + 1)) >;"),
			"test.dts:3 (column 18): parse error: division by zero"},
		{"modulo by zero", inRoot("\tx = < (1%0) >;"),
			"test.dts:3 (column 11): parse error: division by zero"},
		{"negative shift", inRoot("\tx = < (1 << (-1)) >;"),
			"test.dts:3 (column 18): parse error: negative shift count"},
		{"omit on assigned property", inRoot("\t/omit-if-no-ref/ x = \"\";"),
			"test.dts:3 (column 21): parse error: /omit-if-no-ref/ can only be used on nodes"},
		{"omit on property", inRoot("\t/omit-if-no-ref/ x;"),
			"test.dts:3 (column 20): parse error: /omit-if-no-ref/ can only be used on nodes"},
		{"omit without name", inRoot("\t/omit-if-no-ref/ {\n\t};"),
			"test.dts:3 (column 19): parse error: expected node or property name"},
		{"omit before assignment", inRoot("\t/omit-if-no-ref/ = < 0 >;"),
			"test.dts:3 (column 19): parse error: expected node or property name"},
		{"undefined reopen", "/dts-v1/;\n/ {\n};\n&missing {\n};\n",
			"test.dts:4 (column 1): parse error: undefined node label 'missing'"},
		{"relative reopen path", "/dts-v1/;\n/ {\n};\n&{foo} {\n};\n",
			"test.dts:4 (column 1): parse error: node path does not start with '/'"},
		{"missing reopen path", "/dts-v1/;\n/ {\n};\n&{/foo} {\n};\n",
			"test.dts:4 (column 1): parse error: component 1 ('foo') in path '/foo' does not exist"},
		{"delete undefined", "/dts-v1/;\n/ {\n};\n/delete-node/ &missing;\n",
			"test.dts:4 (column 15): parse error: undefined node label 'missing'"},
		{"omit undefined", "/dts-v1/;\n/ {\n};\n/omit-if-no-ref/ &missing;\n",
			"test.dts:4 (column 18): parse error: undefined node label 'missing'"},
		{"path reference to missing node", inRoot("\tx = &missing;"),
			"/: undefined node label 'missing'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireError(t, tt.source, tt.want)
		})
	}
}

func TestParseErrorType(t *testing.T) {
	_, err := parseTree(t, "/dts-v1/;\n/ {\n\tx = [ 1 ];\n};\n")
	var perr *dt.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "test.dts", perr.File)
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, 8, perr.Column)

	_, err = parseTree(t, "/dts-v1/;\n/ {\n\tx = < &missing >;\n};\n")
	var serr *dt.SemanticError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "/", serr.Path)
}

func TestParseRawTree(t *testing.T) {
	tree, err := New("test.dts", []byte("/dts-v1/;\n/ {\n\tx = < &a >, &a;\n\ta: a {\n\t};\n};\n"), nil, nil).Parse()
	require.NoError(t, err)

	x, ok := tree.Root().Property("x")
	require.True(t, ok)
	assert.Equal(t, []dt.Marker{
		{Offset: 0, Ref: "a", Kind: dt.MarkerPhandle},
		{Offset: 4, Ref: "a", Kind: dt.MarkerPath},
	}, x.Markers())
	assert.Equal(t, []byte{0, 0, 0, 0}, x.Value)

	// Lookups by relative path report a missing slash before aliases exist
	_, err = tree.GetNode("a")
	assert.EqualError(t, err, "node path does not start with '/'")

	require.NoError(t, tree.Finalize(nil))
	assert.Empty(t, x.Markers())
	assert.Equal(t, []byte{0, 0, 0, 1, '/', 'a', 0}, x.Value)
}

func TestParseIncludes(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"main.dts": "/dts-v1/;\n" +
			"/include/ \"sub.dtsi\"\n" +
			"/include/ \"other.dtsi\"\n" +
			"/ {\n" +
			"\tx = /incbin/(\"blob.bin\");\n" +
			"\ty = /incbin/(\"blob.bin\", 1, 2);\n" +
			"\tz = /incbin/(\"blob.bin\", 3, 100);\n" +
			"};\n",
		"sub.dtsi":       "/ {\n\tfrom-include;\n};\n",
		"inc/other.dtsi": "/ {\n\tfrom-path = [ 01 ];\n};\n",
		"blob.bin":       "ABCD",
	})
	path := filepath.Join(dir, "main.dts")
	source, err := os.ReadFile(path)
	require.NoError(t, err)

	tree, err := New(path, source, []string{filepath.Join(dir, "inc")}, nil).Parse()
	require.NoError(t, err)
	require.NoError(t, tree.Finalize(nil))
	assert.Equal(t, path, tree.Filename)

	assert.Equal(t, strings.TrimSpace(testutil.Dedent(`
		/dts-v1/;

		/ {
			from-include;
			from-path = [ 01 ];
			x = [ 41 42 43 44 ];
			y = [ 42 43 ];
			z = [ 44 ];
		};`)), tree.String())
}

func TestParseIncludeErrorLocation(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"main.dts": "/dts-v1/;\n/include/ \"bad.dtsi\"\n",
		"bad.dtsi": "\n\n  x\n",
	})
	path := filepath.Join(dir, "main.dts")
	source, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = New(path, source, nil, nil).Parse()
	var perr *dt.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, filepath.Join(dir, "bad.dtsi"), perr.File)
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, 3, perr.Column)
	assert.Equal(t, "expected '/' or label reference", perr.Msg)
}
