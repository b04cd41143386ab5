package fieldhash

import "testing"

func TestSHA3ProviderHashLeafDeterministic(t *testing.T) {
	p := SHA3Provider{}
	c := FromBytes([]byte{0xaa, 0xbb})
	a := p.HashLeaf(c, 5)
	b := p.HashLeaf(c, 5)
	if a != b {
		t.Fatalf("HashLeaf not deterministic")
	}
	if other := p.HashLeaf(c, 6); other == a {
		t.Fatalf("HashLeaf should vary with offset")
	}
}

func TestSHA3ProviderHashNodeRootVsNonroot(t *testing.T) {
	p := SHA3Provider{}
	l := FromBytes([]byte{1})
	r := FromBytes([]byte{2})
	nonroot := p.HashNode(l, r, true)
	root := p.HashNode(l, r, false)
	if nonroot == root {
		t.Fatalf("root and nonroot hashes must differ")
	}
}

func TestSHA3ProviderNormalizeClearsTopBit(t *testing.T) {
	p := SHA3Provider{}
	var raw [32]byte
	raw[0] = 0xff
	e := p.Normalize(raw)
	if e[0]&0x80 != 0 {
		t.Fatalf("Normalize must clear top bit, got %x", e[0])
	}
}
