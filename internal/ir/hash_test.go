package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIR() *StreamIR {
	return &StreamIR{
		Inputs:  []InputStream{{Name: "a", Type: TypeInt, Memory: 1}},
		Outputs: []OutputStream{{Name: "b", Type: TypeInt, Memory: 1}},
		Stmt: Assign{
			Output: OutputReference{Index: 0},
			Expr:   Binary{Op: OpAdd, Left: Load{Stream: InputRef(0)}, Right: Const{Value: Int(1)}},
		},
	}
}

func TestSpecHashDeterminism(t *testing.T) {
	h1 := SpecHash(sampleIR())
	h2 := SpecHash(sampleIR())
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestSpecHashChangesWithEvaluationOrder(t *testing.T) {
	a := sampleIR()
	b := sampleIR()
	b.Stmt = Assign{
		Output: OutputReference{Index: 0},
		Expr:   Binary{Op: OpAdd, Left: Load{Stream: InputRef(0)}, Right: Const{Value: Int(2)}},
	}
	assert.NotEqual(t, SpecHash(a), SpecHash(b))

	c := sampleIR()
	c.Outputs[0].Memory = 2
	assert.NotEqual(t, SpecHash(a), SpecHash(c))
}

func TestVerdictHashIgnoresKeyOrder(t *testing.T) {
	d1 := Object{"ts": 10, "changes": []any{"x"}}
	d2 := Object{"changes": []any{"x"}, "ts": 10}

	h1, err := VerdictHash(d1)
	require.NoError(t, err)
	h2, err := VerdictHash(d2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestVerdictHashError(t *testing.T) {
	_, err := VerdictHash(Object{"bad": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VerdictHash")

	assert.Panics(t, func() { MustVerdictHash(Object{"bad": 1.5}) })
}

func TestHashWithDomainSeparation(t *testing.T) {
	// "foo" + 0x00 + "bar" must differ from "foob" + 0x00 + "ar"
	assert.NotEqual(t, hashWithDomain("foo", []byte("bar")), hashWithDomain("foob", []byte("ar")))

	want := sha256.Sum256([]byte("d\x00data"))
	assert.Equal(t, hex.EncodeToString(want[:]), hashWithDomain("d", []byte("data")))
}

func TestDomainsDiffer(t *testing.T) {
	data := []byte("{}")
	assert.NotEqual(t, hashWithDomain(DomainSpec, data), hashWithDomain(DomainVerdict, data))
}
