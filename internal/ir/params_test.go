package ir

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParametersKey(t *testing.T) {
	assert.Equal(t, "", Parameters(nil).Key())
	assert.Equal(t, "[]", Parameters{}.Key())
	assert.Equal(t, `[5,"a"]`, Parameters{Int(5), String("a")}.Key())

	// Int(1) and Float(1) are different instances.
	assert.NotEqual(t, Parameters{Int(1)}.Key(), Parameters{Float(1)}.Key())
}

func TestParametersString(t *testing.T) {
	assert.Equal(t, "", Parameters(nil).String())
	assert.Equal(t, "5, x", Parameters{Int(5), String("x")}.String())
}

func TestParametersClone(t *testing.T) {
	p := Parameters{Int(1)}
	c := p.Clone()
	c[0] = Int(2)
	assert.Equal(t, Int(1), p[0])
	assert.Nil(t, Parameters(nil).Clone())
}

func TestCompareParameters(t *testing.T) {
	list := []Parameters{
		{Int(3)},
		nil,
		{Int(1), Int(2)},
		{Int(1)},
		{},
	}
	slices.SortFunc(list, CompareParameters)

	assert.Equal(t, []Parameters{nil, {}, {Int(1)}, {Int(1), Int(2)}, {Int(3)}}, list)
	assert.True(t, EqualParameters(Parameters{String("a")}, Parameters{String("a")}))
	assert.False(t, EqualParameters(nil, Parameters{}))
}
