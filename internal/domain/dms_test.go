package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDMS(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		v, ok := ParseDMS("35;13;55.56")
		assert.True(t, ok)
		assert.InDelta(t, 35+13.0/60+55.56/3600, v, 1e-12)
	})

	t.Run("whitespace around tokens", func(t *testing.T) {
		v, ok := ParseDMS(" 129; 4 ;44.4 ")
		assert.True(t, ok)
		assert.InDelta(t, 129+4.0/60+44.4/3600, v, 1e-12)
	})

	t.Run("fractional minutes", func(t *testing.T) {
		v, ok := ParseDMS("10;30.5;0")
		assert.True(t, ok)
		assert.InDelta(t, 10.508333333, v, 1e-9)
	})

	cases := map[string]string{
		"missing token":   "12;34",
		"extra token":     "12;34;56;7",
		"non-numeric":     "12;ab;56",
		"empty":           "",
		"comma separated": "12,34,56",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			v, ok := ParseDMS(in)
			assert.False(t, ok)
			assert.Zero(t, v)
		})
	}
}

func TestFormatDMS(t *testing.T) {
	assert.Equal(t, "35;13;55.5600", FormatDMS(35+13.0/60+55.56/3600))
	assert.Equal(t, "0;0;0.0000", FormatDMS(0))

	for _, v := range []float64{35.2321, 129.079, -97.5164, 0.0001} {
		got, ok := ParseDMS(FormatDMS(v))
		assert.True(t, ok)
		assert.InDelta(t, v, got, 1e-7)
	}
}
