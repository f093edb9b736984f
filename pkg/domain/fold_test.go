package domain_test

import (
	"errors"
	"testing"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cell struct{ v int }

func cloneCell(c *cell) *cell { return &cell{v: c.v} }

func addCell(acc, next *cell) (*cell, error) {
	acc.v += next.v
	return acc, nil
}

func TestFold(t *testing.T) {
	t.Run("Zero inputs yield nothing", func(t *testing.T) {
		out, err := domain.Fold(nil, cloneCell, addCell)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("Single input is cloned", func(t *testing.T) {
		in := &cell{v: 4}
		out, err := domain.Fold([]domain.Buffer{in}, cloneCell, addCell)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, 4, out[0].(*cell).v)
		assert.NotSame(t, in, out[0])
	})

	t.Run("Many inputs fold left to right without touching inputs", func(t *testing.T) {
		a, b, c := &cell{v: 1}, &cell{v: 2}, &cell{v: 3}
		out, err := domain.Fold([]domain.Buffer{a, b, c}, cloneCell, addCell)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, 6, out[0].(*cell).v)
		assert.Equal(t, 1, a.v)
	})

	t.Run("Wrong buffer type", func(t *testing.T) {
		_, err := domain.Fold([]domain.Buffer{&cell{}, "nope"}, cloneCell, addCell)
		assert.Error(t, err)
	})

	t.Run("Operator error is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := domain.Fold([]domain.Buffer{&cell{}, &cell{}}, cloneCell, func(*cell, *cell) (*cell, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
	})
}
