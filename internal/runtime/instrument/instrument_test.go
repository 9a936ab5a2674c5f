package instrument_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandboxvm/scruntime/internal/runtime/instrument"
	"github.com/sandboxvm/scruntime/internal/testcontract"
	"github.com/sandboxvm/scruntime/types"
)

var errRefused = errors.New("refused")

type refuse struct{}

func (refuse) Name() string                       { return "refuse" }
func (refuse) Transform(*instrument.Module) error { return errRefused }

type count struct{ calls *int }

func (count) Name() string { return "count" }
func (c count) Transform(*instrument.Module) error {
	*c.calls++
	return nil
}

func TestApplyRejectsText(t *testing.T) {
	_, err := instrument.Apply([]byte("(module)"))
	var compileErr *types.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.ErrorIs(t, err, instrument.ErrTextFormat)
}

func TestApplyRejectsGarbage(t *testing.T) {
	_, err := instrument.Apply([]byte{0x00, 0x61, 0x73, 0x6D, 0x02, 0x00, 0x00, 0x00})
	var compileErr *types.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.NotErrorIs(t, err, instrument.ErrTextFormat)
}

func TestApplyWrapsMiddlewareErrors(t *testing.T) {
	calls := 0
	_, err := instrument.Apply(testcontract.SetData(), count{&calls}, refuse{}, count{&calls})
	var compileErr *types.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.ErrorIs(t, err, errRefused)
	assert.Contains(t, err.Error(), "refuse: refused")
	assert.Equal(t, 1, calls)
}

func TestApplyWithoutMiddlewares(t *testing.T) {
	in := testcontract.Echo()
	out, err := instrument.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
