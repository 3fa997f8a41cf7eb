package node

import (
	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

// slots maps small integer indices to type-erased shared values.
type slots struct {
	values map[int]any
}

func newSlots() slots {
	return slots{values: make(map[int]any)}
}

func (s *slots) set(index int, value any) {
	s.values[index] = value
}

func (s *slots) get(index int) (any, bool) {
	v, ok := s.values[index]
	return v, ok
}

// Port is a node's connection surface. Inputs and outputs are wired
// before execution only; slot values are stored by pointer so every
// connected downstream node shares one upstream value without copying.
type Port struct {
	inputs  slots
	outputs slots
}

func NewPort() *Port {
	return &Port{
		inputs:  newSlots(),
		outputs: newSlots(),
	}
}

// SetInput installs a shared value as the input at index.
func SetInput[T any](p *Port, index int, value *T) {
	p.inputs.set(index, value)
}

// Input fetches the input at index as *T. An unconnected index or a
// value of a different type is a hard error, never a silent default.
func Input[T any](p *Port, index int) (*T, error) {
	v, ok := p.inputs.get(index)
	if !ok {
		return nil, errors.Wrapf(exception.ErrSlotNotConnected, "input slot: %d", index)
	}

	typed, ok := v.(*T)
	if !ok {
		return nil, errors.Wrapf(exception.ErrSlotTypeMismatch, "input slot: %d, stored: %T", index, v)
	}

	return typed, nil
}

// SetOutput installs a shared value as the output at index.
func SetOutput[T any](p *Port, index int, value *T) {
	p.outputs.set(index, value)
}

// Output fetches the output at index as *T.
func Output[T any](p *Port, index int) (*T, error) {
	v, ok := p.outputs.get(index)
	if !ok {
		return nil, errors.Wrapf(exception.ErrSlotNotConnected, "output slot: %d", index)
	}

	typed, ok := v.(*T)
	if !ok {
		return nil, errors.Wrapf(exception.ErrSlotTypeMismatch, "output slot: %d, stored: %T", index, v)
	}

	return typed, nil
}
