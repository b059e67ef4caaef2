package invertify

import (
	"cmp"
	"fmt"
	"slices"
)

// Control represents an editable parameter of a filter or viewer.
type Control interface {
	// Display/human readable name and description.
	Describe() (name, description string)
	// ActualValue returns the current value of the control.
	ActualValue() any
	// ChangeValue attempts to update the ActualValue to newValue.
	ChangeValue(newValue any) error
}

// ControlOrdered is a bounded numeric control. OnChange may be nil.
type ControlOrdered[T cmp.Ordered] struct {
	Name        string
	Description string
	Value       T
	Min         T
	Max         T
	Step        T
	OnChange    func(T) error
}

func (co *ControlOrdered[T]) Describe() (name, description string) {
	return co.Name, co.Description
}
func (co *ControlOrdered[T]) ActualValue() any { return co.Value }
func (co *ControlOrdered[T]) ChangeValue(newValue any) error {
	v, ok := newValue.(T)
	if !ok {
		return fmt.Errorf("new value %T not of type %T", newValue, co.Value)
	}
	if v < co.Min || v > co.Max {
		return fmt.Errorf("new value %v exceeds limits %v..%v", v, co.Min, co.Max)
	}
	if co.OnChange != nil {
		if err := co.OnChange(v); err != nil {
			return err
		}
	}
	co.Value = v
	return nil
}

// Clamp limits v to the control range without changing the control.
func (co *ControlOrdered[T]) Clamp(v T) T {
	return min(max(v, co.Min), co.Max)
}

type integer interface {
	~int | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64
}

// enum best generated with stringer commands.
type enum interface {
	integer
	fmt.Stringer
}

// ControlEnum maps to dropdown kind of list.
type ControlEnum[T enum] struct {
	Name        string
	Description string
	Value       T
	ValidValues []T
	OnChange    func(T) error
}

func (ce *ControlEnum[T]) Describe() (name, description string) {
	return ce.Name, ce.Description
}
func (ce *ControlEnum[T]) ActualValue() any {
	return ce.Value
}
// Next returns the valid value following Value, wrapping around. Values not
// in ValidValues are followed by the first one. ValidValues must not be empty.
func (ce *ControlEnum[T]) Next() T {
	i := slices.Index(ce.ValidValues, ce.Value)
	return ce.ValidValues[(i+1)%len(ce.ValidValues)]
}

func (ce *ControlEnum[T]) ChangeValue(newValue any) error {
	v, ok := newValue.(T)
	if !ok {
		return fmt.Errorf("new value %T not of type %T", newValue, ce.Value)
	}
	if !slices.Contains(ce.ValidValues, v) {
		return fmt.Errorf("value %v of %T not valid", v, v)
	}
	if ce.OnChange != nil {
		if err := ce.OnChange(v); err != nil {
			return err
		}
	}
	ce.Value = v
	return nil
}
