package ecs

import (
	"reflect"
	"unsafe"
)

// TypeID identifies a registered component type within one Registry.
type TypeID uint32

// Descriptor describes a component type: its layout and lifecycle hooks.
// Build one with Describe.
type Descriptor struct {
	Name  string
	Type  reflect.Type
	Size  uintptr
	Align uintptr

	// Construct returns the default value used when an entity is created
	// without an explicit value for this component. Nil means the zero value.
	Construct func() any
	// Destruct is called with the value of every row that is dropped
	// (despawn, component removal, world teardown). Values moved between
	// archetypes are not destructed.
	Destruct func(v any)

	newColumn func(d *Descriptor) column
}

// DescriptorOption customizes a Descriptor built by Describe.
type DescriptorOption func(*Descriptor)

// WithName overrides the component name (defaults to the Go type name).
func WithName(name string) DescriptorOption {
	return func(d *Descriptor) { d.Name = name }
}

// WithConstructor sets the default-value hook.
func WithConstructor[T any](fn func() T) DescriptorOption {
	return func(d *Descriptor) {
		d.Construct = func() any { return fn() }
	}
}

// WithDestructor sets the hook run on dropped values.
func WithDestructor[T any](fn func(T)) DescriptorOption {
	return func(d *Descriptor) {
		d.Destruct = func(v any) { fn(v.(T)) }
	}
}

// Describe builds the Descriptor for component type T.
func Describe[T any](opts ...DescriptorOption) Descriptor {
	var zero T
	t := reflect.TypeFor[T]()
	d := Descriptor{
		Name:  t.Name(),
		Type:  t,
		Size:  unsafe.Sizeof(zero),
		Align: unsafe.Alignof(zero),
	}
	for _, opt := range opts {
		opt(&d)
	}
	if d.Name == "" {
		d.Name = t.String()
	}
	d.newColumn = func(desc *Descriptor) column { return &typedColumn[T]{desc: desc} }
	return d
}

// defaultValue returns the value used for a component the caller left unset.
func (d *Descriptor) defaultValue() any {
	if d.Construct != nil {
		return d.Construct()
	}
	return reflect.Zero(d.Type).Interface()
}

// ComponentValue pairs a type id with an initial value. A nil Value asks for
// the descriptor's default.
type ComponentValue struct {
	ID    TypeID
	Value any
}

// Value is shorthand for building a ComponentValue.
func Value(id TypeID, v any) ComponentValue {
	return ComponentValue{ID: id, Value: v}
}
