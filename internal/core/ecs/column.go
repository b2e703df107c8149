package ecs

import "fmt"

// column is the type-erased view of one contiguous component array. The
// concrete implementation is typedColumn[T], so iteration over a column is a
// plain slice walk.
type column interface {
	descriptor() *Descriptor
	len() int
	accepts(v any) bool
	push(v any)
	get(row int) any
	set(row int, v any) error
	// swapRemove drops row, running the destructor on its value.
	swapRemove(row int)
	// moveTo appends row to dst (same element type) and removes it here
	// without destructing.
	moveTo(row int, dst column)
	clear()
}

type typedColumn[T any] struct {
	data []T
	desc *Descriptor
}

func (c *typedColumn[T]) descriptor() *Descriptor { return c.desc }

func (c *typedColumn[T]) len() int { return len(c.data) }

func (c *typedColumn[T]) accepts(v any) bool {
	_, ok := v.(T)
	return ok
}

func (c *typedColumn[T]) push(v any) {
	c.data = append(c.data, v.(T))
}

func (c *typedColumn[T]) get(row int) any { return c.data[row] }

func (c *typedColumn[T]) set(row int, v any) error {
	tv, ok := v.(T)
	if !ok {
		return fmt.Errorf("set %s: got %T: %w", c.desc.Name, v, ErrComponentMismatch)
	}
	c.data[row] = tv
	return nil
}

func (c *typedColumn[T]) swapRemove(row int) {
	if c.desc.Destruct != nil {
		c.desc.Destruct(c.data[row])
	}
	c.drop(row)
}

func (c *typedColumn[T]) moveTo(row int, dst column) {
	d := dst.(*typedColumn[T])
	d.data = append(d.data, c.data[row])
	c.drop(row)
}

func (c *typedColumn[T]) drop(row int) {
	last := len(c.data) - 1
	c.data[row] = c.data[last]
	var zero T
	c.data[last] = zero
	c.data = c.data[:last]
}

func (c *typedColumn[T]) clear() {
	if c.desc.Destruct != nil {
		for _, v := range c.data {
			c.desc.Destruct(v)
		}
	}
	clear(c.data)
	c.data = c.data[:0]
}
