package view

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/aure/fpdash/internal/logging"
)

// Boundary supervises one mounted component. The first fault raised while
// rendering it, returned or panicked, trips the boundary; from then on it
// renders a Fallback until Remount replaces the component.
type Boundary[C Component] struct {
	mu     sync.Mutex
	mount  func() (C, error)
	child  C
	fault  *RenderFault
	logger *slog.Logger
}

func NewBoundary[C Component](mount func() (C, error), logger *slog.Logger) (*Boundary[C], error) {
	if logger == nil {
		logger = logging.Discard()
	}
	child, err := mount()
	if err != nil {
		return nil, err
	}
	return &Boundary[C]{mount: mount, child: child, logger: logger}, nil
}

func (b *Boundary[C]) Child() C {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.child
}

// Fault returns the fault that tripped the boundary, or nil.
func (b *Boundary[C]) Fault() *RenderFault {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fault
}

func (b *Boundary[C]) Render() Node {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fault != nil {
		return Fallback{Message: b.fault.Message}
	}

	node, err := b.renderChild()
	if err != nil {
		b.fault = asFault(err)
		b.logger.Warn("render fault intercepted", "fault", b.fault.Message)
		return Fallback{Message: b.fault.Message}
	}
	return node
}

// Remount mounts a fresh component, closes the old one and clears the fault.
func (b *Boundary[C]) Remount() error {
	child, err := b.mount()
	if err != nil {
		return err
	}

	b.mu.Lock()
	old := b.child
	b.child = child
	b.fault = nil
	b.mu.Unlock()

	old.Close()
	return nil
}

func (b *Boundary[C]) Close() {
	b.Child().Close()
}

func (b *Boundary[C]) renderChild() (node Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			node, err = nil, faultFromPanic(r)
		}
	}()
	return b.child.Render()
}

func asFault(err error) *RenderFault {
	var f *RenderFault
	if errors.As(err, &f) {
		return f
	}
	return &RenderFault{Message: err.Error()}
}
