package mc

import (
	"sync"

	"go.uber.org/zap"
)

// Shared hands one Component to several consumers. The component is
// initialized by the first Acquire and finalized by the last Release.
type Shared struct {
	component Component
	mu        sync.Mutex
	refs      int
	logger    *zap.Logger
}

// NewShared wraps c. c must not be initialized yet.
func NewShared(c Component, logger *zap.Logger) *Shared {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shared{
		component: c,
		logger:    logger.Named("shared").With(zap.String("component", c.Name())),
	}
}

// Acquire takes a reference, initializing the component if it is the first.
func (s *Shared) Acquire() (Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		if err := s.component.Init(); err != nil {
			return nil, err
		}
		s.logger.Debug("component initialized")
	}
	s.refs++
	return s.component, nil
}

// Release drops a reference, finalizing the component when it was the last.
func (s *Shared) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		return &Error{Op: "release " + s.component.Name(), Kind: ErrInvalidParam}
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	if err := s.component.Finalize(); err != nil {
		return err
	}
	s.logger.Debug("component finalized")
	return nil
}

// Refs returns the number of outstanding references.
func (s *Shared) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// Component returns the wrapped component without taking a reference.
func (s *Shared) Component() Component {
	return s.component
}
