//go:build !linux && !darwin

package asyncio

import "time"

// stubSelector reports ErrUnsupportedPlatform from every operation. Windows
// support would need an IOCP-backed implementation; that is explicitly out
// of scope here.
type stubSelector struct{}

func newSelector() selector { return stubSelector{} }

func (stubSelector) Init() error                                      { return ErrUnsupportedPlatform }
func (stubSelector) Close() error                                     { return nil }
func (stubSelector) Register(int, IOEvents, ioCallback) error         { return ErrUnsupportedPlatform }
func (stubSelector) Modify(int, IOEvents) error                       { return ErrUnsupportedPlatform }
func (stubSelector) Unregister(int) error                             { return ErrUnsupportedPlatform }
func (stubSelector) Select(time.Duration) (int, error)                { return 0, ErrUnsupportedPlatform }
func (stubSelector) Registered() int                                  { return 0 }
