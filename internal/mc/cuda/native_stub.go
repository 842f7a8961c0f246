//go:build !cuda

package cuda

import "github.com/akolliasAMD/ucc/internal/mc"

// NewNativeDriver is unavailable without the cuda build tag.
func NewNativeDriver() (Driver, error) {
	return nil, &mc.Error{Op: "native cuda driver (build with -tags cuda)", Kind: mc.ErrNotSupported}
}
