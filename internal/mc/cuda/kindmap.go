package cuda

import "github.com/akolliasAMD/ucc/internal/mc"

// ResolveMemcpyKind maps a (dst, src) memory type pair onto the transfer
// direction. Pairs this component cannot move fail with mc.ErrInvalidParam.
func ResolveMemcpyKind(dst, src mc.MemoryType) (MemcpyKind, error) {
	switch dst {
	case mc.MemoryTypeHost:
		if src == mc.MemoryTypeCUDA {
			return MemcpyDeviceToHost, nil
		}
	case mc.MemoryTypeCUDA:
		switch src {
		case mc.MemoryTypeCUDA:
			return MemcpyDeviceToDevice, nil
		case mc.MemoryTypeHost:
			return MemcpyHostToDevice, nil
		}
	}
	return 0, &mc.Error{Op: "memcpy " + src.String() + " to " + dst.String(), Kind: mc.ErrInvalidParam}
}
