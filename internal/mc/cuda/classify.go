package cuda

import "github.com/akolliasAMD/ucc/internal/mc"

// runtimeVersionPointerType is the first runtime whose
// cudaPointerAttributes carries the three-way type field.
const runtimeVersionPointerType = 10000

// classifier turns native pointer attributes into a memory type. ok is
// false for pointers the component cannot place.
type classifier func(attr PointerAttributes) (mt mc.MemoryType, ok bool)

func classifierFor(runtimeVersion int) classifier {
	if runtimeVersion >= runtimeVersionPointerType {
		return classifyByType
	}
	return classifyLegacy
}

func classifyByType(attr PointerAttributes) (mc.MemoryType, bool) {
	switch attr.Type {
	case MemoryTypeHost:
		return mc.MemoryTypeHost, true
	case MemoryTypeDevice:
		return mc.MemoryTypeCUDA, true
	case MemoryTypeManaged:
		return mc.MemoryTypeCUDAManaged, true
	}
	return mc.MemoryTypeUnknown, false
}

// Older runtimes report managed memory as device memory with isManaged set.
func classifyLegacy(attr PointerAttributes) (mc.MemoryType, bool) {
	switch attr.MemoryType {
	case MemoryTypeDevice:
		if attr.IsManaged {
			return mc.MemoryTypeCUDAManaged, true
		}
		return mc.MemoryTypeCUDA, true
	case MemoryTypeHost:
		return mc.MemoryTypeHost, true
	}
	return mc.MemoryTypeUnknown, false
}
