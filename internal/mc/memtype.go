package mc

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
)

// MemoryType is the residency domain of a buffer.
type MemoryType int

const (
	MemoryTypeHost MemoryType = iota
	MemoryTypeCUDA
	MemoryTypeCUDAManaged
	MemoryTypeUnknown
)

var memoryTypeNames = [...]string{"host", "cuda", "cuda-managed", "unknown"}

func (m MemoryType) String() string {
	if m >= 0 && int(m) < len(memoryTypeNames) {
		return memoryTypeNames[m]
	}
	return fmt.Sprintf("memtype(%d)", int(m))
}

// ParseMemoryType is the inverse of MemoryType.String.
func ParseMemoryType(s string) (MemoryType, error) {
	for i, name := range memoryTypeNames[:MemoryTypeUnknown] {
		if strings.EqualFold(s, name) {
			return MemoryType(i), nil
		}
	}
	return MemoryTypeUnknown, errors.Errorf("unknown memory type %q", s)
}

// AttrField selects which MemAttr fields a query fills in.
type AttrField uint64

const (
	AttrFieldMemType AttrField = 1 << iota
	AttrFieldBaseAddress
	AttrFieldAllocLength
)

// MemAttr carries the result of a pointer query. Only the fields named in
// FieldMask are written; the rest keep whatever the caller put there.
type MemAttr struct {
	FieldMask   AttrField
	MemType     MemoryType
	BaseAddress unsafe.Pointer
	AllocLength uint64
}

// Wants reports whether any of the given fields is requested.
func (a *MemAttr) Wants(f AttrField) bool {
	return a.FieldMask&f != 0
}
