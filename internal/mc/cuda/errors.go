package cuda

import (
	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/akolliasAMD/ucc/internal/metrics"
	"go.uber.org/zap"
)

// nativeErrorToKind classifies a native status.
func nativeErrorToKind(st Status) error {
	switch st {
	case ErrorMemoryAllocation:
		return mc.ErrNoMemory
	case ErrorInvalidValue, ErrorInvalidDevice, ErrorInvalidResourceHandle:
		return mc.ErrInvalidParam
	case ErrorNotSupported, ErrorNotFound:
		return mc.ErrNotSupported
	}
	return mc.ErrOperationFailed
}

// nativeFailure builds the error for a failed native call and clears the
// sticky last error so it does not surface in an unrelated later call.
// A nil kind is derived from the status.
func (c *Component) nativeFailure(op string, phase mc.Phase, kind error, st Status) *mc.Error {
	c.driver.GetLastError()
	if kind == nil {
		kind = nativeErrorToKind(st)
	}
	metrics.MCErrorsTotal.WithLabelValues(Name, op, mc.KindName(kind)).Inc()
	return &mc.Error{
		Op:     op,
		Phase:  phase,
		Kind:   kind,
		Code:   int(st),
		Native: c.driver.GetErrorString(st),
	}
}

func nativeFields(err *mc.Error) []zap.Field {
	return []zap.Field{
		zap.Int("cuda_error", err.Code),
		zap.String("cuda_error_string", err.Native),
	}
}

func errNotInitialized(op string) error {
	metrics.MCErrorsTotal.WithLabelValues(Name, op, mc.KindName(mc.ErrInvalidParam)).Inc()
	return &mc.Error{Op: op + ": component not initialized", Kind: mc.ErrInvalidParam}
}
