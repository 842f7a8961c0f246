package sim

import (
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/akolliasAMD/ucc/internal/mc/cuda"
	"github.com/akolliasAMD/ucc/internal/reduce"
)

// stream runs queued work in order on its own goroutine.
type stream struct {
	ops  chan func() cuda.Status
	done chan struct{}

	// err is the first failure since the last synchronize. Owned by the
	// worker goroutine until handed over through a barrier.
	err cuda.Status
}

func newStream() *stream {
	s := &stream{
		ops:  make(chan func() cuda.Status, 64),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *stream) run() {
	defer close(s.done)
	for op := range s.ops {
		if st := op(); st != cuda.Success && s.err == cuda.Success {
			s.err = st
		}
	}
}

// barrier queues a marker; the returned channel yields the stream's
// pending error once everything before the marker has run.
func (s *stream) barrier() <-chan cuda.Status {
	result := make(chan cuda.Status, 1)
	s.ops <- func() cuda.Status {
		result <- s.err
		s.err = cuda.Success
		return cuda.Success
	}
	return result
}

func (d *Driver) StreamCreate() (cuda.Stream, cuda.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, faulted := d.enter(CallStreamCreate); faulted {
		return 0, st
	}
	handle := d.nextStream
	d.nextStream++
	d.streams[handle] = newStream()
	return handle, cuda.Success
}

// StreamDestroy waits for queued work before tearing the stream down.
func (d *Driver) StreamDestroy(s cuda.Stream) cuda.Status {
	d.mu.Lock()
	if st, faulted := d.enter(CallStreamDestroy); faulted {
		d.mu.Unlock()
		return st
	}
	str, ok := d.streams[s]
	if !ok || s == 0 {
		st := d.fail(cuda.ErrorInvalidResourceHandle)
		d.mu.Unlock()
		return st
	}
	delete(d.streams, s)
	close(str.ops)
	d.mu.Unlock()

	<-str.done
	return cuda.Success
}

func (d *Driver) StreamSynchronize(s cuda.Stream) cuda.Status {
	d.mu.Lock()
	if st, faulted := d.enter(CallStreamSynchronize); faulted {
		d.mu.Unlock()
		return st
	}
	str, ok := d.streams[s]
	if !ok {
		st := d.fail(cuda.ErrorInvalidResourceHandle)
		d.mu.Unlock()
		return st
	}
	pending := str.barrier()
	d.mu.Unlock()

	st := <-pending
	if st != cuda.Success {
		d.mu.Lock()
		d.fail(st)
		d.mu.Unlock()
	}
	return st
}

// LaunchReduce queues an element-wise reduction over device-accessible
// buffers with the host kernels in package reduce.
func (d *Driver) LaunchReduce(src1, src2, dst unsafe.Pointer, count uint64, dt mc.DataType, op mc.ReduceOp, grid cuda.LaunchGrid, s cuda.Stream) cuda.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, faulted := d.enter(CallLaunchReduce); faulted {
		return st
	}
	str, ok := d.streams[s]
	if !ok {
		return d.fail(cuda.ErrorInvalidResourceHandle)
	}
	if grid.Blocks <= 0 || grid.Blocks > d.maxGridX || grid.Threads <= 0 || grid.Threads > d.maxThreads {
		return d.fail(cuda.ErrorInvalidConfiguration)
	}
	if mc.ValidateReduce(dt, op) != nil {
		return d.fail(cuda.ErrorInvalidValue)
	}
	n := count * dt.Size()
	if !d.deviceRange(src1, n) || !d.deviceRange(src2, n) || !d.deviceRange(dst, n) {
		return d.fail(cuda.ErrorInvalidValue)
	}
	d.lastLaunch = grid

	str.ops <- func() cuda.Status {
		if err := reduce.Apply(dst, src1, src2, count, dt, op); err != nil {
			return cuda.ErrorLaunchFailure
		}
		return cuda.Success
	}
	return cuda.Success
}
