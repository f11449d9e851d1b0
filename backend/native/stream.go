package native

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/interop/devcore"
)

// job is one validated kernel launch on the stream.
type job struct {
	label   string
	fn      devcore.KernelFunc
	grid    [3]uint32
	block   [3]uint32
	dst     target
	sampler devcore.Sampler
}

// stream executes jobs in dispatch order on a single worker goroutine,
// fanning each launch out across rowWorkers goroutines. Dispatch is
// non-blocking up to the queue depth; wait drains the queue.
type stream struct {
	jobs       chan job
	rowWorkers int

	mu      sync.Mutex
	pending int
	drained chan struct{}
	err     error
	closed  bool

	done chan struct{}
}

const streamDepth = 64

func newStream(rowWorkers int) *stream {
	s := &stream{
		jobs:       make(chan job, streamDepth),
		rowWorkers: rowWorkers,
		done:       make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *stream) loop() {
	defer close(s.done)
	for j := range s.jobs {
		err := s.run(j)

		s.mu.Lock()
		if err != nil && s.err == nil {
			s.err = err
		}
		s.pending--
		if s.pending == 0 && s.drained != nil {
			close(s.drained)
			s.drained = nil
		}
		s.mu.Unlock()
	}
}

// run executes every thread of one launch. A panicking kernel is
// contained and reported as the job's error.
func (s *stream) run(j job) error {
	totalX := int(j.grid[0]) * int(j.block[0])
	totalY := int(j.grid[1]) * int(j.block[1])
	totalZ := int(j.grid[2]) * int(j.block[2])
	rows := totalY * totalZ

	workers := s.rowWorkers
	if workers > rows {
		workers = rows
	}

	var (
		wg       sync.WaitGroup
		panicMu  sync.Mutex
		panicErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicMu.Lock()
					if panicErr == nil {
						panicErr = fmt.Errorf("native: kernel %q panicked: %v", j.label, r)
					}
					panicMu.Unlock()
				}
			}()
			for r := start; r < rows; r += workers {
				z := uint32(r / totalY)
				y := uint32(r % totalY)
				for x := 0; x < totalX; x++ {
					j.fn(devcore.ThreadID{X: uint32(x), Y: y, Z: z}, j.dst, j.sampler)
				}
			}
		}(w)
	}
	wg.Wait()
	return panicErr
}

// enqueue submits a job. It blocks only when the queue is full.
func (s *stream) enqueue(j job) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.pending == 0 {
		s.drained = make(chan struct{})
	}
	s.pending++
	s.mu.Unlock()

	s.jobs <- j
	return nil
}

// wait blocks until the stream is empty or ctx ends, then returns the
// first execution error recorded since the previous wait.
func (s *stream) wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.pending == 0 {
			err := s.err
			s.err = nil
			s.mu.Unlock()
			return err
		}
		drained := s.drained
		s.mu.Unlock()

		select {
		case <-drained:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// close stops the worker after the queued jobs finish. The jobs channel
// is closed only once pending reaches zero: a dispatcher blocked on a
// full queue has already incremented pending, so its send completes and
// is executed before the channel goes away.
func (s *stream) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if s.pending == 0 {
			s.mu.Unlock()
			break
		}
		drained := s.drained
		s.mu.Unlock()
		<-drained
	}

	close(s.jobs)
	<-s.done
}
