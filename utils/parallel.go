package utils

import (
	"context"
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate, or to force sequential execution.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
	quarterProcs := float64(ParallelFactor) * .25
	if quarterProcs > 8 {
		ParallelFactor = int(quarterProcs)
	}
}

type (
	// BeforeParallelGroupWorkFunc executes before any work starts with the calculated group size.
	BeforeParallelGroupWorkFunc func(groupSize int)
	// MemberWorkFunc runs for each work item (member) of a group.
	MemberWorkFunc func(memberNum, workNum int)
	// GroupWorkDoneFunc runs when a single group's work is done; helpful for merge stages.
	GroupWorkDoneFunc func()
	// GroupWorkFunc runs to determine what work members should do, if any.
	GroupWorkFunc func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc)
)

// GroupWorkParallel splits the work items [0, totalSize) into contiguous groups, one per worker,
// and runs them in parallel. The last group absorbs the remainder. It returns once every group
// is done. A panic in any group is returned as an error.
func GroupWorkParallel(ctx context.Context, totalSize int, before BeforeParallelGroupWorkFunc, groupWork GroupWorkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	numGroups := ParallelFactor
	if numGroups < 1 {
		numGroups = 1
	}
	if totalSize < numGroups {
		numGroups = totalSize
	}
	if numGroups == 0 {
		return nil
	}
	groupSize := totalSize / numGroups
	extra := totalSize % numGroups

	if before != nil {
		before(numGroups)
	}

	workers := newPanicGroup(numGroups)
	for groupNum := 0; groupNum < numGroups; groupNum++ {
		groupNumCopy := groupNum
		workers.Go(func() {
			groupNum := groupNumCopy

			thisGroupSize := groupSize
			if groupNum == (numGroups - 1) {
				thisGroupSize += extra
			}
			from := groupSize * groupNum
			to := from + thisGroupSize
			memberWork, groupWorkDone := groupWork(groupNum, thisGroupSize, from, to)
			if memberWork != nil {
				memberNum := 0
				for workNum := from; workNum < to; workNum++ {
					memberWork(memberNum, workNum)
					memberNum++
				}
			}
			if groupWorkDone != nil {
				groupWorkDone()
			}
		})
	}
	return workers.Wait()
}

// ParallelForEachPixel loops through the image and calls f functions for each [x, y] position.
// The image is divided into N * N blocks, where N is ParallelFactor. For each block a
// parallel Goroutine is started. A panic in f is returned as an error once every block is done.
func ParallelForEachPixel(size image.Point, f func(x, y int)) error {
	procs := ParallelFactor
	if procs < 1 {
		procs = 1
	}
	workers := newPanicGroup(procs * procs)
	for i := 0; i < procs; i++ {
		startX := i * int(math.Floor(float64(size.X)/float64(procs)))
		var endX int
		if i < procs-1 {
			endX = (i + 1) * int(math.Floor(float64(size.X)/float64(procs)))
		} else {
			endX = size.X
		}
		for j := 0; j < procs; j++ {
			startY := j * int(math.Floor(float64(size.Y)/float64(procs)))
			var endY int
			if j < procs-1 {
				endY = (j + 1) * int(math.Floor(float64(size.Y)/float64(procs)))
			} else {
				endY = size.Y
			}
			sX, eX, sY, eY := startX, endX, startY, endY
			workers.Go(func() {
				for x := sX; x < eX; x++ {
					for y := sY; y < eY; y++ {
						f(x, y)
					}
				}
			})
		}
	}
	return workers.Wait()
}

// panicGroup waits for a fixed number of goroutines and keeps the first panic any of them
// raised.
type panicGroup struct {
	wait      sync.WaitGroup
	mu        sync.Mutex
	recovered interface{}
}

func newPanicGroup(n int) *panicGroup {
	g := &panicGroup{}
	g.wait.Add(n)
	return g
}

// Go runs f on its own goroutine and records its panic, if any.
func (g *panicGroup) Go(f func()) {
	utils.PanicCapturingGo(func() {
		defer g.wait.Done()
		defer func() {
			if err := recover(); err != nil {
				g.mu.Lock()
				if g.recovered == nil {
					g.recovered = err
				}
				g.mu.Unlock()
			}
		}()
		f()
	})
}

func (g *panicGroup) Wait() error {
	g.wait.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.recovered == nil {
		return nil
	}
	return errors.Errorf("panic in parallel work: %v", g.recovered)
}
