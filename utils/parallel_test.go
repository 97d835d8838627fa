package utils

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestGroupWorkParallel(t *testing.T) {
	for _, factor := range []int{1, 3, 8, 64} {
		for _, totalSize := range []int{0, 1, 7, 10, 100} {
			func() {
				prev := ParallelFactor
				ParallelFactor = factor
				defer func() { ParallelFactor = prev }()

				hits := make([]int32, totalSize)
				var numGroups int
				var mu sync.Mutex
				covered := 0
				err := GroupWorkParallel(
					context.Background(),
					totalSize,
					func(groupSize int) { numGroups = groupSize },
					func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
						test.That(t, to-from, test.ShouldEqual, groupSize)
						return func(memberNum, workNum int) {
								atomic.AddInt32(&hits[workNum], 1)
							}, func() {
								mu.Lock()
								covered += groupSize
								mu.Unlock()
							}
					},
				)
				test.That(t, err, test.ShouldBeNil)
				test.That(t, covered, test.ShouldEqual, totalSize)
				if totalSize > 0 {
					test.That(t, numGroups, test.ShouldBeGreaterThanOrEqualTo, 1)
					test.That(t, numGroups, test.ShouldBeLessThanOrEqualTo, factor)
				}
				for _, h := range hits {
					test.That(t, h, test.ShouldEqual, 1)
				}
			}()
		}
	}
}

func TestGroupWorkParallelCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := GroupWorkParallel(ctx, 10, nil, func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
		called = true
		return nil, nil
	})
	test.That(t, err, test.ShouldBeError, context.Canceled)
	test.That(t, called, test.ShouldBeFalse)
}

func TestParallelForEachPixel(t *testing.T) {
	size := image.Point{13, 7}
	var hits [13][7]int32
	err := ParallelForEachPixel(size, func(x, y int) {
		atomic.AddInt32(&hits[x][y], 1)
	})
	test.That(t, err, test.ShouldBeNil)
	for x := 0; x < size.X; x++ {
		for y := 0; y < size.Y; y++ {
			test.That(t, hits[x][y], test.ShouldEqual, 1)
		}
	}
}

func TestParallelWorkReturnsPanics(t *testing.T) {
	prev := ParallelFactor
	ParallelFactor = 4
	defer func() { ParallelFactor = prev }()

	var finished int32
	err := GroupWorkParallel(context.Background(), 40, nil, func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
		return func(memberNum, workNum int) {
			if workNum == 13 {
				panic("bad row")
			}
		}, func() { atomic.AddInt32(&finished, 1) }
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad row")
	// the other groups still ran to completion
	test.That(t, atomic.LoadInt32(&finished), test.ShouldEqual, int32(3))

	err = ParallelForEachPixel(image.Point{9, 9}, func(x, y int) {
		if x == 4 && y == 4 {
			panic("bad pixel")
		}
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad pixel")
}
