// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sweep

import (
	"cmp"

	"github.com/addrummond/heap"
	"go.uber.org/zap"
)

// progress tracks the longest prefix of the pending jobs, in sweep order,
// that has finished. Jobs finish in any order; the prefix only grows once
// every earlier job has finished too.
type progress struct {
	logger   *zap.Logger
	jobs     []JobDescriptor
	next     int
	finished heap.Heap[finishedJob, heap.Min]
	count    int
}

type finishedJob struct {
	pos int
}

func (a *finishedJob) Cmp(b *finishedJob) int {
	return cmp.Compare(a.pos, b.pos)
}

func newProgress(logger *zap.Logger, jobs []JobDescriptor) *progress {
	return &progress{logger: logger, jobs: jobs}
}

// finish records that jobs[pos] is done and reports whether the prefix grew.
func (p *progress) finish(pos int) bool {
	p.count++
	heap.PushOrderable(&p.finished, finishedJob{pos: pos})

	advanced := false
	for {
		f, ok := heap.Peek(&p.finished)
		if !ok || f.pos != p.next {
			break
		}
		_, _ = heap.PopOrderable(&p.finished)
		p.next++
		advanced = true
	}

	if advanced {
		p.logger.Info("Sweep progress",
			zap.Int("finished", p.count),
			zap.Int("total", len(p.jobs)),
			zap.Float64("complete_through_epsilon", p.jobs[p.next-1].Point.Epsilon))
	}
	return advanced
}

// watermark returns how many leading jobs have all finished.
func (p *progress) watermark() int {
	return p.next
}
