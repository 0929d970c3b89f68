package resampler

import (
	"container/heap"
	"log"
	"math"

	"github.com/fieldgrid/resample/internal/htg"
)

// queueElement tracks one undefined leaf awaiting extrapolation. Key is
// its number of defined face neighbors at enqueue time; Mean and
// DisplayMean accumulate those neighbors' values.
type queueElement struct {
	id          int64
	key         int64
	mean        float64
	displayMean float64
	invalidIDs  []int64
}

// fillQueue is a max-heap on key: leaves with the most defined neighbors
// resolve first. Ties break on id to keep runs deterministic.
type fillQueue []queueElement

func (q fillQueue) Len() int { return len(q) }
func (q fillQueue) Less(i, j int) bool {
	if q[i].key != q[j].key {
		return q[i].key > q[j].key
	}
	return q[i].id < q[j].id
}
func (q fillQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *fillQueue) Push(x any) { *q = append(*q, x.(queueElement)) }
func (q *fillQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

// extrapolate assigns values to nodes left undefined after generation by
// averaging their defined face neighbors. Nodes with at least one
// undefined neighbor are queued by neighbor completeness; the queue is
// drained in tiers so every node in a tier sees the same already-committed
// state regardless of processing order within the tier.
func (r *Runner) extrapolate() {
	var pq fillQueue
	for t := 0; t < r.out.NumTrees(); t++ {
		if r.out.Tree(t) == nil {
			continue
		}
		cursor := r.out.NewCursor(t)
		r.fillPriorityQueue(cursor, t, &pq)
	}
	heap.Init(&pq)

	var buf []queueElement
	for pq.Len() > 0 {
		qe := heap.Pop(&pq).(queueElement)
		key := qe.key
		mean, displayMean := qe.mean, qe.displayMean
		invalid := int64(0)
		for _, nid := range qe.invalidIDs {
			v := r.out.Measured[nid]
			if !math.IsNaN(v) {
				mean += v
				if r.out.Display != nil {
					displayMean += r.out.Display[nid]
				}
			} else {
				invalid++
			}
		}
		buf = append(buf, queueElement{
			id:          qe.id,
			key:         qe.key + int64(len(qe.invalidIDs)) - invalid,
			mean:        mean,
			displayMean: displayMean,
		})

		// Commit a whole completeness tier at once.
		if pq.Len() == 0 || pq[0].key != key {
			for _, e := range buf {
				if e.key == 0 {
					// No neighbor ever resolved; the node stays undefined.
					log.Printf("resampler: node %d has no defined neighbors, leaving it undefined", e.id)
					continue
				}
				r.out.Measured[e.id] = e.mean / float64(e.key)
				if r.out.Display != nil {
					r.out.Display[e.id] = e.displayMean / float64(e.key)
				}
			}
			buf = buf[:0]
		}
	}
}

// fillPriorityQueue resolves undefined nodes that already have a full set
// of defined neighbors and queues the rest. Defined interior nodes recurse
// into their children.
func (r *Runner) fillPriorityQueue(cursor *htg.Cursor, treeIdx int, pq *fillQueue) {
	id := cursor.GlobalIndex()
	if !math.IsNaN(r.out.Measured[id]) {
		if !cursor.IsLeaf() {
			for child := 0; child < cursor.NumChildren(); child++ {
				cursor.ToChild(child)
				r.fillPriorityQueue(cursor, treeIdx, pq)
				cursor.ToParent()
			}
		}
		return
	}

	var qe queueElement
	var validNeighbors int64
	for _, nid := range r.out.FaceNeighbors(treeIdx, cursor.VertexID()) {
		if nid == htg.InvalidIndex || r.out.IsMasked(nid) {
			continue
		}
		v := r.out.Measured[nid]
		if math.IsNaN(v) {
			qe.invalidIDs = append(qe.invalidIDs, nid)
			continue
		}
		validNeighbors++
		qe.mean += v
		if r.out.Display != nil {
			qe.displayMean += r.out.Display[nid]
		}
	}

	if len(qe.invalidIDs) == 0 {
		if validNeighbors == 0 {
			log.Printf("resampler: node %d has no neighbors to extrapolate from", id)
			return
		}
		r.out.Measured[id] = qe.mean / float64(validNeighbors)
		if r.out.Display != nil {
			r.out.Display[id] = qe.displayMean / float64(validNeighbors)
		}
		return
	}
	qe.id = id
	qe.key = validNeighbors
	*pq = append(*pq, qe)
}
