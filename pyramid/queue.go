package pyramid

import "isyntax2tiff/contracts"

// Queue enumerates every tile coordinate of a planned pyramid as batches,
// level-ascending then row-major within a level. The sequence is finite and
// restartable; batching reduces channel coordination overhead for workers.
type Queue struct {
	levels    []Level
	batchSize int

	level int
	row   int
	col   int
}

func NewQueue(levels []Level, batchSize int) *Queue {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Queue{levels: levels, batchSize: batchSize}
}

func (q *Queue) Total() int {
	return TotalTiles(q.levels)
}

// Reset rewinds the queue to the first coordinate.
func (q *Queue) Reset() {
	q.level, q.row, q.col = 0, 0, 0
}

// Next returns the next batch of coordinates, or false when exhausted.
func (q *Queue) Next() ([]contracts.TileCoord, bool) {
	if q.level >= len(q.levels) {
		return nil, false
	}
	batch := make([]contracts.TileCoord, 0, q.batchSize)
	for len(batch) < q.batchSize && q.level < len(q.levels) {
		lv := q.levels[q.level]
		batch = append(batch, contracts.TileCoord{Level: q.level, Row: q.row, Col: q.col})
		q.col++
		if q.col == lv.TilesAcross {
			q.col = 0
			q.row++
			if q.row == lv.TilesDown {
				q.row = 0
				q.level++
			}
		}
	}
	return batch, true
}
