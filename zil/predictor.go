package zil

import "github.com/zilcore/zilcore/cos"

// predictor maintains two bounded history rings used to size the next
// lwb before its actual contents are known: prevMin (the smallest
// first-block size that still served burst i in one pass) and prevOpt
// (the evenly-packed block size that best served burst i).
type predictor struct {
	prevMin [Bursts]int
	prevOpt [Bursts]int
	idx     int
}

func (p *predictor) init() {}

// record stores this burst's observed minimum and optimum sizes,
// advancing the rotating index.
func (p *predictor) record(min, opt int) {
	p.prevMin[p.idx] = min
	p.prevOpt[p.idx] = opt
	p.idx = (p.idx + 1) % Bursts
}

// plan computes plan(size): one block if it fits, max_data if it
// would need more than 8x max_data, else an even split.
func plan(size, maxData, trailerSize int) int {
	switch {
	case size <= maxData:
		return size
	case size > 8*maxData:
		return maxData
	default:
		perChunk := maxData - trailerSize
		if perChunk <= 0 {
			return maxData
		}
		chunks := (size + perChunk - 1) / perChunk
		return (size + chunks - 1) / chunks
	}
}

// predict picks a target first-block size from history: the smaller
// of the two largest observed minima if it saves at least 50% space
// versus the larger, else the larger.
func (p *predictor) predict(maxData int) int {
	a, b := 0, 0 // two largest minima seen
	for _, m := range p.prevMin {
		if m > a {
			b = a
			a = m
		} else if m > b {
			b = m
		}
	}
	if a == 0 {
		return maxData
	}
	if b > 0 && b <= a/2 {
		return b
	}
	return a
}

// targetSize computes the final allocation size for the next lwb:
// round_up(plan+trailer, ZIL_MIN_BLKSZ), clamped to maxBlockSize.
func (p *predictor) targetSize(curSize, curMax, maxBlockSize, trailerSize int) int {
	maxData := maxBlockSize - trailerSize
	sz := plan(curSize, maxData, trailerSize)
	if curMax > sz {
		sz = curMax
	}
	predicted := p.predict(maxData)
	if predicted > sz {
		sz = predicted
	}
	sz = cos.RoundUp(sz+trailerSize, MinBlockSize)
	if sz > maxBlockSize {
		sz = maxBlockSize
	}
	return sz
}
