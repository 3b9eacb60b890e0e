package links

import "github.com/llrt/pkg/tensor"

// GeneralLocal2D is a locally connected 2D link with the
// connectivity pattern of a convolution. Combined with custom
// kernels it covers convolutions, atrous and transpose variants,
// locally connected 2D layers and pooling.
//
// Each component has 2 dimensions (rows, columns) or 3 (rows,
// columns, depth); a missing depth is treated as 1. When a 2D cell at
// end 0 connects to a 2D cell at end 1, the end-0 nodes at every
// depth of the cell are fully connected with the end-1 nodes at every
// depth of the other cell.
//
// The iteration moves a filter rectangle over end 0. The filter
// advances in steps of strideRows/strideCols; each placement connects
// the covered end-0 cells with a single end-1 cell. Atrous factors
// greater than 1 spread the filter out without growing it.
//
// The edgeInfo values for an end-1 node are in left-to-right,
// top-to-bottom filter order, usable as indices into a convolution
// kernel. Work is split by rows, so long rows iterate fastest.
type GeneralLocal2D struct {
	startRow int64 // top left corner of the top-left filter placement; may be negative
	startCol int64

	filterRows, filterCols int64
	strideRows, strideCols int64
	atrousRows, atrousCols int64

	end0Rows, end0Cols, end0Depth int64
	end1Rows, end1Cols, end1Depth int64

	// cumulative edge counts by row, from each end's perspective;
	// the quantization table behind RequestPartialProgress
	cumEnd0RowSizes []int64
	cumEnd1RowSizes []int64

	end0Data, end1Data tensor.Store

	dirty bool
}

// NewGeneralLocal2D creates a local 2D link; call SetParams before
// connecting.
func NewGeneralLocal2D() *GeneralLocal2D {
	return &GeneralLocal2D{}
}

// Identifier names the link type.
func (l *GeneralLocal2D) Identifier() string {
	return "GeneralLocal2D"
}

// CanConnectDimensions accepts 2- or 3-dimensional components.
func (l *GeneralLocal2D) CanConnectDimensions(dim0, dim1 []int64) bool {
	if len(dim0) != 2 && len(dim0) != 3 {
		return false
	}
	if len(dim1) != 2 && len(dim1) != 3 {
		return false
	}
	return true
}

// DeduceComponentDimensions cannot deduce: strides and padding admit
// several shapes.
func (l *GeneralLocal2D) DeduceComponentDimensions(dimF []int64, end int) ([]int64, bool) {
	return nil, false
}

// SetLinkData grants the link its two edge stores, which it resizes
// when its geometry changes.
func (l *GeneralLocal2D) SetLinkData(end0, end1 tensor.Store) {
	l.end0Data = end0
	l.end1Data = end1
}

// SetParams configures the filter geometry.
func (l *GeneralLocal2D) SetParams(startRow, startCol, filterRows, filterCols, strideRows, strideCols, atrousRows, atrousCols int64) {
	l.startRow = startRow
	l.startCol = startCol
	l.filterRows = filterRows
	l.filterCols = filterCols
	l.strideRows = strideRows
	l.strideCols = strideCols
	l.atrousRows = atrousRows
	l.atrousCols = atrousCols
	l.dirty = true
	l.initialize()
}

// SetDimensions records the component dimensions on each end.
func (l *GeneralLocal2D) SetDimensions(dim0, dim1 []int64) {
	l.end0Rows = dim0[0]
	l.end0Cols = dim0[1]
	if len(dim0) == 3 {
		l.end0Depth = dim0[2]
	} else {
		l.end0Depth = 1
	}

	l.end1Rows = dim1[0]
	l.end1Cols = dim1[1]
	if len(dim1) == 3 {
		l.end1Depth = dim1[2]
	} else {
		l.end1Depth = 1
	}
	l.dirty = true
	l.initialize()
}

// LinkEndSize gives one edge-data entry per (end-1 cell, filter
// position, depth pair), flat on both ends.
func (l *GeneralLocal2D) LinkEndSize(dimN, dimF []int64, end int) []int64 {
	dim1 := dimF
	dim0 := dimN
	if end == 1 {
		dim1, dim0 = dimN, dimF
	}
	end1Depth := int64(1)
	if len(dim1) == 3 {
		end1Depth = dim1[2]
	}
	end0Depth := int64(1)
	if len(dim0) == 3 {
		end0Depth = dim0[2]
	}
	size := dim1[0] * dim1[1] * end1Depth * end0Depth * l.filterRows * l.filterCols
	return []int64{size}
}

func (l *GeneralLocal2D) resize() {
	dimN := []int64{l.end1Rows, l.end1Cols, l.end1Depth}
	dimF := []int64{l.end0Rows, l.end0Cols, l.end0Depth}
	size := l.LinkEndSize(dimN, dimF, 1)[0]
	if l.end0Data != nil {
		l.end0Data.Resize(size)
	}
	if l.end1Data != nil {
		l.end1Data.Resize(size)
	}
}

// divRoundNegInf rounds a/b towards negative infinity. a may be
// negative; b must be positive.
func divRoundNegInf(a, b int64) int64 {
	if a >= 0 || a%b == 0 {
		return a / b
	}
	return a/b - 1
}

// divRoundPosInf rounds a/b towards positive infinity. a may be
// negative; b must be positive.
func divRoundPosInf(a, b int64) int64 {
	if a%b == 0 {
		return a / b
	}
	if a >= 0 {
		return a/b + 1
	}
	return a / b
}

// rowRowIteration visits the edges of one (filter row, end-1 row)
// combination. fromEnd1 selects which end is near.
func (l *GeneralLocal2D) rowRowIteration(filterRow, end1Row int64, visit Visitor, fromEnd1 bool) {
	end0Row := end1Row*l.strideRows + filterRow*l.atrousRows + l.startRow
	if end0Row < 0 || end0Row >= l.end0Rows {
		return // filter location is outside array bounds
	}

	edgeInfoStart := filterRow * l.filterCols

	end0BaseRowIx := end0Row * l.end0Cols * l.end0Depth
	end1BaseRowIx := end1Row * l.end1Cols * l.end1Depth

	edgeIx := end1Row*(l.end1Cols*l.filterRows*l.filterCols*l.end0Depth*l.end1Depth) + // complete end-1 rows above
		filterRow*(l.end1Cols*l.filterCols*l.end1Depth*l.end0Depth) // complete filter rows above

	curLeftSideFilter := l.startCol

	for end1Col := int64(0); end1Col < l.end1Cols; end1Col++ {
		edgeInfo := edgeInfoStart
		for end0Col := curLeftSideFilter; end0Col < curLeftSideFilter+l.filterCols*l.atrousCols; end0Col += l.atrousCols {
			if end0Col < 0 || end0Col >= l.end0Cols {
				edgeInfo++
				edgeIx += l.end0Depth * l.end1Depth
				continue // out of bounds
			}
			end0BaseDepthIx := end0BaseRowIx + end0Col*l.end0Depth
			end1BaseDepthIx := end1BaseRowIx + end1Col*l.end1Depth
			for i := int64(0); i < l.end1Depth; i++ {
				for j := int64(0); j < l.end0Depth; j++ {
					end0Ix := end0BaseDepthIx + j
					end1Ix := end1BaseDepthIx + i
					if fromEnd1 {
						visit(end1Ix, edgeIx, end0Ix, edgeIx, edgeInfo)
					} else {
						visit(end0Ix, edgeIx, end1Ix, edgeIx, edgeInfo)
					}
					edgeIx++
				}
			}
			edgeInfo++
		}
		curLeftSideFilter += l.strideCols
	}
}

// rowFindingIteration visits, from end 0, every edge whose end-0 row
// is in [end0RowStart, end0RowEnd).
func (l *GeneralLocal2D) rowFindingIteration(end0RowStart, end0RowEnd int64, visit Visitor) {
	end1RowStart := divRoundNegInf(end0RowStart-l.startRow-l.filterRows*l.atrousRows, l.strideRows)
	if end1RowStart < 0 {
		end1RowStart = 0
	}
	if end1RowStart > l.end1Rows-1 {
		end1RowStart = l.end1Rows - 1
	}

	end1RowEnd := divRoundPosInf(end0RowEnd-l.startRow, l.strideRows)
	if end1RowEnd < 0 {
		end1RowEnd = 0
	}
	if end1RowEnd > l.end1Rows {
		end1RowEnd = l.end1Rows
	}

	for end1Row := end1RowStart; end1Row < end1RowEnd; end1Row++ {
		for filterRow := int64(0); filterRow < l.filterRows; filterRow++ {
			end0Row := end1Row*l.strideRows + filterRow*l.atrousRows + l.startRow
			if end0Row >= end0RowStart && end0Row < end0RowEnd {
				l.rowRowIteration(filterRow, end1Row, visit, false)
			}
		}
	}
}

// initialize rebuilds the cumulative row size tables once both the
// filter parameters and the dimensions are known.
func (l *GeneralLocal2D) initialize() {
	if !l.dirty {
		return
	}
	if l.end1Rows == 0 || l.filterRows == 0 {
		return // incomplete params
	}
	l.cumEnd0RowSizes = make([]int64, l.end0Rows)
	l.cumEnd1RowSizes = make([]int64, l.end1Rows)

	// Every in-bounds (filter row, end-1 row) combination visits the
	// same number of edges, so count one and reuse it.
	var rowRowSize int64
	for end1Row := int64(0); end1Row < l.end1Rows; end1Row++ {
		for filterRow := int64(0); filterRow < l.filterRows; filterRow++ {
			end0Row := end1Row*l.strideRows + l.startRow + filterRow*l.atrousRows
			if end0Row >= 0 && end0Row < l.end0Rows {
				if rowRowSize == 0 {
					l.rowRowIteration(filterRow, end1Row, func(_, _, _, _, _ int64) {
						rowRowSize++
					}, true)
				}
				l.cumEnd0RowSizes[end0Row] += rowRowSize
				l.cumEnd1RowSizes[end1Row] += rowRowSize
			}
		}
	}

	cumulative := int64(0)
	for end1Row := int64(0); end1Row < l.end1Rows; end1Row++ {
		tmp := l.cumEnd1RowSizes[end1Row]
		l.cumEnd1RowSizes[end1Row] += cumulative
		cumulative += tmp
	}
	cumulative = 0
	for end0Row := int64(0); end0Row < l.end0Rows; end0Row++ {
		tmp := l.cumEnd0RowSizes[end0Row]
		l.cumEnd0RowSizes[end0Row] += cumulative
		cumulative += tmp
	}

	l.resize()
	l.dirty = false
}

// MaxProgress is the total edge count.
func (l *GeneralLocal2D) MaxProgress(end int) int64 {
	if len(l.cumEnd0RowSizes) == 0 {
		return 0
	}
	return l.cumEnd0RowSizes[len(l.cumEnd0RowSizes)-1]
}

// RequestPartialProgress rounds requested up to the end of the
// enclosing near row, the link's near-node-aligned quantum.
func (l *GeneralLocal2D) RequestPartialProgress(end int, requested int64) int64 {
	arr := l.cumEnd0RowSizes
	if end == 1 {
		arr = l.cumEnd1RowSizes
	}
	if len(arr) == 0 {
		return 0
	}
	ix := lowerBound(arr, requested)
	if ix == len(arr) {
		return arr[len(arr)-1]
	}
	return arr[ix]
}

// Iterate visits every edge with progress in [start, stop), from the
// given end. Bounds must be row-aligned.
func (l *GeneralLocal2D) Iterate(end int, start, stop int64, visit Visitor) {
	if end == 1 {
		end1RowStart := int64(lowerBound(l.cumEnd1RowSizes, start+1))
		end1RowEnd := int64(lowerBound(l.cumEnd1RowSizes, stop)) + 1
		for end1Row := end1RowStart; end1Row < end1RowEnd; end1Row++ {
			for filterRow := int64(0); filterRow < l.filterRows; filterRow++ {
				l.rowRowIteration(filterRow, end1Row, visit, true)
			}
		}
	} else {
		end0RowStart := int64(lowerBound(l.cumEnd0RowSizes, start+1))
		end0RowEnd := int64(lowerBound(l.cumEnd0RowSizes, stop)) + 1
		l.rowFindingIteration(end0RowStart, end0RowEnd, visit)
	}
}
