package reshape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seq(n int) []int8 {
	out := make([]int8, n)
	for i := range out {
		out[i] = int8(i)
	}
	return out
}

func TestToBlocksAndUnsplit(t *testing.T) {
	assert := assert.New(t)

	// A 4x4 matrix split into four 2x2 blocks, two per row.
	vector := []int8{
		0, 1, 4, 5, // block (0,0)
		2, 3, 6, 7, // block (0,1)
		8, 9, 12, 13, // block (1,0)
		10, 11, 14, 15, // block (1,1)
	}
	grid := ToBlocks(vector, 2, 2)
	assert.Len(grid, 2)
	assert.Len(grid[0], 2)
	assert.Equal(Matrix{{0, 1}, {4, 5}}, grid[0][0])
	assert.Equal(Matrix{{10, 11}, {14, 15}}, grid[1][1])

	m := Unsplit(grid, 2, 4, 4)
	want := Matrix{
		{0, 1, 2, 3},
		{4, 5, 6, 7},
		{8, 9, 10, 11},
		{12, 13, 14, 15},
	}
	assert.Equal(want, m)
}

func TestUnsplitDropsPadding(t *testing.T) {
	assert := assert.New(t)

	grid := ToBlocks(seq(16), 2, 2) // 4x4 of values 0..15
	m := Unsplit(grid, 2, 3, 3)     // keep only the 3x3 corner
	assert.Len(m, 3)
	assert.Len(m[0], 3)
	assert.Equal(int8(0), m[0][0])
}

func TestIm2RowIdentityKernel(t *testing.T) {
	assert := assert.New(t)

	// 1x1 kernel, stride 1: each pixel becomes one row per channel
	// column.
	x := Tensor{{
		{{1, 2}, {3, 4}}, // channel 0
		{{5, 6}, {7, 8}}, // channel 1
	}}
	rows := Im2Row(x, 1, 1, 1)
	want := Matrix{{1, 5}, {2, 6}, {3, 7}, {4, 8}}
	assert.Equal(want, rows)
}

func TestIm2RowWindows(t *testing.T) {
	assert := assert.New(t)

	// One channel, 3x3 input, 2x2 kernel, stride 1: four windows.
	x := Tensor{{{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	}}}
	rows := Im2Row(x, 2, 2, 1)
	want := Matrix{
		{1, 2, 4, 5},
		{2, 3, 5, 6},
		{4, 5, 7, 8},
		{5, 6, 8, 9},
	}
	assert.Equal(want, rows)
}

func TestMatrixPadding(t *testing.T) {
	assert := assert.New(t)

	m := Matrix{{1, 2, 3}, {4, 5, 6}}

	// Non-square input pads columns only.
	p := MatrixPadding(m, 4, false, false)
	assert.Len(p, 2)
	assert.Len(p[0], 4)
	assert.Equal(int8(0), p[0][3])

	// Weight matrices pad rows too.
	p = MatrixPadding(m, 4, true, false)
	assert.Len(p, 4)
	assert.Equal(int8(6), p[1][2])
	assert.Equal(int8(0), p[3][0])
}

func TestMatrixSplitting(t *testing.T) {
	assert := assert.New(t)

	m := MatrixPadding(Matrix{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
	}, 2, false, true)
	blocks, blocksCol, err := MatrixSplitting(m, 2, false, true)
	assert.NoError(err)
	assert.Equal(2, blocksCol)
	assert.Len(blocks, 2)
	assert.Equal(Matrix{{1, 2}, {5, 6}}, blocks[0])
	assert.Equal(Matrix{{3, 4}, {7, 8}}, blocks[1])

	_, _, err = MatrixSplitting(Matrix{{1, 2, 3}}, 2, false, false)
	assert.Error(err)
}

func TestMatToTensorTransposes(t *testing.T) {
	assert := assert.New(t)

	// Two rows (spatial positions) by two columns (channels).
	res := Matrix{
		{1, 3},
		{2, 4},
	}
	tensor := MatToTensor(res, 1, 2, 1, 2)
	assert.Equal(int8(1), tensor[0][0][0][0])
	assert.Equal(int8(2), tensor[0][0][0][1])
	assert.Equal(int8(3), tensor[0][1][0][0])
	assert.Equal(int8(4), tensor[0][1][0][1])
}

func TestReshapePipelineShape(t *testing.T) {
	assert := assert.New(t)

	// One blocked column of a 2x2 single-channel image through a 1x1
	// kernel. The unsplit keeps the first matrix column (values 1, 3),
	// the im2row re-rows it, and the split pads back to block width.
	vector := []int8{1, 2, 3, 4}
	out, err := Reshape(vector, Params{
		BlockCol:         1,
		BlockSize:        2,
		OutMatrixHeight:  4,
		OutMatrixWidth:   1,
		BatchSize:        1,
		OutTensorChannel: 1,
		OutTensorHeight:  2,
		OutTensorWidth:   2,
		KernelH:          1,
		KernelW:          1,
		Stride:           1,
		IsSquare:         true,
	})
	assert.NoError(err)
	// Four 1-value rows padded to 2 columns, split into two 2x2 blocks.
	assert.Equal([]int8{1, 0, 3, 0, 0, 0, 0, 0}, out)
}
