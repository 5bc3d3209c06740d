// Package reshape provides the host-side tensor layout transforms used
// between accelerator layers: the blocked vector layout the device
// consumes, matrix and 4-D tensor views, and the im2row lowering that
// turns a convolution into a matrix product.
package reshape

import "fmt"

// Matrix is a row-major 2-D view of int8 data.
type Matrix = [][]int8

// Tensor is a (batch, channel, height, width) view of int8 data.
type Tensor = [][][][]int8

// ToBlocks splits a flat blocked vector into a 2-D grid of block
// matrices: blockCol blocks per row, square blocks of blockSize except a
// possibly shorter last row of blocks.
func ToBlocks(vector []int8, blockCol, blockSize int) [][]Matrix {
	perFullRow := blockCol * blockSize * blockSize
	fullRows := len(vector) / perFullRow
	remaining := len(vector) % perFullRow

	var grid [][]Matrix
	for i := 0; i < fullRows; i++ {
		row := make([]Matrix, blockCol)
		for j := 0; j < blockCol; j++ {
			start := (i*blockCol + j) * blockSize * blockSize
			block := make(Matrix, blockSize)
			for r := 0; r < blockSize; r++ {
				block[r] = make([]int8, blockSize)
				copy(block[r], vector[start+r*blockSize:start+(r+1)*blockSize])
			}
			row[j] = block
		}
		grid = append(grid, row)
	}

	if remaining > 0 {
		perBlock := remaining / blockCol
		subHeight := perBlock / blockSize
		base := fullRows * perFullRow
		row := make([]Matrix, blockCol)
		for j := 0; j < blockCol; j++ {
			flat := make([]int8, 0, subHeight*blockSize)
			start := base + j*perBlock
			end := start + perBlock
			if end > len(vector) {
				end = len(vector)
			}
			flat = append(flat, vector[start:end]...)
			for len(flat) < subHeight*blockSize {
				flat = append(flat, 0)
			}
			block := make(Matrix, subHeight)
			for r := 0; r < subHeight; r++ {
				block[r] = make([]int8, blockSize)
				copy(block[r], flat[r*blockSize:(r+1)*blockSize])
			}
			row[j] = block
		}
		grid = append(grid, row)
	}
	return grid
}

// Unsplit reassembles a matrix of the given unpadded size from a block
// grid produced by ToBlocks. Padding that falls outside the target shape
// is dropped.
func Unsplit(grid [][]Matrix, blockSize, height, width int) Matrix {
	out := make(Matrix, height)
	for i := range out {
		out[i] = make([]int8, width)
	}
	for i := 0; i < height; i++ {
		for j := 0; j < width; j++ {
			bi, bj := i/blockSize, j/blockSize
			r, c := i%blockSize, j%blockSize
			if bi < len(grid) && bj < len(grid[bi]) {
				block := grid[bi][bj]
				if r < len(block) && c < len(block[r]) {
					out[i][j] = block[r][c]
				}
			}
		}
	}
	return out
}

// MatToTensor rearranges a result matrix into a (batch, channel, height,
// width) tensor, transposing the matrix in the process.
func MatToTensor(res Matrix, batch, channels, height, width int) Tensor {
	tensor := make(Tensor, batch)
	for b := range tensor {
		tensor[b] = make([][][]int8, channels)
		for c := range tensor[b] {
			tensor[b][c] = make(Matrix, height)
			for y := range tensor[b][c] {
				tensor[b][c][y] = make([]int8, width)
			}
		}
	}
	idx := 0
	for h := 0; h < len(res[0]); h++ {
		for w := 0; w < len(res); w++ {
			b := idx / (channels * height * width)
			rem := idx % (channels * height * width)
			c := rem / (height * width)
			rem = rem % (height * width)
			y := rem / width
			x := rem % width
			if b < batch && c < channels && y < height && x < width {
				tensor[b][c][y][x] = res[w][h]
			}
			idx++
		}
	}
	return tensor
}

// Im2Row flattens each convolution window of the input tensor into one
// matrix row: shape (batch*outH*outW, channels*kh*kw).
func Im2Row(x Tensor, kernelH, kernelW, stride int) Matrix {
	batch := len(x)
	channels := len(x[0])
	inH := len(x[0][0])
	inW := len(x[0][0][0])
	outH := (inH-kernelH)/stride + 1
	outW := (inW-kernelW)/stride + 1

	out := make(Matrix, 0, batch*outH*outW)
	for b := 0; b < batch; b++ {
		for i := 0; i+kernelH <= inH; i += stride {
			for j := 0; j+kernelW <= inW; j += stride {
				row := make([]int8, 0, channels*kernelH*kernelW)
				for c := 0; c < channels; c++ {
					for ki := 0; ki < kernelH; ki++ {
						for kj := 0; kj < kernelW; kj++ {
							row = append(row, x[b][c][i+ki][j+kj])
						}
					}
				}
				out = append(out, row)
			}
		}
	}
	return out
}

// MatrixPadding pads a matrix up to the next multiple of blockSize.
// Weight and square matrices pad both dimensions; otherwise only the
// columns grow.
func MatrixPadding(m Matrix, blockSize int, isWeight, isSquare bool) Matrix {
	rows, cols := len(m), len(m[0])
	targetRows := rows
	if isWeight || isSquare {
		targetRows = ((rows-1)/blockSize + 1) * blockSize
	}
	targetCols := ((cols-1)/blockSize + 1) * blockSize

	out := make(Matrix, targetRows)
	for i := range out {
		out[i] = make([]int8, targetCols)
		if i < rows {
			copy(out[i], m[i])
		}
	}
	return out
}

// MatrixSplitting slices a padded matrix into row-major blocks of
// blockSize columns each and returns them with the per-row block count.
// Square and weight matrices are cut into square blocks; otherwise the
// final row of blocks may be shorter.
func MatrixSplitting(m Matrix, blockSize int, isWeight, isSquare bool) ([]Matrix, int, error) {
	rows, cols := len(m), len(m[0])
	if cols%blockSize != 0 {
		return nil, 0, fmt.Errorf("reshape: matrix width %d is not a multiple of block size %d", cols, blockSize)
	}
	blocksCol := cols / blockSize

	var blocks []Matrix
	if isWeight || isSquare {
		if rows%blockSize != 0 {
			return nil, 0, fmt.Errorf("reshape: matrix height %d is not a multiple of block size %d", rows, blockSize)
		}
		for i := 0; i < rows/blockSize; i++ {
			for j := 0; j < blocksCol; j++ {
				block := make(Matrix, blockSize)
				for r := 0; r < blockSize; r++ {
					block[r] = make([]int8, blockSize)
					copy(block[r], m[i*blockSize+r][j*blockSize:(j+1)*blockSize])
				}
				blocks = append(blocks, block)
			}
		}
	} else {
		for i := 0; i < (rows+blockSize-1)/blockSize; i++ {
			rowStart := i * blockSize
			rowEnd := rowStart + blockSize
			if rowEnd > rows {
				rowEnd = rows
			}
			for j := 0; j < blocksCol; j++ {
				block := make(Matrix, rowEnd-rowStart)
				for r := range block {
					block[r] = make([]int8, blockSize)
					copy(block[r], m[rowStart+r][j*blockSize:(j+1)*blockSize])
				}
				blocks = append(blocks, block)
			}
		}
	}
	return blocks, blocksCol, nil
}

// Params collects the shape arguments of the full Reshape pipeline.
type Params struct {
	BlockCol         int
	BlockSize        int
	OutMatrixHeight  int
	OutMatrixWidth   int
	BatchSize        int
	OutTensorChannel int
	OutTensorHeight  int
	OutTensorWidth   int
	KernelH          int
	KernelW          int
	Stride           int
	IsSquare         bool
}

// Reshape converts one layer's blocked output vector into the next
// layer's blocked input vector: blocks -> matrix -> tensor -> im2row ->
// padded matrix -> blocks -> vector.
func Reshape(vector []int8, p Params) ([]int8, error) {
	grid := ToBlocks(vector, p.BlockCol, p.BlockSize)
	matrix := Unsplit(grid, p.BlockSize, p.OutMatrixHeight, p.OutMatrixWidth)
	tensor := MatToTensor(matrix, p.BatchSize, p.OutTensorChannel, p.OutTensorHeight, p.OutTensorWidth)
	rows := Im2Row(tensor, p.KernelH, p.KernelW, p.Stride)
	padded := MatrixPadding(rows, p.BlockSize, false, p.IsSquare)
	blocks, _, err := MatrixSplitting(padded, p.BlockSize, false, p.IsSquare)
	if err != nil {
		return nil, err
	}

	var out []int8
	for _, block := range blocks {
		for _, row := range block {
			out = append(out, row...)
		}
	}
	return out, nil
}
