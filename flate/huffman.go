package flate

import (
	"math"
	"sort"
)

// A huffmanNode is a node of a Huffman tree under construction. Leaves have
// left == -1 and hold their symbol in rightOrValue.
type huffmanNode struct {
	count        uint32
	left         int16
	rightOrValue int16
}

// buildDepths sets depth[i] to the code length of symbol i in a Huffman
// code for histogram whose lengths do not exceed maxDepth (at most 15).
//
// If fewer than two symbols occur, extra symbols are given 1-bit codes so
// that the code is always complete.
func buildDepths(histogram []uint, maxDepth int, depth []uint8, tree []huffmanNode) []huffmanNode {
	for i := range depth {
		depth[i] = 0
	}

	n := 0
	for _, c := range histogram {
		if c != 0 {
			n++
		}
	}
	if n < 2 {
		used := 0
		for i, c := range histogram {
			if c != 0 || (n+used < 2 && i < 2) {
				depth[i] = 1
				if c == 0 {
					used++
				}
			}
		}
		return tree
	}

	if cap(tree) < 2*n+1 {
		tree = make([]huffmanNode, 2*n+1)
	}
	tree = tree[:2*n+1]

	// If the tree is too deep, raise the smallest counts and try again.
	for countLimit := uint32(1); ; countLimit *= 2 {
		node := 0
		for l := len(histogram) - 1; l >= 0; l-- {
			if histogram[l] == 0 {
				continue
			}
			c := uint32(math.MaxUint32 / 2)
			if histogram[l] < uint(c) {
				c = uint32(histogram[l])
			}
			if c < countLimit {
				c = countLimit
			}
			tree[node] = huffmanNode{count: c, left: -1, rightOrValue: int16(l)}
			node++
		}

		leaves := tree[:n]
		sort.SliceStable(leaves, func(i, j int) bool {
			return leaves[i].count < leaves[j].count
		})

		// The nodes are:
		//  [0, n): the sorted leaves.
		//  [n]: a sentinel.
		//  [n+1, 2n): parent nodes, added in ascending order of count.
		//  [2n]: a sentinel at the end.
		sentinel := huffmanNode{count: math.MaxUint32, left: -1, rightOrValue: -1}
		tree[node] = sentinel
		node++
		tree[node] = sentinel
		node++

		i, j := 0, n+1
		for k := n - 1; k > 0; k-- {
			var left, right int
			if tree[i].count <= tree[j].count {
				left = i
				i++
			} else {
				left = j
				j++
			}
			if tree[i].count <= tree[j].count {
				right = i
				i++
			} else {
				right = j
				j++
			}

			// The sentinel becomes the parent node.
			tree[node-1].count = tree[left].count + tree[right].count
			tree[node-1].left = int16(left)
			tree[node-1].rightOrValue = int16(right)

			tree[node] = sentinel
			node++
		}

		if setDepth(2*n-1, tree, depth, maxDepth) {
			return tree
		}
	}
}

// setDepth walks the tree from p0, storing the depth of each leaf.
// It reports false if some leaf is deeper than maxDepth.
func setDepth(p0 int, pool []huffmanNode, depth []uint8, maxDepth int) bool {
	var stack [16]int
	level := 0
	p := p0
	stack[0] = -1
	for {
		if pool[p].left >= 0 {
			level++
			if level > maxDepth {
				return false
			}
			stack[level] = int(pool[p].rightOrValue)
			p = int(pool[p].left)
			continue
		}
		depth[pool[p].rightOrValue] = uint8(level)

		for level >= 0 && stack[level] == -1 {
			level--
		}
		if level < 0 {
			return true
		}
		p = stack[level]
		stack[level] = -1
	}
}

var reverseBitsLUT = [16]uint16{
	0x00, 0x08, 0x04, 0x0C, 0x02, 0x0A, 0x06, 0x0E,
	0x01, 0x09, 0x05, 0x0D, 0x03, 0x0B, 0x07, 0x0F,
}

// reverseBits reverses the low numBits bits of bits.
func reverseBits(numBits uint, bits uint16) uint16 {
	retval := reverseBitsLUT[bits&0x0F]
	for i := uint(4); i < numBits; i += 4 {
		retval <<= 4
		bits >>= 4
		retval |= reverseBitsLUT[bits&0x0F]
	}
	retval >>= (0 - numBits) & 0x03
	return retval
}

const maxHuffmanBits = 16

// convertBitDepthsToSymbols assigns canonical Huffman codes for depth,
// bit-reversed so they can be written least-significant bit first.
func convertBitDepthsToSymbols(depth []uint8, codes []uint16) {
	var blCount [maxHuffmanBits]uint16
	var nextCode [maxHuffmanBits]uint16

	for _, d := range depth {
		blCount[d]++
	}
	blCount[0] = 0

	code := 0
	for i := 1; i < maxHuffmanBits; i++ {
		code = (code + int(blCount[i-1])) << 1
		nextCode[i] = uint16(code)
	}

	for i, d := range depth {
		if d != 0 {
			codes[i] = reverseBits(uint(d), nextCode[d])
			nextCode[d]++
		} else {
			codes[i] = 0
		}
	}
}
