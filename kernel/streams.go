// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"fmt"

	"cogentcore.org/lab/base/randx"
)

// Streams maps each virtual process to its own random stream.
// Streams are reproducible for a given first seed and count, and no
// two virtual processes share a stream.
type Streams struct {
	seeds []int64
	rngs  []randx.Rand
}

// NewStreams makes n streams seeded with first, first+1, ..., first+n-1.
func NewStreams(first int64, n int) *Streams {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = first + int64(i)
	}
	return NewStreamsFromSeeds(seeds)
}

// NewStreamsFromSeeds makes one stream per seed.
func NewStreamsFromSeeds(seeds []int64) *Streams {
	st := &Streams{seeds: append([]int64(nil), seeds...), rngs: make([]randx.Rand, len(seeds))}
	for i, s := range st.seeds {
		st.rngs[i] = randx.NewSysRand(s)
	}
	return st
}

// Len returns the number of streams.
func (st *Streams) Len() int {
	return len(st.rngs)
}

// Seeds returns the seed of each stream.
func (st *Streams) Seeds() []int64 {
	return append([]int64(nil), st.seeds...)
}

// VP returns the stream owned by virtual process vp.
func (st *Streams) VP(vp int) (randx.Rand, error) {
	if vp < 0 || vp >= len(st.rngs) {
		return nil, fmt.Errorf("no random stream for virtual process %d of %d", vp, len(st.rngs))
	}
	return st.rngs[vp], nil
}

// SeedPlan is the derivation of every seed of a run from the master seed
// m and the number of virtual processes n: the assembler streams use
// m..m+n-1, the kernel global stream m+n, the kernel per-VP streams
// m+n+1..m+2n.
type SeedPlan struct {
	Master int64
	NVP    int
}

// Assembler returns the first seed of the assembler streams.
func (sp SeedPlan) Assembler() int64 {
	return sp.Master
}

// Global returns the seed of the kernel global stream.
func (sp SeedPlan) Global() int64 {
	return sp.Master + int64(sp.NVP)
}

// VPSeeds returns the kernel per-VP seeds.
func (sp SeedPlan) VPSeeds() []int64 {
	seeds := make([]int64, sp.NVP)
	for i := range seeds {
		seeds[i] = sp.Master + int64(sp.NVP) + 1 + int64(i)
	}
	return seeds
}
