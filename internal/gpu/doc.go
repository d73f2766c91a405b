// Package gpu holds the HAL-level machinery behind the public render
// package: the growable sprite atlas and its slot tracker, the
// fixed-layout per-frame uniform block, the WGSL program set for cells,
// cursor, borders and images, and the frame orchestration that strings
// them into render passes.
//
// Everything here expects to run on the single rendering goroutine that
// owns the hal.Device; nothing in this package synchronizes.
package gpu
