// Package contour extracts isosurfaces from regular scalar volumes with the
// marching cubes algorithm.
//
// A Context is bound to one volume at a time. Binding builds a span-space
// histogram of the volume that is reused by every Extract call to pre-size
// the output part. Extraction scans the volume one Z slab at a time, keeping
// four padded planes of samples and a vertex-index cache for the edges of the
// current slab, so that each edge crossing yields exactly one vertex.
//
// Voxel corners are numbered 0-3 counter-clockwise on the lower Z plane and
// 4-7 above them; edges 0-3 and 4-7 run around those planes and edges 8-11
// join corner i to corner i+4.
//
// A Context is not safe for concurrent use. Independent contexts share no
// state and may run in parallel.
package contour
