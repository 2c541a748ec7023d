// Package dataset reads and writes the binary inputs of a satellite system graph build:
// TEXMEX fvecs/ivecs vector files and efanna style k-NN graph files.
//
// Input files are memory-mapped read-only where the platform supports it and the
// decoded values are copied out, so nothing returned by this package aliases a mapping.
package dataset
