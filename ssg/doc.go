// Package ssg builds and queries a satellite system graph, a navigating graph for
// approximate nearest neighbor search.
//
// A build refines a precomputed approximate k-NN candidate graph in three steps:
// every node's neighborhood is pruned to at most R edges that are short and angularly
// spread (Link, phase 1), accepted edges are reciprocated under per-node locks
// (Link, phase 2), and a connectivity repair pass picks entry points and patches
// nodes that are unreachable from them.
//
// The resulting Graph answers queries with best-first traversal. Graph.Compact repacks
// it into one contiguous buffer per node for faster search; the adjacency lists are
// released in the process and the Graph can no longer be used.
package ssg
