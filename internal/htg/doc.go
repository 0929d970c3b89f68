// Package htg owns the output hyper tree grid: a forest of fixed
// branching-factor trees laid over a regular coarse grid, with per-node
// attribute arrays addressed by global node index and a mask marking nodes
// with no backing data.
//
// Trees are arenas of nodes rather than pointer-linked structures; parent
// and child relationships are index arithmetic, which keeps ownership flat
// and traversal cheap.
package htg
