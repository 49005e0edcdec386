// Package main hosts the revtrack CLI entrypoint and command graph.
//
// The Cobra-based command tree opens the review store once per invocation,
// resolves place URLs, feeds candidate files through collection sessions,
// and surfaces the administrative reads and writes: listings, history,
// soft-delete and restore, pruning, sync and exports. It centralizes
// configuration resolution, logging setup and store lifetime so subcommands
// can focus on output.
//
// Add new functionality by extending the internal packages first, then
// surface it through dedicated commands or flags here.
package main
