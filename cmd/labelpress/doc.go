// Package main hosts the labelpress CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon, directory watching, one-shot document submission, job
// listing, and configuration scaffolding.
package main
