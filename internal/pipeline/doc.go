// Package pipeline turns delivered payloads into label images: a single
// dispatcher pulls messages off the transport and feeds a bounded worker
// pool, where each task runs the render, crop, resize, save, and print
// stages with per-task failure containment.
package pipeline
