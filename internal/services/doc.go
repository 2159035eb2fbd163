// Package services defines the error taxonomy and context annotation helpers
// shared by the sender, transport, and processing pipeline.
package services
