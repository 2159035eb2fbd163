package transport

// Message is the wire-level envelope carrying exactly one payload: the raw
// document bytes for one source file, optionally narrowed to a single page.
type Message struct {
	Filename string
	Page     int
	Payload  []byte
}
