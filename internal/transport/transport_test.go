package transport_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"labelpress/internal/logging"
	"labelpress/internal/services"
	"labelpress/internal/transport"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := transport.Message{
		Filename: "invoice-march.pdf",
		Page:     3,
		Payload:  []byte("%PDF-1.7 payload bytes"),
	}
	if err := transport.WriteMessage(&buf, want); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	got, err := transport.ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Filename != want.Filename || got.Page != want.Page {
		t.Fatalf("mismatched header: %+v", got)
	}
	if !bytes.Equal(got.Payload, want.Payload) {
		t.Fatalf("mismatched payload: %q", got.Payload)
	}
}

func TestReadMessageCleanEOF(t *testing.T) {
	_, err := transport.ReadMessage(bytes.NewReader(nil))
	if err != io.EOF {
		t.Fatalf("expected io.EOF at frame boundary, got %v", err)
	}
}

func TestReadMessageRejectsBadMagic(t *testing.T) {
	_, err := transport.ReadMessage(bytes.NewReader([]byte("XXXX\x00\x04name")))
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestReadMessageRejectsTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	msg := transport.Message{Filename: "doc.pdf", Payload: []byte("full payload")}
	if err := transport.WriteMessage(&buf, msg); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-4]

	_, err := transport.ReadMessage(bytes.NewReader(truncated))
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error for truncated frame, got %v", err)
	}
}

func TestWriteMessageRejectsNegativePage(t *testing.T) {
	err := transport.WriteMessage(io.Discard, transport.Message{Filename: "doc.pdf", Page: -1})
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestSenderReceiverLoopback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	recv, err := transport.Listen(ctx, "127.0.0.1:0", logging.NewNop())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer recv.Close()

	push := transport.NewSender(recv.Addr(), time.Second)
	defer push.Close()

	for page := 0; page < 3; page++ {
		msg := transport.Message{Filename: "scan.pdf", Page: page, Payload: []byte("doc")}
		if err := push.Send(ctx, msg); err != nil {
			t.Fatalf("Send page %d: %v", page, err)
		}
	}

	for page := 0; page < 3; page++ {
		got, err := recv.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if got.Page != page {
			t.Fatalf("out of order: got page %d want %d", got.Page, page)
		}
		if got.Filename != "scan.pdf" {
			t.Fatalf("unexpected filename: %q", got.Filename)
		}
	}
}

func TestReceiverCloseDropsIdleSenderConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	recv, err := transport.Listen(ctx, "127.0.0.1:0", logging.NewNop())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	push := transport.NewSender(recv.Addr(), time.Second)
	defer push.Close()

	// Leave the sender connected but idle, the way a long-running watch
	// process does between documents.
	if err := push.Send(ctx, transport.Message{Filename: "doc.pdf", Payload: []byte("x")}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := recv.Receive(ctx); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	done := make(chan struct{})
	go func() {
		recv.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while a sender connection was idle")
	}
}

func TestSenderNoReceiver(t *testing.T) {
	ctx := context.Background()

	recv, err := transport.Listen(ctx, "127.0.0.1:0", logging.NewNop())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := recv.Addr()
	recv.Close()

	push := transport.NewSender(addr, 200*time.Millisecond)
	defer push.Close()

	err = push.Send(ctx, transport.Message{Filename: "doc.pdf", Payload: []byte("x")})
	if !errors.Is(err, services.ErrNoReceiver) {
		t.Fatalf("expected ErrNoReceiver, got %v", err)
	}
}

func TestReceiveAfterClose(t *testing.T) {
	ctx := context.Background()
	recv, err := transport.Listen(ctx, "127.0.0.1:0", logging.NewNop())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	recv.Close()

	if _, err := recv.Receive(ctx); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
