package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

const (
	bufferSize = 128
	cr         = 0x0D
	backspace  = 0x08
)

// assembler collects bytes into CR-terminated lines.
type assembler struct {
	buf [bufferSize]byte
	n   int
}

// feed consumes one byte. It returns a complete line when b is CR, and
// overflow when the buffer filled before a CR arrived.
func (a *assembler) feed(b byte) (line string, done, overflow bool) {
	a.buf[a.n] = b
	switch {
	case b == cr:
		line = string(a.buf[:a.n])
		a.n = 0
		return line, true, false
	case b == backspace:
		if a.n > 0 {
			a.n--
		}
	case a.n == bufferSize-1:
		a.n = 0
		return "", false, true
	default:
		a.n++
	}
	return "", false, false
}

// Executor runs one command line and returns its output.
type Executor func(line string) string

// Serve reads command lines from rw until ctx is cancelled or the stream
// ends, writing each command's output back. A read that returns no data is
// treated as a poll timeout.
func Serve(ctx context.Context, rw io.ReadWriter, exec Executor) error {
	if _, err := io.WriteString(rw, "NG Debug Port Enabled\n"); err != nil {
		return fmt.Errorf("console write: %w", err)
	}

	var a assembler
	chunk := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := rw.Read(chunk)
		for _, b := range chunk[:n] {
			line, done, overflow := a.feed(b)
			var out string
			switch {
			case overflow:
				out = "NG Buffer overflow\n"
			case done:
				out = exec(line)
			default:
				continue
			}
			if _, werr := io.WriteString(rw, out); werr != nil {
				return fmt.Errorf("console write: %w", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("console read: %w", err)
		}
	}
}

// OpenSerial opens the debug UART at 8N1.
func OpenSerial(name string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	// Lets Serve notice cancellation between bytes.
	if err := port.SetReadTimeout(200 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return port, nil
}
