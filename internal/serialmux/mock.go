package serialmux

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/wayfinder/internal/lcr"
)

// SimulatedBoard is an in-memory SerialPorter that behaves like the actuator
// firmware: every command line written to it is answered with the [PARSE],
// [QUEUE] and [EXEC] lines the real board prints. It backs -dev mode.
type SimulatedBoard struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  bytes.Buffer // partial command line
	out      bytes.Buffer // lines waiting to be read
	closed   bool
	duration time.Duration
	executed uint64
}

// NewSimulatedBoard returns a board that reports each command as running
// for pulse.
func NewSimulatedBoard(pulse time.Duration) *SimulatedBoard {
	b := &SimulatedBoard{duration: pulse}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// NewSimulatedSerialMux creates a SerialMux backed by a SimulatedBoard.
func NewSimulatedSerialMux() *SerialMux[*SimulatedBoard] {
	return NewSerialMux(NewSimulatedBoard(40 * time.Millisecond))
}

// Write accepts command bytes and queues the board's replies.
func (b *SimulatedBoard) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, errors.New("serial port closed")
	}
	b.pending.Write(p)
	for {
		line, err := b.pending.ReadString('\n')
		if err != nil {
			// incomplete line, keep it for the next write
			b.pending.Reset()
			b.pending.WriteString(line)
			break
		}
		b.respond(strings.TrimSpace(line))
	}
	b.cond.Broadcast()
	return len(p), nil
}

func (b *SimulatedBoard) respond(line string) {
	if line == "" {
		return
	}
	fmt.Fprintf(&b.out, "[PARSE] msg = %s\n", line)
	cmd, err := lcr.Parse(line)
	if err != nil {
		b.out.WriteString("[ERROR] Invalid command format\n")
		return
	}
	b.out.WriteString("[QUEUE] Added command\n")
	b.executed++
	fmt.Fprintf(&b.out, "[EXEC] UPP=%d GAU=%d DRO=%d DUR=%d\n",
		toPWM(cmd.Center), toPWM(cmd.Left), toPWM(cmd.Right), b.duration.Milliseconds())
}

// toPWM scales an intensity in [0,100] to the board's 8-bit duty cycle.
func toPWM(v int) int {
	return v * 255 / 100
}

// Read blocks until reply lines are available or the board is closed.
func (b *SimulatedBoard) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.out.Len() == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.out.Len() == 0 {
		return 0, io.EOF
	}
	return b.out.Read(p)
}

// Close releases blocked readers.
func (b *SimulatedBoard) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
	return nil
}

// Executed returns how many well-formed commands the board has run.
func (b *SimulatedBoard) Executed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.executed
}

// TestableSerialPort implements SerialPorter with configurable behaviour for testing.
// It provides fine-grained control over reads, writes and errors.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// ShortWrite makes Write report one byte fewer than it was given
	ShortWrite bool

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// WriteCalls records the number of Write calls
	WriteCalls int

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	readCond *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read reads from the read buffer, optionally blocking and returning errors.
func (t *TestableSerialPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("serial port closed")
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if t.BlockReads && t.ReadBuffer.Len() == 0 {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, errors.New("serial port closed")
		}
	}

	return t.ReadBuffer.Read(p)
}

// Write writes to the write buffer, optionally returning errors.
func (t *TestableSerialPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++

	if t.Closed {
		return 0, errors.New("serial port closed")
	}

	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	n, err = t.WriteBuffer.Write(p)
	if t.ShortWrite && n > 0 {
		n--
	}
	return n, err
}

// Close marks the port as closed.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast() // Wake up any blocked readers

	return t.CloseError
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Signal() // Wake up a blocked reader
}

// GetWrittenData returns all data written to the port.
func (t *TestableSerialPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]byte(nil), t.WriteBuffer.Bytes()...)
}

// SetWriteError makes the next Write fail with err.
func (t *TestableSerialPort) SetWriteError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.WriteError = err
}
