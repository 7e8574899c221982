// Package wal is a length+crc framed append-only log.
//
// Record layout: len uint32 LE | crc32 IEEE uint32 LE | payload.
package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
)

const (
	headerSize      = 8
	defaultFilePerm = 0o644
)

// DefaultMaxPayload bounds a single record so a corrupt length cannot
// allocate unbounded memory.
const DefaultMaxPayload = 4 << 20

var (
	ErrCorruptHeader    = errors.New("wal: corrupt header")
	ErrCorruptPayload   = errors.New("wal: corrupt payload")
	ErrChecksumMismatch = errors.New("wal: checksum mismatch")
	ErrPayloadTooLarge  = errors.New("wal: payload too large")
	ErrClosed           = errors.New("wal: writer closed")
)

type WriterOptions struct {
	BufferSize int
	// SyncEveryAppend fsyncs after each record instead of on Flush/Close.
	SyncEveryAppend bool
}

type Writer struct {
	mu     sync.Mutex
	f      *os.File
	bw     *bufio.Writer
	off    int64
	sync   bool
	closed bool
}

func OpenWrite(path string, opts WriterOptions) (*Writer, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64 << 10
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, defaultFilePerm)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{
		f:    f,
		bw:   bufio.NewWriterSize(f, opts.BufferSize),
		off:  stat.Size(),
		sync: opts.SyncEveryAppend,
	}, nil
}

// Append writes one record and returns the offset just past it.
func (w *Writer) Append(payload []byte) (int64, error) {
	if len(payload) > DefaultMaxPayload {
		return 0, ErrPayloadTooLarge
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}

	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[4:], crc32.ChecksumIEEE(payload))
	if _, err := w.bw.Write(hdr[:]); err != nil {
		return 0, fmt.Errorf("wal: write header: %w", err)
	}
	if _, err := w.bw.Write(payload); err != nil {
		return 0, fmt.Errorf("wal: write payload: %w", err)
	}
	w.off += int64(headerSize + len(payload))

	if w.sync {
		if err := w.flushLocked(); err != nil {
			return 0, err
		}
	}
	return w.off, nil
}

// Offset is the logical end of the log, buffered bytes included.
func (w *Writer) Offset() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.off
}

func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	return w.f.Sync()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.flushLocked(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

type ReaderOptions struct {
	MaxPayload int
	// AllowTruncatedTail treats a half-written last record as a clean end.
	AllowTruncatedTail bool
	BufferSize         int
}

type Reader struct {
	f          *os.File
	br         *bufio.Reader
	off        int64
	maxPayload int
	allowTail  bool

	truncatedTail bool
}

func OpenReader(path string, opts ReaderOptions) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64 << 10
	}
	if opts.MaxPayload <= 0 {
		opts.MaxPayload = DefaultMaxPayload
	}
	return &Reader{
		f:          f,
		br:         bufio.NewReaderSize(f, opts.BufferSize),
		maxPayload: opts.MaxPayload,
		allowTail:  opts.AllowTruncatedTail,
	}, nil
}

func (r *Reader) Close() error { return r.f.Close() }

func (r *Reader) TruncatedTail() bool { return r.truncatedTail }

// Offset is the end of the last complete record read.
func (r *Reader) Offset() int64 { return r.off }

// Next returns the next payload, or io.EOF at a clean end.
func (r *Reader) Next() ([]byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r.br, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, r.tail(ErrCorruptHeader)
		}
		return nil, err
	}

	ln := int(binary.LittleEndian.Uint32(hdr[0:4]))
	crc := binary.LittleEndian.Uint32(hdr[4:8])
	if ln > r.maxPayload {
		return nil, ErrPayloadTooLarge
	}

	payload := make([]byte, ln)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, r.tail(ErrCorruptPayload)
		}
		return nil, err
	}
	if crc32.ChecksumIEEE(payload) != crc {
		return nil, ErrChecksumMismatch
	}
	r.off += int64(headerSize + ln)
	return payload, nil
}

func (r *Reader) tail(corrupt error) error {
	r.truncatedTail = true
	if r.allowTail {
		return io.EOF
	}
	return corrupt
}

type ReplayStats struct {
	Records        int
	LastGoodOffset int64
	TruncatedTail  bool
}

// Replay feeds every record of path to onRecord. A missing file is an empty log.
func Replay(path string, opts ReaderOptions, onRecord func(payload []byte) error) (ReplayStats, error) {
	var st ReplayStats
	r, err := OpenReader(path, opts)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return st, err
	}
	defer r.Close()

	for {
		payload, err := r.Next()
		st.TruncatedTail = r.TruncatedTail()
		if errors.Is(err, io.EOF) {
			return st, nil
		}
		if err != nil {
			return st, err
		}
		if err := onRecord(payload); err != nil {
			return st, err
		}
		st.Records++
		st.LastGoodOffset = r.Offset()
	}
}

// TruncateTo cuts path back to offset, typically ReplayStats.LastGoodOffset
// after a torn tail. Missing files and offsets past the end are no-ops.
func TruncateTo(path string, offset int64) error {
	if offset < 0 {
		return fmt.Errorf("wal: negative truncate offset %d", offset)
	}
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if offset >= st.Size() {
		return nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Truncate(offset); err != nil {
		return err
	}
	return f.Sync()
}
