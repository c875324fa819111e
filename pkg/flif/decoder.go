// Package flif decodes progressive lossless FLIF-style images.
//
// A Decoder is configured, run once over a byte source and then queried for
// its frames. Decoding can be limited by quality, scale or target size,
// observed through a progress callback and aborted from another goroutine.
package flif

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	engine "github.com/jdeng/goflif/internal/flif"
	"github.com/jdeng/goflif/internal/source"
)

// Errors returned by the decoder. Use errors.Is to classify them.
var (
	ErrIO                   = source.ErrIO
	ErrInvalidHeader        = engine.ErrInvalidHeader
	ErrStreamTruncated      = engine.ErrStreamTruncated
	ErrInvalidSymbolContext = engine.ErrInvalidSymbolContext
	ErrChecksumMismatch     = engine.ErrChecksumMismatch
	ErrIndexOutOfRange      = engine.ErrIndexOutOfRange
	ErrInvalidOption        = engine.ErrInvalidOption
	ErrConfigLocked         = engine.ErrConfigLocked
	ErrAlreadyDecoded       = engine.ErrAlreadyDecoded
	ErrClosed               = engine.ErrClosed
)

// ProgressFunc receives the checkpoint (0-10000) and the bytes consumed
// after a pass and returns the checkpoint of the next call. Returning a
// value not above quality, such as StopDecoding, ends decoding early.
type ProgressFunc = engine.ProgressFunc

// StopDecoding is returned by a ProgressFunc to end decoding.
const StopDecoding = engine.StopDecoding

// MaxQuality is the checkpoint of a complete decode.
const MaxQuality = engine.MaxQuality

// Options configures decoding.
type Options struct {
	// CRCCheck verifies the stream checksum when one is present.
	CRCCheck bool
	// Quality caps decoding, 0-100.
	Quality int
	// Scale downsamples by a power of two.
	Scale int
	// ResizeWidth and ResizeHeight pick the coarsest power-of-two scale
	// that still covers them.
	ResizeWidth  int
	ResizeHeight int
	// Callback is called after passes as the checkpoint advances.
	Callback ProgressFunc
	// FirstCallbackQuality is the checkpoint (0-10000) of the first call.
	FirstCallbackQuality int32
	// Logger receives progress and diagnostics. Defaults to the logrus
	// standard logger.
	Logger logrus.FieldLogger
}

// DefaultOptions decodes everything without checksum verification.
func DefaultOptions() Options {
	return Options{Quality: 100, Scale: 1}
}

// Status is the lifecycle state of a Decoder.
type Status int

const (
	// StatusIdle indicates the decoder has not started.
	StatusIdle Status = iota
	// StatusRunning indicates a decode is in progress.
	StatusRunning
	// StatusCompleted indicates decoding stopped normally.
	StatusCompleted
	// StatusAborted indicates decoding was aborted or cancelled.
	StatusAborted
	// StatusFailed indicates the stream could not be decoded.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusRunning:
		return "Running"
	case StatusCompleted:
		return "Completed"
	case StatusAborted:
		return "Aborted"
	case StatusFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func statusOf(s engine.State) Status {
	switch s {
	case engine.StateIdle:
		return StatusIdle
	case engine.StateRunning:
		return StatusRunning
	case engine.StateCompleted:
		return StatusCompleted
	case engine.StateAborted:
		return StatusAborted
	}
	return StatusFailed
}

// StatusCode condenses a decode outcome for callers that report exit codes.
type StatusCode int

const (
	// CodeOK indicates success.
	CodeOK StatusCode = iota
	// CodeInvalidStream indicates a truncated, corrupt or tampered stream.
	CodeInvalidStream
	// CodeIOError indicates the source could not be read.
	CodeIOError
	// CodeAborted indicates the decode was aborted on request.
	CodeAborted
	// CodeUsage indicates a caller error such as a bad option.
	CodeUsage
)

func (c StatusCode) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeInvalidStream:
		return "InvalidStream"
	case CodeIOError:
		return "IOError"
	case CodeAborted:
		return "Aborted"
	case CodeUsage:
		return "Usage"
	default:
		return fmt.Sprintf("StatusCode(%d)", int(c))
	}
}

// StatusCodeOf maps the result of a decode call to a StatusCode.
func StatusCodeOf(s Status, err error) StatusCode {
	switch {
	case errors.Is(err, ErrIO):
		return CodeIOError
	case s == StatusAborted:
		return CodeAborted
	case errors.Is(err, ErrInvalidHeader), errors.Is(err, ErrStreamTruncated),
		errors.Is(err, ErrInvalidSymbolContext), errors.Is(err, ErrChecksumMismatch):
		return CodeInvalidStream
	case err != nil:
		return CodeUsage
	}
	return CodeOK
}

// Stats reports decode progress.
type Stats = engine.Stats

// Decoder decodes one stream.
type Decoder struct {
	decoder *engine.Decoder
}

// New creates a decoder with the provided options.
func New(opts Options) (*Decoder, error) {
	d, err := engine.NewDecoder(engine.Options{
		CRCCheck:             opts.CRCCheck,
		Quality:              opts.Quality,
		Scale:                opts.Scale,
		ResizeWidth:          opts.ResizeWidth,
		ResizeHeight:         opts.ResizeHeight,
		Callback:             opts.Callback,
		FirstCallbackQuality: opts.FirstCallbackQuality,
		Logger:               opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Decoder{decoder: d}, nil
}

// NewDecoder creates a decoder with DefaultOptions.
func NewDecoder() *Decoder {
	d, err := New(DefaultOptions())
	if err != nil {
		panic(err)
	}
	return d
}

// SetCRCCheck enables checksum verification.
func (d *Decoder) SetCRCCheck(on bool) error { return d.decoder.SetCRCCheck(on) }

// SetQuality caps decoding quality, 0-100.
func (d *Decoder) SetQuality(q int) error { return d.decoder.SetQuality(q) }

// SetScale sets the power-of-two downscale factor.
func (d *Decoder) SetScale(s int) error { return d.decoder.SetScale(s) }

// SetResize sets the target dimensions.
func (d *Decoder) SetResize(width, height int) error { return d.decoder.SetResize(width, height) }

// SetCallback registers the progress callback.
func (d *Decoder) SetCallback(fn ProgressFunc) error { return d.decoder.SetCallback(fn) }

// SetFirstCallbackQuality sets the checkpoint (0-10000) of the first
// callback.
func (d *Decoder) SetFirstCallbackQuality(q int32) error {
	return d.decoder.SetFirstCallbackQuality(q)
}

// SetLogger replaces the logger.
func (d *Decoder) SetLogger(l logrus.FieldLogger) error { return d.decoder.SetLogger(l) }

// DecodeFile decodes the file at path. Compressed files are unwrapped.
func (d *Decoder) DecodeFile(path string) (Status, error) {
	data, err := source.Load(path)
	if err != nil {
		return d.fail(err)
	}
	return d.DecodeMemory(data)
}

// DecodeMemory decodes an in-memory stream.
func (d *Decoder) DecodeMemory(data []byte) (Status, error) {
	return d.DecodeContext(context.Background(), data)
}

// Decode reads r to the end and decodes it.
func (d *Decoder) Decode(r io.Reader) (Status, error) {
	data, err := source.ReadAll(r)
	if err != nil {
		return d.fail(err)
	}
	if data, _, err = source.Unwrap(data); err != nil {
		return d.fail(err)
	}
	return d.DecodeMemory(data)
}

// DecodeContext decodes data, stopping at the next pass boundary once ctx
// is done.
func (d *Decoder) DecodeContext(ctx context.Context, data []byte) (Status, error) {
	st, err := d.decoder.Decode(ctx, data)
	return statusOf(st), err
}

// fail reports a source error without starting the engine.
func (d *Decoder) fail(err error) (Status, error) {
	if st := d.decoder.State(); st != engine.StateIdle {
		return statusOf(st), ErrAlreadyDecoded
	}
	return StatusFailed, err
}

// Status returns the current state.
func (d *Decoder) Status() Status { return statusOf(d.decoder.State()) }

// NumImages returns the number of frames available.
func (d *Decoder) NumImages() int { return d.decoder.NumImages() }

// NumLoops returns the animation loop count, 0 meaning forever.
func (d *Decoder) NumLoops() int { return d.decoder.NumLoops() }

// Image returns frame i.
func (d *Decoder) Image(i int) (*Image, error) {
	fr, err := d.decoder.Frame(i)
	if err != nil {
		return nil, err
	}
	return &Image{frame: fr}, nil
}

// Abort stops a running decode at the next pass boundary, or prevents a
// later one from starting.
func (d *Decoder) Abort() error { return d.decoder.Abort() }

// Close releases the decoder's frames.
func (d *Decoder) Close() error { return d.decoder.Close() }

// Stats returns decode progress.
func (d *Decoder) Stats() Stats { return d.decoder.Stats() }

// Info describes a stream.
type Info struct {
	Width      int
	Height     int
	Channels   int
	Depth      int
	Frames     int
	Loops      int
	Interlaced bool
	Format     PixelFormat
}

func infoOf(h engine.Header) Info {
	depth := 0
	for _, v := range h.Depths {
		if v > depth {
			depth = v
		}
	}
	return Info{
		Width:      h.Width,
		Height:     h.Height,
		Channels:   h.Planes,
		Depth:      depth,
		Frames:     h.Frames,
		Loops:      h.Loops,
		Interlaced: h.Interlaced,
		Format:     h.Format(),
	}
}

// Info returns the stream description once the header has been read.
func (d *Decoder) Info() (Info, bool) {
	h, ok := d.decoder.Header()
	if !ok {
		return Info{}, false
	}
	return infoOf(h), true
}
