package flif

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// State is the lifecycle state of a Decoder.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateAborted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateCompleted:
		return "Completed"
	case StateAborted:
		return "Aborted"
	case StateFailed:
		return "Failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Terminal reports whether s is one of the end states.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateFailed
}

// ProgressFunc is invoked after a pass once the checkpoint reaches the
// current trigger. quality is the checkpoint (0-10000) and bytesRead the
// number of input bytes consumed. The return value is the next trigger; a
// value not above quality stops decoding with the frames decoded so far.
type ProgressFunc func(quality int32, bytesRead int64) uint32

// StopDecoding is the canonical return value of a ProgressFunc that wants
// decoding to end.
const StopDecoding uint32 = 0

// MaxQuality is the checkpoint of a fully decoded stream.
const MaxQuality = 10000

var errAborted = errors.New("flif: decode aborted")

// Options configures a Decoder. Start from DefaultOptions.
type Options struct {
	// CRCCheck verifies the payload checksum when the stream carries one.
	CRCCheck bool
	// Quality caps decoding at a checkpoint of Quality*100; 100 decodes
	// everything.
	Quality int
	// Scale is a power of two downscale factor.
	Scale int
	// ResizeWidth and ResizeHeight request the smallest power-of-two
	// downscale that still covers them. Zero leaves a dimension free.
	ResizeWidth  int
	ResizeHeight int

	Callback             ProgressFunc
	FirstCallbackQuality int32

	Logger logrus.FieldLogger
}

// DefaultOptions returns options that decode everything without checks.
func DefaultOptions() Options {
	return Options{Quality: 100, Scale: 1}
}

func (o *Options) validate() error {
	if o.Quality < 0 || o.Quality > 100 {
		return fmt.Errorf("%w: quality %d not in [0,100]", ErrInvalidOption, o.Quality)
	}
	if o.Scale == 0 {
		o.Scale = 1
	}
	if !isPowerOfTwo(o.Scale) {
		return fmt.Errorf("%w: scale %d is not a power of two", ErrInvalidOption, o.Scale)
	}
	if o.ResizeWidth < 0 || o.ResizeHeight < 0 {
		return fmt.Errorf("%w: resize %dx%d", ErrInvalidOption, o.ResizeWidth, o.ResizeHeight)
	}
	if o.FirstCallbackQuality < 0 || o.FirstCallbackQuality > MaxQuality {
		return fmt.Errorf("%w: first callback quality %d not in [0,%d]", ErrInvalidOption, o.FirstCallbackQuality, MaxQuality)
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return nil
}

// Stats summarises the work done so far.
type Stats struct {
	Passes        int
	PixelsDecoded int64
	Quality       int32
	BytesRead     int64
}

// Decoder drives one stream from its header to the last pass its limits
// allow. Decode runs on one goroutine; Abort, Frame and the query methods
// may be called from others at any time.
type Decoder struct {
	mu   sync.Mutex
	opts Options

	state  atomic.Int32
	abort  atomic.Bool
	closed atomic.Bool

	frames FrameBuffer
	header atomic.Pointer[Header]
	stats  atomic.Pointer[Stats]
}

// NewDecoder validates opts and returns an idle decoder.
func NewDecoder(opts Options) (*Decoder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	d := &Decoder{opts: opts}
	d.stats.Store(&Stats{})
	return d, nil
}

func (d *Decoder) configure(fn func(o *Options)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed.Load() {
		return ErrClosed
	}
	if State(d.state.Load()) != StateIdle {
		return ErrConfigLocked
	}
	next := d.opts
	fn(&next)
	if err := next.validate(); err != nil {
		return err
	}
	d.opts = next
	return nil
}

// SetCRCCheck enables or disables checksum verification.
func (d *Decoder) SetCRCCheck(on bool) error {
	return d.configure(func(o *Options) { o.CRCCheck = on })
}

// SetQuality sets the quality cap in [0,100].
func (d *Decoder) SetQuality(q int) error {
	return d.configure(func(o *Options) { o.Quality = q })
}

// SetScale sets the power-of-two downscale factor.
func (d *Decoder) SetScale(s int) error {
	return d.configure(func(o *Options) { o.Scale = s })
}

// SetResize sets the target output dimensions.
func (d *Decoder) SetResize(width, height int) error {
	return d.configure(func(o *Options) { o.ResizeWidth, o.ResizeHeight = width, height })
}

// SetCallback registers the progress callback.
func (d *Decoder) SetCallback(fn ProgressFunc) error {
	return d.configure(func(o *Options) { o.Callback = fn })
}

// SetFirstCallbackQuality sets the checkpoint of the first callback.
func (d *Decoder) SetFirstCallbackQuality(q int32) error {
	return d.configure(func(o *Options) { o.FirstCallbackQuality = q })
}

// SetLogger replaces the logger.
func (d *Decoder) SetLogger(l logrus.FieldLogger) error {
	return d.configure(func(o *Options) { o.Logger = l })
}

// State returns the current lifecycle state.
func (d *Decoder) State() State { return State(d.state.Load()) }

// Abort asks a running decode to stop at the next pass boundary. Called
// before Decode, it makes Decode return Aborted without reading anything.
func (d *Decoder) Abort() error {
	if d.closed.Load() {
		return ErrClosed
	}
	d.abort.Store(true)
	return nil
}

// Close releases the published frames. A running decode is aborted.
func (d *Decoder) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	d.abort.Store(true)
	d.frames.set.Store(nil)
	return nil
}

// NumImages returns the number of frames available.
func (d *Decoder) NumImages() int { return d.frames.Count() }

// NumLoops returns the loop count of an animation, 0 meaning forever.
func (d *Decoder) NumLoops() int { return d.frames.Loops() }

// Frame returns the latest snapshot of frame i.
func (d *Decoder) Frame(i int) (*Frame, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	return d.frames.Frame(i)
}

// Header returns the stream header once it has been read.
func (d *Decoder) Header() (Header, bool) {
	h := d.header.Load()
	if h == nil {
		return Header{}, false
	}
	return *h, true
}

// Stats returns the progress made by the last completed pass.
func (d *Decoder) Stats() Stats { return *d.stats.Load() }

// Decode decodes data pass by pass until the stream ends, a limit is reached,
// the callback asks to stop or the decode is aborted. It returns the terminal
// state. An abort is not an error; cancellation of ctx is reported as its
// error with StateAborted.
func (d *Decoder) Decode(ctx context.Context, data []byte) (State, error) {
	if d.closed.Load() {
		return d.State(), ErrClosed
	}
	d.mu.Lock()
	if !d.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		d.mu.Unlock()
		return d.State(), ErrAlreadyDecoded
	}
	opts := d.opts
	d.mu.Unlock()

	err := d.run(ctx, &opts, data)
	switch {
	case err == nil:
		d.frames.finalize(true)
		d.state.Store(int32(StateCompleted))
		return StateCompleted, nil
	case errors.Is(err, errAborted):
		d.frames.finalize(false)
		d.state.Store(int32(StateAborted))
		opts.Logger.Info("decode aborted")
		return StateAborted, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		d.frames.finalize(false)
		d.state.Store(int32(StateAborted))
		opts.Logger.WithError(err).Info("decode cancelled")
		return StateAborted, err
	default:
		d.frames.finalize(false)
		d.state.Store(int32(StateFailed))
		opts.Logger.WithError(err).Warn("decode failed")
		return StateFailed, err
	}
}

func (d *Decoder) interrupted(ctx context.Context) error {
	if d.abort.Load() {
		return errAborted
	}
	return ctx.Err()
}

func (d *Decoder) run(ctx context.Context, opts *Options, data []byte) error {
	if err := d.interrupted(ctx); err != nil {
		return err
	}
	log := opts.Logger

	bs := NewBitStream(data)
	hdr, err := ParseHeader(bs)
	if err != nil {
		return err
	}
	payload, complete := bs.Window(hdr.PayloadLength)
	dec := NewArithDecoder(payload)

	var headerCtx IntContexts
	if err := codeSecondHeader(dec, &headerCtx, hdr); err != nil {
		return fmt.Errorf("payload header: %w", err)
	}
	d.header.Store(hdr)
	d.frames.setLoops(hdr.Loops)

	scale := opts.Scale
	if s := resizeScale(hdr.Width, hdr.Height, opts.ResizeWidth, opts.ResizeHeight); s > scale {
		scale = s
	}
	stopZ := 0
	if hdr.Interlaced {
		stopZ = zoomForScale(scale, maxZoom(hdr.Width, hdr.Height))
	} else if scale > 1 {
		log.WithField("scale", scale).Warn("stream is not interlaced, decoding at full resolution before downscaling")
	}

	m := newModel(hdr, stopZ)
	if err := m.codeTrees(dec, nil); err != nil {
		return err
	}
	sched := NewScheduler(hdr, stopZ)
	log.WithFields(logrus.Fields{
		"width":      hdr.Width,
		"height":     hdr.Height,
		"planes":     hdr.Planes,
		"frames":     hdr.Frames,
		"interlaced": hdr.Interlaced,
		"scale":      scale,
		"max_zoom":   sched.MaxZoom(),
		"stop_zoom":  sched.StopZoom(),
		"passes":     sched.Total(),
	}).Debug("header parsed")

	nextTrigger := int64(opts.FirstCallbackQuality)
	var rendered []*Frame
	for {
		if err := d.interrupted(ctx); err != nil {
			return err
		}

		pass := sched.Next()
		if err := m.codePass(dec, pass); err != nil {
			return err
		}

		if hdr.Interlaced {
			rendered = make([]*Frame, hdr.Frames)
			for f := range rendered {
				rendered[f] = m.render(f, pass.Zoom, scale)
				rendered[f].Quality = pass.Checkpoint
			}
		} else {
			fr := m.render(pass.Frame, 0, scale)
			fr.Quality = pass.Checkpoint
			rendered = append(rendered[:len(rendered):len(rendered)], fr)
		}
		d.frames.publish(rendered)

		st := &Stats{
			Passes:    pass.Index + 1,
			Quality:   pass.Checkpoint,
			BytesRead: int64(hdr.PayloadOffset + dec.BytesConsumed()),
		}
		if hdr.Interlaced {
			st.PixelsDecoded = int64(pass.Pixels) * int64(hdr.Frames)
		} else {
			st.PixelsDecoded = int64(pass.Pixels) * int64(pass.Frame+1)
		}
		d.stats.Store(st)
		log.WithFields(logrus.Fields{
			"pass":    pass.Index,
			"zoom":    pass.Zoom,
			"frame":   pass.Frame,
			"quality": pass.Checkpoint,
			"bytes":   st.BytesRead,
		}).Debug("pass complete")

		stop := false
		if opts.Callback != nil && int64(pass.Checkpoint) >= nextTrigger {
			next := opts.Callback(pass.Checkpoint, st.BytesRead)
			stop = int64(next) <= int64(pass.Checkpoint)
			nextTrigger = int64(next)
		}

		if !sched.More() {
			break
		}
		if err := d.interrupted(ctx); err != nil {
			return err
		}
		if stop {
			log.WithField("quality", pass.Checkpoint).Debug("callback stopped decoding")
			return nil
		}
		if opts.Quality < 100 && pass.Checkpoint >= int32(opts.Quality*100) {
			log.WithField("quality", pass.Checkpoint).Debug("quality cap reached")
			return nil
		}
	}

	if hdr.HasCRC && opts.CRCCheck {
		return verifyChecksum(bs, payload, complete)
	}
	return nil
}

// verifyChecksum compares the checksum stored after the payload with the
// payload bytes.
func verifyChecksum(bs, payload *BitStream, complete bool) error {
	if !complete {
		return fmt.Errorf("%w: payload shorter than declared", ErrStreamTruncated)
	}
	want, err := bs.ReadUint32()
	if err != nil {
		return fmt.Errorf("checksum: %w", err)
	}
	if got := crc32.ChecksumIEEE(payload.Bytes()); got != want {
		return fmt.Errorf("%w: stored %08x, computed %08x", ErrChecksumMismatch, want, got)
	}
	return nil
}
