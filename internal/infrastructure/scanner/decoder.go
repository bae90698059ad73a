// Package scanner turns raw keystroke events into discrete scanned-barcode
// emissions.
//
// Barcode scanners type whole codes as a burst of keystrokes followed by
// Enter. The decoder discriminates scanner bursts from human typing by
// inter-keystroke timing: a gap above the configured threshold resets the
// buffer before the new character is appended, so only characters arriving
// in one burst survive to the Enter.
package scanner

import (
	"sync"
	"time"

	"okuma/internal/core/clock"
	"okuma/pkg/logger"
)

// Event is one raw key press from the global input surface.
type Event struct {
	// Key is the typed character. Ignored when Enter is set.
	Key rune

	// Enter marks the end-of-scan key.
	Enter bool

	// FromTextInput marks events whose target is a text-input-capable
	// control; those belong to deliberate typing and are never buffered.
	FromTextInput bool
}

// Config holds decoder tuning.
type Config struct {
	// KeyTimeout is the scanner-vs-human discriminator: a gap above it
	// resets the buffer. Default 100ms.
	KeyTimeout time.Duration

	// Debounce delays each emission briefly so near-duplicate Enter
	// events collapse into one scan (last write wins). Default 50ms.
	Debounce time.Duration

	// BufferSize is the emission channel capacity. Default 16.
	BufferSize int
}

func (c Config) withDefaults() Config {
	if c.KeyTimeout <= 0 {
		c.KeyTimeout = 100 * time.Millisecond
	}
	if c.Debounce <= 0 {
		c.Debounce = 50 * time.Millisecond
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 16
	}
	return c
}

// Decoder classifies keystrokes and emits completed scans on a channel.
// The consumer never blocks the producer: when the channel is full the
// scan is dropped with a warning.
//
// The decoder emits whatever was buffered; minimum-length policy belongs
// to the consumer.
type Decoder struct {
	cfg   Config
	clock clock.Clock
	log   *logger.Logger

	mu      sync.Mutex
	buf     []rune
	lastKey time.Time
	pending clock.Timer
	value   string
	stopped bool

	out chan string
}

// New creates a Decoder. Call Stop to tear it down.
func New(cfg Config, clk clock.Clock, log *logger.Logger) *Decoder {
	cfg = cfg.withDefaults()
	return &Decoder{
		cfg:   cfg,
		clock: clk,
		log:   log.WithComponent("scanner"),
		out:   make(chan string, cfg.BufferSize),
	}
}

// Scans returns the stream of completed scans. The channel closes on Stop.
func (d *Decoder) Scans() <-chan string {
	return d.out
}

// HandleKey feeds one raw key event into the decoder.
func (d *Decoder) HandleKey(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if ev.Enter {
		if len(d.buf) > 0 {
			d.schedule(string(d.buf))
			d.buf = d.buf[:0]
		}
		d.lastKey = time.Time{}
		return
	}

	if ev.FromTextInput {
		return
	}

	now := d.clock.Now()
	if !d.lastKey.IsZero() && now.Sub(d.lastKey) > d.cfg.KeyTimeout {
		d.buf = d.buf[:0]
	}
	d.buf = append(d.buf, ev.Key)
	d.lastKey = now
}

// Stop tears the decoder down and closes the emission channel. A pending
// debounced emission is cancelled without panicking.
func (d *Decoder) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	close(d.out)
}

// schedule arms the debounced emission; a newer value supersedes an armed
// one. Callers hold d.mu.
func (d *Decoder) schedule(value string) {
	if d.pending != nil {
		d.pending.Stop()
	}
	d.value = value
	d.pending = d.clock.AfterFunc(d.cfg.Debounce, d.emit)
}

func (d *Decoder) emit() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pending = nil

	select {
	case d.out <- d.value:
	default:
		d.log.Warnw("scan dropped, consumer too slow", "barkod", d.value)
	}
}
