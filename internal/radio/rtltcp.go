package radio

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// rtl_tcp command opcodes
const (
	cmdSetFrequency  byte = 0x01
	cmdSetSampleRate byte = 0x02
	cmdSetGainMode   byte = 0x03
	cmdSetGain       byte = 0x04
	cmdSetAGCMode    byte = 0x08
)

const rtlTCPMagic = "RTL0"

// RTLTCPConfig holds connection settings for an rtl_tcp server
type RTLTCPConfig struct {
	Addr         string
	SampleRateHz float64
	Gain         Gain
	DialTimeout  time.Duration
	// Settle is stream time discarded after each retune while the tuner locks
	Settle time.Duration
}

// Drain limits for the backlog queued at the previous frequency
const (
	drainIdle     = 10 * time.Millisecond
	drainLiveGap  = 5 * time.Millisecond
	drainMaxBytes = 32 << 20
)

// RTLTCP talks to an RTL-SDR dongle exposed by rtl_tcp
type RTLTCP struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
	closed bool

	TunerType  uint32
	GainStages uint32

	settleBytes int

	logger zerolog.Logger
}

// DialRTLTCP connects to the server, reads its greeting and applies sample rate and gain
func DialRTLTCP(ctx context.Context, cfg RTLTCPConfig) (*RTLTCP, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rtl_tcp at %s: %w", cfg.Addr, err)
	}

	d := &RTLTCP{
		conn:        conn,
		reader:      bufio.NewReaderSize(conn, 256*1024),
		settleBytes: 2 * int(cfg.SampleRateHz*cfg.Settle.Seconds()),
		logger:      log.With().Str("component", "rtl_tcp").Str("addr", cfg.Addr).Logger(),
	}

	if err := d.readGreeting(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := d.configure(cfg); err != nil {
		conn.Close()
		return nil, err
	}

	d.logger.Info().
		Uint32("tuner_type", d.TunerType).
		Float64("sample_rate_mhz", cfg.SampleRateHz/1e6).
		Str("gain", cfg.Gain.String()).
		Msg("SDR ready")

	return d, nil
}

func (d *RTLTCP) readGreeting(ctx context.Context) error {
	stop := d.bindDeadline(ctx)
	defer stop()

	header := make([]byte, 12)
	if _, err := io.ReadFull(d.reader, header); err != nil {
		return fmt.Errorf("failed to read rtl_tcp greeting: %w", err)
	}
	if string(header[:4]) != rtlTCPMagic {
		return fmt.Errorf("unexpected rtl_tcp greeting %q", header[:4])
	}
	d.TunerType = binary.BigEndian.Uint32(header[4:8])
	d.GainStages = binary.BigEndian.Uint32(header[8:12])
	return nil
}

func (d *RTLTCP) configure(cfg RTLTCPConfig) error {
	if err := d.command(cmdSetSampleRate, uint32(cfg.SampleRateHz)); err != nil {
		return err
	}
	if cfg.Gain.Auto {
		if err := d.command(cmdSetGainMode, 0); err != nil {
			return err
		}
		return d.command(cmdSetAGCMode, 1)
	}
	if err := d.command(cmdSetGainMode, 1); err != nil {
		return err
	}
	// rtl_tcp expects tenths of a dB
	return d.command(cmdSetGain, uint32(math.Round(cfg.Gain.DB*10)))
}

func (d *RTLTCP) command(op byte, param uint32) error {
	var buf [5]byte
	buf[0] = op
	binary.BigEndian.PutUint32(buf[1:], param)
	if _, err := d.conn.Write(buf[:]); err != nil {
		return fmt.Errorf("rtl_tcp command 0x%02x failed: %w", op, err)
	}
	return nil
}

// Tune retunes the dongle and drops samples buffered at the previous frequency
func (d *RTLTCP) Tune(ctx context.Context, centerHz float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.command(cmdSetFrequency, uint32(centerHz)); err != nil {
		return err
	}
	return d.dropStale(ctx)
}

// dropStale discards samples taken before the retune. rtl_tcp never pauses
// its stream, so the socket still holds data from the previous frequency.
// Reads that return at once come from that backlog; the first read that has
// to wait for the server, or finds nothing within drainIdle, marks the live
// stream. The settle block after it covers the tuner lock time.
func (d *RTLTCP) dropStale(ctx context.Context) error {
	d.reader.Discard(d.reader.Buffered())

	buf := make([]byte, 64*1024)
	drained := 0
	for drained < drainMaxBytes {
		if err := ctx.Err(); err != nil {
			d.conn.SetReadDeadline(time.Time{})
			return err
		}

		start := time.Now()
		d.conn.SetReadDeadline(start.Add(drainIdle))
		n, err := d.conn.Read(buf)
		drained += n
		if err != nil {
			d.conn.SetReadDeadline(time.Time{})
			if errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			return fmt.Errorf("rtl_tcp drain failed: %w", err)
		}
		if time.Since(start) > drainLiveGap {
			break
		}
	}
	d.conn.SetReadDeadline(time.Time{})

	if d.settleBytes > 0 {
		stop := d.bindDeadline(ctx)
		defer stop()
		if _, err := io.CopyN(io.Discard, d.reader, int64(d.settleBytes)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("rtl_tcp settle read failed: %w", err)
		}
	}

	d.logger.Debug().Int("stale_bytes", drained).Int("settle_bytes", d.settleBytes).Msg("Dropped pre-tune samples")
	return nil
}

// ReadSamples reads count interleaved 8-bit IQ pairs and scales them to [-1, 1]
func (d *RTLTCP) ReadSamples(ctx context.Context, count int) ([]complex64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	stop := d.bindDeadline(ctx)
	defer stop()

	raw := make([]byte, 2*count)
	if _, err := io.ReadFull(d.reader, raw); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("rtl_tcp read failed: %w", err)
	}

	return DecodeU8IQ(raw), nil
}

// bindDeadline makes blocking reads return once ctx is done
func (d *RTLTCP) bindDeadline(ctx context.Context) func() {
	stop := context.AfterFunc(ctx, func() {
		d.conn.SetReadDeadline(time.Now())
	})
	return func() {
		stop()
		d.conn.SetReadDeadline(time.Time{})
	}
}

// Close shuts the connection down
func (d *RTLTCP) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.conn.Close()
}

// DecodeU8IQ converts unsigned 8-bit interleaved IQ bytes to complex samples
func DecodeU8IQ(raw []byte) []complex64 {
	out := make([]complex64, len(raw)/2)
	for i := range out {
		re := (float32(raw[2*i]) - 127.5) / 127.5
		im := (float32(raw[2*i+1]) - 127.5) / 127.5
		out[i] = complex(re, im)
	}
	return out
}
