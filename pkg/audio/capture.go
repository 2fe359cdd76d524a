package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// allowed sample rates per the capture config invariant.
var allowedSampleRates = map[int]bool{8000: true, 16000: true, 32000: true, 48000: true}

// CaptureConfig describes a capture session. Immutable once passed to
// NewCaptureSource.
type CaptureConfig struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	DeviceID        string
	QueueCapacity   int
	AccumulateMs    int
}

// Validate checks the invariants from the capture config entity.
func (c CaptureConfig) Validate() error {
	if !allowedSampleRates[c.SampleRate] {
		return fmt.Errorf("audio: sample rate %d not in {8000,16000,32000,48000}", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("audio: channels %d not in {1,2}", c.Channels)
	}
	if c.FramesPerBuffer <= 0 {
		return fmt.Errorf("audio: frames_per_buffer must be > 0")
	}
	if c.AccumulateMs <= 0 {
		return fmt.Errorf("audio: accumulate_ms must be > 0")
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("audio: queue_capacity must be > 0")
	}
	return nil
}

// DeviceInfo describes an enumerated capture device.
type DeviceInfo struct {
	ID   string
	Name string
}

// CaptureSource accumulates realtime hardware callback bursts into
// fixed-duration PCM buffers and publishes them to a Queue without
// blocking the realtime thread. It owns its accumulation state and the
// malgo capture device exclusively.
type CaptureSource struct {
	cfg            CaptureConfig
	queue          *Queue
	signal         *Signal
	thresholdSamp  int // accumulation threshold in samples (frames * channels)
	accum          []int16
	scratch        []int16 // decode scratch for onCaptureBytes, reserved once
	malgoCtx       *malgo.AllocatedContext
	device         *malgo.Device
	callback       atomic.Pointer[func(Buffer)]
	running        atomic.Bool
	droppedFrames  atomic.Uint64
	stopCh         chan struct{}
	wg             sync.WaitGroup
	lifecycleGuard sync.Mutex // guards Start/Stop only, never held on the RT path
}

// NewCaptureSource validates cfg and constructs a stopped capture source.
// The accumulation buffer's backing array is reserved here so the
// realtime callback path never resizes it.
func NewCaptureSource(cfg CaptureConfig) (*CaptureSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	frames := cfg.SampleRate * cfg.AccumulateMs / 1000
	thresholdSamp := frames * cfg.Channels
	return &CaptureSource{
		cfg:           cfg,
		queue:         NewQueue(cfg.QueueCapacity),
		signal:        NewSignal(),
		thresholdSamp: thresholdSamp,
		accum:         make([]int16, 0, thresholdSamp),
		scratch:       make([]int16, thresholdSamp),
	}, nil
}

// Start opens the configured device, installs the realtime callback, and
// starts the consumer worker. Idempotent while already running.
func (cs *CaptureSource) Start() error {
	cs.lifecycleGuard.Lock()
	defer cs.lifecycleGuard.Unlock()

	if cs.running.Load() {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audio: init context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cs.cfg.Channels)
	deviceConfig.SampleRate = uint32(cs.cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cs.cfg.FramesPerBuffer)
	deviceConfig.Alsa.NoMMap = 1

	if cs.cfg.DeviceID != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			ctx.Uninit()
			return fmt.Errorf("audio: enumerate devices: %w", err)
		}
		found := false
		for i := range infos {
			if infos[i].ID.String() == cs.cfg.DeviceID {
				deviceConfig.Capture.DeviceID = infos[i].ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			ctx.Uninit()
			return fmt.Errorf("audio: device %q not found", cs.cfg.DeviceID)
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, inputSamples []byte, _ uint32) {
			cs.onCaptureBytes(inputSamples)
		},
	})
	if err != nil {
		ctx.Uninit()
		return fmt.Errorf("audio: init device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		return fmt.Errorf("audio: start device: %w", err)
	}

	cs.malgoCtx = ctx
	cs.device = device
	cs.stopCh = make(chan struct{})
	cs.droppedFrames.Store(0)
	cs.accum = cs.accum[:0]
	cs.running.Store(true)

	cs.wg.Add(1)
	go cs.workerLoop()

	return nil
}

// Stop halts the realtime stream, wakes and joins the consumer worker,
// and drains the queue.
func (cs *CaptureSource) Stop() {
	cs.lifecycleGuard.Lock()
	defer cs.lifecycleGuard.Unlock()

	if !cs.running.Load() {
		return
	}
	cs.running.Store(false)
	close(cs.stopCh)
	cs.signal.Notify()
	cs.wg.Wait()

	if cs.device != nil {
		cs.device.Stop()
		cs.device.Uninit()
		cs.device = nil
	}
	if cs.malgoCtx != nil {
		cs.malgoCtx.Uninit()
		cs.malgoCtx = nil
	}

	for {
		if _, ok := cs.queue.TryDequeue(); !ok {
			break
		}
	}
}

// SetAudioCallback registers or replaces the consumer invoked on
// accumulated buffers. Passing nil disables consumer-thread delivery;
// Dequeue remains available either way.
func (cs *CaptureSource) SetAudioCallback(fn func(Buffer)) {
	if fn == nil {
		cs.callback.Store(nil)
		return
	}
	cs.callback.Store(&fn)
}

// Dequeue performs a non-blocking pull from the queue, independent of
// any registered callback.
func (cs *CaptureSource) Dequeue() (Buffer, bool) {
	return cs.queue.TryDequeue()
}

// DroppedFrames returns the monotonic count of frames lost to queue
// overflow since the last Start.
func (cs *CaptureSource) DroppedFrames() uint64 {
	return cs.droppedFrames.Load()
}

// ListDevices enumerates capture devices for CLI use.
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init context: %w", err)
	}
	defer ctx.Uninit()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("audio: enumerate devices: %w", err)
	}

	out := make([]DeviceInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, DeviceInfo{ID: info.ID.String(), Name: info.Name()})
	}
	return out, nil
}

// workerLoop alternates between a non-blocking dequeue and a bounded
// wait on the accumulation signal. It is the sole consumer of the
// queue's read side.
func (cs *CaptureSource) workerLoop() {
	defer cs.wg.Done()
	for {
		select {
		case <-cs.stopCh:
			return
		default:
		}

		buf, ok := cs.queue.TryDequeue()
		if ok {
			if cb := cs.callback.Load(); cb != nil && *cb != nil {
				(*cb)(buf)
			}
			continue
		}

		cs.signal.Wait(100 * time.Millisecond)
	}
}

// onCaptureBytes converts a realtime callback burst of interleaved
// 16-bit little-endian PCM bytes into samples and folds them into the
// accumulation buffer. Runs on the realtime thread: no locking, no I/O,
// no allocation — decoding happens into the pre-reserved scratch buffer,
// and the only allocation anywhere on this path is the one bounded copy
// performed when a buffer is flushed to the queue.
func (cs *CaptureSource) onCaptureBytes(data []byte) {
	if !cs.running.Load() {
		return
	}
	n := len(data) / 2
	if n > len(cs.scratch) {
		cs.droppedFrames.Add(uint64(n / cs.cfg.Channels))
		return
	}
	samples := cs.scratch[:n]
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	cs.onCaptureSamples(samples)
}

// onCaptureSamples is the testable core of the realtime path: accumulate
// until the configured duration is reached, then hand the buffer to the
// queue. If accumulating would exceed the reserved capacity, the burst
// is dropped rather than resized.
func (cs *CaptureSource) onCaptureSamples(samples []int16) {
	if !cs.running.Load() {
		return
	}
	if len(samples) == 0 {
		return
	}

	if len(cs.accum)+len(samples) > cap(cs.accum) {
		cs.droppedFrames.Add(uint64(len(samples) / cs.cfg.Channels))
		return
	}
	cs.accum = append(cs.accum, samples...)

	if len(cs.accum) < cs.thresholdSamp {
		return
	}

	out := make([]int16, len(cs.accum))
	copy(out, cs.accum)
	cs.accum = cs.accum[:0]

	buf := Buffer{Samples: out, Channels: cs.cfg.Channels}
	if cs.queue.TryEnqueue(buf) {
		cs.signal.Notify()
	} else {
		cs.droppedFrames.Add(uint64(buf.Frames()))
	}
}
