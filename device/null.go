package device

import (
	"fmt"
	"sync"
	"time"
)

// Null is a driver without hardware. Its streams call the callback from a
// goroutine, paced to real time when Realtime is set and as fast as possible
// otherwise.
type Null struct {
	Realtime bool
}

// Name implements Driver.
func (Null) Name() string { return "null" }

// Open implements Driver.
func (n Null) Open(cfg StreamConfig, cb Callback) (Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cb == nil {
		return nil, fmt.Errorf("%w: nil callback", ErrInvalidConfig)
	}

	s := &nullStream{
		cfg:      cfg,
		pump:     newPump(cfg, cb),
		realtime: n.Realtime,
		in:       make([]float32, cfg.PeriodFrames*cfg.Channels),
		out:      make([]float32, cfg.PeriodFrames*cfg.Channels),
	}
	return s, nil
}

type nullStream struct {
	cfg      StreamConfig
	pump     *pump
	realtime bool
	in, out  []float32

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

func (s *nullStream) Config() StreamConfig { return s.cfg }

func (s *nullStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("device: null stream closed")
	}
	if s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
	return nil
}

func (s *nullStream) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	period := time.Duration(float64(s.cfg.PeriodFrames) / float64(s.cfg.SampleRate) * float64(time.Second))
	var tick <-chan time.Time
	if s.realtime {
		t := time.NewTicker(period)
		defer t.Stop()
		tick = t.C
	}

	for {
		if tick != nil {
			select {
			case <-stop:
				return
			case <-tick:
			}
		} else {
			select {
			case <-stop:
				return
			default:
			}
		}
		s.pump.run(s.in, s.out, s.cfg.PeriodFrames)
	}
}

func (s *nullStream) Stop() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (s *nullStream) Close() error {
	err := s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}
