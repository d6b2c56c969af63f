package supervisor

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kodflow/agld/internal/action"
	"github.com/kodflow/agld/internal/config"
	"github.com/kodflow/agld/internal/expand"
	"github.com/kodflow/agld/internal/kernel"
	"github.com/kodflow/agld/internal/svcstate"
)

// Publisher is notified after any Service's state changes, so a state
// file / HTML dump can be kept current (spec §4.5, "state publisher").
type Publisher interface {
	Publish(services []*Service)
}

// Recorder is notified of every individual state transition, independent
// of Publisher's aggregate snapshot; the event journal implements it.
type Recorder interface {
	Record(name string, state svcstate.State, message string)
	History(name string, limit int) ([]HistoryEntry, error)
}

// HistoryEntry is one recorded state transition, as returned by
// Supervisor.History.
type HistoryEntry struct {
	Timestamp time.Time
	State     svcstate.State
	Message   string
}

// Supervisor owns the sub-service set and drives level-ordered start/stop
// plus the watchdog loop.
type Supervisor struct {
	settings  *config.Settings
	expander  *expand.Expander
	executor  *action.Executor
	kernel    *kernel.Kernel
	log       *log.Logger
	publisher Publisher
	recorder  Recorder

	mu       sync.Mutex
	services []*Service
	levels   []int
	hasWatch bool

	watchdogStop chan struct{}
	watchdogDone chan struct{}
}

// New builds a Supervisor. logger may be nil (falls back to log.Default());
// publisher and recorder may be nil.
func New(settings *config.Settings, logger *log.Logger, publisher Publisher, recorder Recorder) *Supervisor {
	if logger == nil {
		logger = log.Default()
	}
	execPath, err := os.Executable()
	if err != nil {
		execPath = os.Args[0]
	}
	expander := expand.New(settings, execPath)
	return &Supervisor{
		settings:  settings,
		expander:  expander,
		executor:  action.New(expander, settings.HTTPProbeTimeoutMS),
		kernel:    kernel.New(),
		log:       logger,
		publisher: publisher,
		recorder:  recorder,
	}
}

// Load discovers manifests under the configured folder and (re)builds the
// Service set. Non-positive-level manifests are excluded from the active
// set (spec §4.5, "disabled").
func (sv *Supervisor) Load() error {
	manifests, err := config.Discover(sv.settings.ManifestFolder, sv.settings.ManifestExt)
	if err != nil {
		return fmt.Errorf("discovering manifests: %w", err)
	}

	hostOS := runtime.GOOS
	active := make([]*Service, 0, len(manifests))
	levelSet := make(map[int]struct{})
	hasWatch := false

	for _, m := range manifests {
		if m.Disabled() {
			sv.logInfof("sub-service %s disabled (level=%d)", m.Name, m.Level)
			continue
		}
		if !m.MatchesOS(hostOS) {
			continue
		}
		svc := newService(m, sv.expander, sv.kernel, sv.onServiceChange, sv.logWarnf)
		active = append(active, svc)
		levelSet[m.Level] = struct{}{}
		if svc.HasWatch() {
			hasWatch = true
		}
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].Level() != active[j].Level() {
			return active[i].Level() < active[j].Level()
		}
		return strings.ToLower(active[i].Name()) < strings.ToLower(active[j].Name())
	})

	levels := make([]int, 0, len(levelSet))
	for lvl := range levelSet {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)

	sv.mu.Lock()
	sv.services = active
	sv.levels = levels
	sv.hasWatch = hasWatch
	sv.mu.Unlock()

	return nil
}

// Services returns a snapshot slice of the current Service set.
func (sv *Supervisor) Services() []*Service {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	out := make([]*Service, len(sv.services))
	copy(out, sv.services)
	return out
}

func (sv *Supervisor) servicesAtLevel(level int) []*Service {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	var out []*Service
	for _, s := range sv.services {
		if s.Level() == level {
			out = append(out, s)
		}
	}
	return out
}

// Start runs the level-ordered start sequence (spec §4.5). It loads the
// manifest set if empty, then for each ascending level executes start
// actions and waits for every started Service to reach Running, bounded
// by LevelStartTimeoutSec.
func (sv *Supervisor) Start() error {
	sv.mu.Lock()
	empty := len(sv.services) == 0
	sv.mu.Unlock()
	if empty {
		if err := sv.Load(); err != nil {
			return err
		}
	}

	sv.mu.Lock()
	levels := append([]int{}, sv.levels...)
	hasWatch := sv.hasWatch
	sv.mu.Unlock()

	for _, level := range levels {
		if err := sv.startLevel(level); err != nil {
			return fmt.Errorf("starting level %d: %w", level, err)
		}
	}

	if hasWatch {
		sv.startWatchdog()
	}

	sv.publish()
	return nil
}

func (sv *Supervisor) startLevel(level int) error {
	services := sv.servicesAtLevel(level)
	waiting := make([]*Service, 0, len(services))

	now := time.Now()
	for _, s := range services {
		for _, a := range s.Manifest().EffectiveActions("start") {
			if err := sv.executor.Run(s, action.Start, a); err != nil {
				return fmt.Errorf("%s: %w", s.Name(), err)
			}
		}
		if s.HasWatch() {
			s.ScheduleWatch(now)
		}
		s.mu.Lock()
		started := s.started != ""
		s.mu.Unlock()
		if started {
			waiting = append(waiting, s)
		}
	}

	timeoutSec := sv.settings.LevelStartTimeoutSec
	if timeoutSec <= 0 {
		return nil
	}
	deadline := time.Now().Add(time.Duration(timeoutSec) * time.Second)

	for {
		allRunning := true
		for _, s := range waiting {
			if s.State() != svcstate.Running {
				allRunning = false
				break
			}
		}
		if allRunning {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for level %d to reach Running", level)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Stop runs the level-descending stop sequence (spec §4.5). Per-action
// errors are accumulated into a final message rather than aborting; the
// final state is always Stopped.
func (sv *Supervisor) Stop() {
	sv.stopWatchdog()

	sv.mu.Lock()
	levels := append([]int{}, sv.levels...)
	sv.mu.Unlock()

	var errMessages []string
	for i := len(levels) - 1; i >= 0; i-- {
		for _, s := range sv.servicesAtLevel(levels[i]) {
			for _, a := range s.Manifest().EffectiveActions("stop") {
				if err := sv.executor.Run(s, action.Stop, a); err != nil {
					msg := fmt.Sprintf("%s: %v", s.Name(), err)
					errMessages = append(errMessages, msg)
					sv.logWarnf("stop action failed for %s", msg)
				}
			}
		}
	}

	finalMsg := ""
	if len(errMessages) > 0 {
		finalMsg = strings.Join(errMessages, "; ")
	}
	sv.mu.Lock()
	services := append([]*Service{}, sv.services...)
	sv.mu.Unlock()
	for _, s := range services {
		s.SetState(svcstate.Stopped, finalMsg)
	}

	if sv.publisher != nil {
		sv.publisher.Publish(services)
	}
}

// Resume signals "retry-now" to every Paused Service with a live Runner
// (spec §4.5).
func (sv *Supervisor) Resume() {
	for _, s := range sv.Services() {
		if s.State() != svcstate.Paused {
			continue
		}
		s.mu.Lock()
		r := s.runner
		s.mu.Unlock()
		if r != nil {
			r.RetryNow()
		}
	}
}

// startWatchdog launches the ~1Hz background tick worker (spec §4.5).
func (sv *Supervisor) startWatchdog() {
	sv.mu.Lock()
	if sv.watchdogStop != nil {
		sv.mu.Unlock()
		return
	}
	sv.watchdogStop = make(chan struct{})
	sv.watchdogDone = make(chan struct{})
	stop := sv.watchdogStop
	done := sv.watchdogDone
	sv.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				sv.tickWatchdog()
			}
		}
	}()
}

func (sv *Supervisor) stopWatchdog() {
	sv.mu.Lock()
	stop := sv.watchdogStop
	done := sv.watchdogDone
	sv.watchdogStop = nil
	sv.watchdogDone = nil
	sv.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// tickWatchdog runs watch actions for every due Service that is not
// currently owned by a Runner (spec §4.5: "processes monitored by a
// Runner are NOT re-watched here").
func (sv *Supervisor) tickWatchdog() {
	now := time.Now()
	for _, s := range sv.Services() {
		if s.isMonitored() || !s.DueForWatch(now) {
			continue
		}
		sv.runWatch(s, now)
	}
}

func (sv *Supervisor) runWatch(s *Service, now time.Time) {
	defer s.rearmWatch(now)

	s.SetState(svcstate.ErrorRetrievingState, "")
	for _, a := range s.Manifest().EffectiveActions("watch") {
		if err := sv.executor.Run(s, action.Watch, a); err != nil {
			sv.logWarnf("watch action failed for %s: %v", s.Name(), err)
		}
	}
}

// History returns the recorded lifecycle events for name, newest first,
// bounded by limit (<=0 means unbounded). It returns an empty slice, not
// an error, when no Recorder is configured.
func (sv *Supervisor) History(name string, limit int) ([]HistoryEntry, error) {
	if sv.recorder == nil {
		return nil, nil
	}
	return sv.recorder.History(name, limit)
}

func (sv *Supervisor) onServiceChange(s *Service) {
	if sv.recorder != nil {
		sv.recorder.Record(s.Name(), s.State(), s.StateMessage())
	}
	sv.publish()
}

func (sv *Supervisor) publish() {
	if sv.publisher == nil {
		return
	}
	sv.publisher.Publish(sv.Services())
}

func (sv *Supervisor) logInfof(format string, args ...any) {
	sv.log.Printf(format, args...)
}

func (sv *Supervisor) logWarnf(format string, args ...any) {
	sv.log.Printf(format, args...)
}
