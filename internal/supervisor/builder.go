package supervisor

import (
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/buildmaster/internal/log"
)

// ScriptSource resolves builder names to script paths. Resolve must wrap
// fs.ErrNotExist when no script exists for name.
type ScriptSource interface {
	List() ([]string, error)
	Resolve(name string) (string, error)
	Fingerprint(name string) (string, error)
}

// Options controls how builders spawn and stop their scripts.
type Options struct {
	Ordering      Ordering
	ChannelBuffer int
	MaxLineBytes  int
	StopSignal    syscall.Signal
	// KillGrace is how long the group gets after StopSignal before SIGKILL.
	// Zero escalates immediately.
	KillGrace time.Duration
	Workdir   string
	Env       []string
}

// DefaultOptions returns interleaved reading, SIGTERM and a 5s grace period.
func DefaultOptions() Options {
	return Options{
		Ordering:      Interleaved,
		ChannelBuffer: 4096,
		MaxLineBytes:  1024 * 1024,
		StopSignal:    syscall.SIGTERM,
		KillGrace:     5 * time.Second,
	}
}

// Snapshot is a builder's current generation and its full output so far.
type Snapshot struct {
	Name         string
	GenerationID string
	PID          int
	StartedAt    time.Time
	Fingerprint  string
	Running      bool
	// Exit is set once the script's process has been reaped.
	Exit   *Exit
	Stdout string
	Stderr string
}

// generation is everything that belongs to one spawn. It is replaced whole.
type generation struct {
	info   GenerationInfo
	cmd    *exec.Cmd
	pgid   int
	lines  <-chan Line
	out    outputBuffer
	done   chan struct{} // closed when the generation is discarded
	exited chan struct{} // closed once the process is reaped
	exit   Exit          // valid after exited is closed
	logger *slog.Logger

	stopOnce sync.Once
	swept    atomic.Bool
}

// groupSwept reports whether the leader has been reaped and no member of its
// group is left. From then on the pgid may belong to someone else, so it is
// never signalled again.
func (gen *generation) groupSwept() bool {
	if gen.swept.Load() {
		return true
	}
	select {
	case <-gen.exited:
	default:
		return false
	}
	if err := signalGroup(gen.pgid, 0); err != nil && groupGone(err) {
		gen.swept.Store(true)
	}
	return gen.swept.Load()
}

// Builder supervises one named script.
type Builder struct {
	name     string
	source   ScriptSource
	opts     Options
	observer Observer
	logger   *slog.Logger

	mu      sync.Mutex
	gen     *generation
	retired atomic.Bool
}

// Spawn starts the script called name and returns its Builder.
func Spawn(name string, source ScriptSource, opts Options, observer Observer) (*Builder, error) {
	if observer == nil {
		observer = Observers(nil)
	}
	b := &Builder{
		name:     name,
		source:   source,
		opts:     opts,
		observer: observer,
		logger:   log.WithBuilder(name),
	}
	gen, err := b.start()
	if err != nil {
		observer.Failed(name, err)
		return nil, err
	}
	b.gen = gen
	return b, nil
}

// Name returns the builder's script name.
func (b *Builder) Name() string { return b.name }

// Retired reports whether the builder has been terminated or failed to
// respawn. It does not take the builder lock.
func (b *Builder) Retired() bool { return b.retired.Load() }

// Drain moves all queued output into the buffers and returns the full output
// of the current generation. It never waits for the child.
func (b *Builder) Drain() (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.gen
	if gen == nil {
		return Snapshot{}, errRetired
	}
	if gen.lines != nil && !gen.out.drainFrom(gen.lines) {
		gen.lines = nil
	}

	snap := Snapshot{
		Name:         b.name,
		GenerationID: gen.info.ID,
		PID:          gen.info.PID,
		StartedAt:    gen.info.StartedAt,
		Fingerprint:  gen.info.Fingerprint,
		Running:      true,
		Stdout:       gen.out.stdout.String(),
		Stderr:       gen.out.stderr.String(),
	}
	select {
	case <-gen.exited:
		exit := gen.exit
		snap.Exit = &exit
		snap.Running = false
	default:
	}
	return snap, nil
}

// Status is a builder's current generation without its output.
type Status struct {
	GenerationInfo
	Running bool
	Exit    *Exit
}

// Status reports the current generation. Unlike Drain it leaves queued
// output where it is and copies nothing.
func (b *Builder) Status() (Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.gen
	if gen == nil {
		return Status{}, errRetired
	}
	st := Status{GenerationInfo: gen.info, Running: true}
	select {
	case <-gen.exited:
		exit := gen.exit
		st.Exit = &exit
		st.Running = false
	default:
	}
	return st, nil
}

// Redeploy stops the current process group and spawns a fresh generation.
// If the respawn fails the builder is retired and the error returned.
func (b *Builder) Redeploy() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.retired.Load() {
		return errRetired
	}

	if old := b.gen; old != nil {
		b.gen = nil
		b.stop(old, "redeploy")
	}

	gen, err := b.start()
	if err != nil {
		b.retired.Store(true)
		b.logger.Error("redeploy failed, builder retired", "error", err)
		b.observer.Failed(b.name, err)
		return err
	}
	b.gen = gen
	return nil
}

// Terminate stops the process group and retires the builder. Calling it more
// than once is harmless.
func (b *Builder) Terminate() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.retired.Store(true)
	if old := b.gen; old != nil {
		b.gen = nil
		b.stop(old, "terminate")
	}
}

func (b *Builder) start() (*generation, error) {
	path, err := b.source.Resolve(b.name)
	if err != nil {
		return nil, &SpawnError{Name: b.name, Op: "resolve", Err: err}
	}
	fingerprint, err := b.source.Fingerprint(b.name)
	if err != nil {
		b.logger.Warn("failed to fingerprint script", "error", err)
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Name: b.name, Op: "pipe", Err: err}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, &SpawnError{Name: b.name, Op: "pipe", Err: err}
	}

	cmd := exec.Command(path)
	cmd.Dir = b.opts.Workdir
	cmd.Env = b.opts.Env
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	setProcessGroup(cmd)

	err = cmd.Start()
	// The child holds its own copies of the write ends.
	_ = stdoutW.Close()
	_ = stderrW.Close()
	if err != nil {
		_ = stdoutR.Close()
		_ = stderrR.Close()
		return nil, &SpawnError{Name: b.name, Op: "start", Err: err}
	}

	pid := cmd.Process.Pid
	pgid, err := verifyGroupLeader(pid)
	if err != nil {
		_ = cmd.Process.Kill()
		go func() { _ = cmd.Wait() }()
		_ = stdoutR.Close()
		_ = stderrR.Close()
		return nil, &SpawnError{Name: b.name, Op: "process group", Err: err}
	}

	gen := &generation{
		info: GenerationInfo{
			Builder:     b.name,
			ID:          uuid.NewString(),
			PID:         pid,
			StartedAt:   time.Now().UTC(),
			Fingerprint: fingerprint,
		},
		cmd:    cmd,
		pgid:   pgid,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	gen.logger = log.WithGeneration(b.name, gen.info.ID)
	gen.lines = startLineReader(stdoutR, stderrR, readerOptions{
		ordering: b.opts.Ordering,
		buffer:   b.opts.ChannelBuffer,
		maxLine:  b.opts.MaxLineBytes,
	}, gen.done)

	// Observers must hear Spawned before the reaper can report Exited.
	gen.logger.Info("builder spawned", "pid", pid, "path", path, "ordering", string(b.opts.Ordering))
	b.observer.Spawned(gen.info)

	go b.reap(gen)
	return gen, nil
}

// reap waits for the generation's process and records how it ended.
func (b *Builder) reap(gen *generation) {
	err := gen.cmd.Wait()

	exit := Exit{Code: 0, At: time.Now().UTC()}
	if ps := gen.cmd.ProcessState; ps != nil {
		exit.Code = ps.ExitCode()
		exit.Status = ps.String()
	} else if err != nil {
		exit.Code = -1
		exit.Status = err.Error()
	}
	gen.exit = exit
	close(gen.exited)

	gen.logger.Info("builder process exited", "exit_code", exit.Code, "status", exit.Status)
	b.observer.Exited(gen.info, exit)
}

// stop detaches gen's readers and signals its process group. SIGKILL follows
// once the leader has exited or KillGrace has passed; stop itself never waits.
func (b *Builder) stop(gen *generation, reason string) {
	gen.stopOnce.Do(func() {
		close(gen.done)

		if gen.groupSwept() {
			gen.logger.Info("builder stopped", "reason", reason, "signal", "none")
			b.observer.Stopped(gen.info, reason)
			return
		}

		sig := b.opts.StopSignal
		if sig == 0 {
			sig = syscall.SIGTERM
		}
		if err := signalGroup(gen.pgid, sig); err != nil {
			gen.logger.Debug("stop signal not delivered", "signal", sig.String(), "error", err)
			if groupGone(err) {
				b.observer.Stopped(gen.info, reason)
				return
			}
		}
		gen.logger.Info("builder stopped", "reason", reason, "signal", sig.String())
		b.observer.Stopped(gen.info, reason)

		if sig == syscall.SIGKILL {
			return
		}
		go func() {
			timer := time.NewTimer(b.opts.KillGrace)
			defer timer.Stop()
			select {
			case <-gen.exited:
			case <-timer.C:
				gen.logger.Warn("builder did not exit after stop signal, sending SIGKILL")
			}
			if gen.groupSwept() {
				return
			}
			if err := signalGroup(gen.pgid, syscall.SIGKILL); err != nil && !groupGone(err) {
				gen.logger.Debug("SIGKILL not delivered", "error", err)
			}
		}()
	})
}
