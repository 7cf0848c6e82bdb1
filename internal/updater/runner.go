package updater

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/upgradr/internal/env"
)

// Runner launches the external updater binary. Check mode is a blocking,
// bounded-wait call; install mode is fire-and-forget in a detached session
// because the caller is expected to exit right after issuing it.
type Runner struct {
	spec   Spec
	envset *env.Env
	logger *slog.Logger
}

func New(spec Spec, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{spec: spec, logger: logger}
}

// SetEnv installs the composed environment applied to every invocation.
func (r *Runner) SetEnv(e *env.Env) { r.envset = e }

// Spec returns a copy of the configured spec.
func (r *Runner) Spec() Spec { return r.spec }

// RunCheck invokes the updater in check-only mode and waits for it, bounded
// by the spec's start and finish timeouts. It never returns an error: launch
// and wait problems are reported through the Result flags so the parser can
// classify them. No retries happen here; the next scheduled cycle is the
// retry policy.
func (r *Runner) RunCheck(allowBeta bool) Result {
	var res Result
	path := r.spec.BinaryPath()
	args := r.spec.CheckArgs(allowBeta)

	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = checkSysProcAttr()
	cmd.Env = r.environ()

	outBuf := &syncBuffer{}
	errBuf := &syncBuffer{}
	var stdout io.Writer = outBuf
	var stderr io.Writer = errBuf
	if outW, errW := r.transcriptWriters(); outW != nil || errW != nil {
		if outW != nil {
			stdout = io.MultiWriter(outBuf, outW)
			defer func() { _ = outW.Close() }()
		}
		if errW != nil {
			stderr = io.MultiWriter(errBuf, errW)
			defer func() { _ = errW.Close() }()
		}
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Debug("starting updater check", "path", path, "args", args)

	started := make(chan error, 1)
	go func() { started <- cmd.Start() }()
	select {
	case err := <-started:
		if err != nil {
			r.logger.Warn("updater failed to start", "path", path, "error", err)
			res.StartFailed = true
			res.ExitCode = -1
			return res
		}
	case <-time.After(r.spec.startTimeout()):
		r.logger.Warn("updater did not start in time", "path", path, "timeout", r.spec.startTimeout())
		res.StartFailed = true
		res.ExitCode = -1
		go reapLateStart(cmd, started)
		return res
	}

	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()
	select {
	case <-waited:
		if ps := cmd.ProcessState; ps != nil {
			res.ExitCode = ps.ExitCode()
		} else {
			res.ExitCode = -1
		}
	case <-time.After(r.spec.finishTimeout()):
		r.logger.Warn("updater check timed out", "path", path, "timeout", r.spec.finishTimeout())
		res.FinishTimedOut = true
		res.ExitCode = -1
		killTree(cmd)
		select {
		case <-waited:
			// reaped after kill
		case <-time.After(200 * time.Millisecond):
			// best-effort
		}
	}

	res.Stdout = outBuf.Bytes()
	res.Stderr = errBuf.Bytes()
	return res
}

// RunInstall spawns the updater in install mode detached from this process
// and returns the child PID without waiting. Stdio is discarded; the
// updater owns its own logging from here on.
func (r *Runner) RunInstall(versionTag string, allowBeta bool) (int, error) {
	path := r.spec.BinaryPath()
	args := r.spec.InstallArgs(versionTag, allowBeta)

	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = detachSysProcAttr()
	cmd.Env = r.environ()

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start updater install: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	r.logger.Info("updater install started", "path", path, "version", versionTag, "pid", pid)
	return pid, nil
}

// environ composes the subprocess environment. Nil keeps os/exec's inherit
// behavior when neither a global env nor per-spec entries are configured.
func (r *Runner) environ() []string {
	if r.envset == nil && len(r.spec.Env) == 0 {
		return nil
	}
	e := r.envset
	if e == nil {
		e = env.New()
	}
	return e.Merge(r.spec.Env)
}

func (r *Runner) transcriptWriters() (io.WriteCloser, io.WriteCloser) {
	lc := r.spec.Log
	if lc.Dir == "" && lc.StdoutPath == "" && lc.StderrPath == "" {
		return nil, nil
	}
	if lc.Dir != "" {
		_ = os.MkdirAll(lc.Dir, 0o750)
	}
	outW, errW, _ := lc.Writers("check")
	return outW, errW
}

// reapLateStart handles a Start that completes after the deadline: the
// orphaned child is killed and reaped so nothing leaks.
func reapLateStart(cmd *exec.Cmd, started <-chan error) {
	if err := <-started; err != nil {
		return
	}
	killTree(cmd)
	_ = cmd.Wait()
}

// syncBuffer guards capture buffers against a child that keeps writing
// briefly after a timed-out wait.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	return out
}
