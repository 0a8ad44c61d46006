package scripts

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	// ErrAlreadyQueued means the same script is already waiting to run.
	ErrAlreadyQueued = errors.New("script already queued")
	// ErrRunnerClosed means the worker has shut down.
	ErrRunnerClosed = errors.New("script runner closed")
	// ErrBadPackageName rejects pip package names with shell-risky characters.
	ErrBadPackageName = errors.New("invalid package name")
)

// Status classifies one script run.
type Status string

const (
	StatusOK            Status = "ok"
	StatusFailed        Status = "failed"
	StatusTimedOut      Status = "timed_out"
	StatusMissingModule Status = "missing_module"
)

const (
	runTimeout     = 300 * time.Second
	installTimeout = 120 * time.Second
	killGrace      = 3 * time.Second
	outputCap      = 256 * 1024
)

// Result is the outcome of one script run.
type Result struct {
	Script        string        `json:"script"`
	Status        Status        `json:"status"`
	ExitCode      int           `json:"exit_code"`
	Stdout        string        `json:"stdout"`
	Stderr        string        `json:"stderr"`
	MissingModule string        `json:"missing_module,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
}

// InstallResult is the outcome of a pip install.
type InstallResult struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

type job struct {
	script *Script
	result chan *Result
}

// Runner executes scripts one at a time in submission order.
type Runner struct {
	root string
	log  *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*job
	pending mapset.Set[string]
	closed  bool
	wg      sync.WaitGroup
}

func NewRunner(root string, log *slog.Logger) *Runner {
	r := &Runner{
		root:    root,
		log:     log.With("component", "scripts"),
		pending: mapset.NewSet[string](),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Start launches the worker. It drains until ctx is cancelled or Stop is
// called; the in-flight script (if any) is tree-killed on cancellation.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.worker(ctx)

	// unblock the worker when the daemon shuts down
	go func() {
		<-ctx.Done()
		r.Stop()
	}()
}

// Stop wakes the worker and rejects further submissions. Queued jobs that
// never ran receive no result; their channels are closed.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, j := range r.queue {
		close(j.result)
	}
	r.queue = nil
	r.pending.Clear()
	r.cond.Broadcast()
	r.mu.Unlock()

	r.wg.Wait()
}

// Submit queues a script. The returned channel delivers exactly one Result
// (or closes without one on shutdown).
func (r *Runner) Submit(script *Script) (<-chan *Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRunnerClosed
	}
	if !r.pending.Add(script.RelPath) {
		return nil, ErrAlreadyQueued
	}

	j := &job{script: script, result: make(chan *Result, 1)}
	r.queue = append(r.queue, j)
	r.cond.Signal()
	return j.result, nil
}

// QueueLen reports how many scripts are waiting (not counting a running one).
func (r *Runner) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()

	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}
		if r.closed {
			r.mu.Unlock()
			return
		}
		j := r.queue[0]
		r.queue = r.queue[1:]
		r.pending.Remove(j.script.RelPath)
		r.mu.Unlock()

		j.result <- r.run(ctx, j.script)
	}
}

func (r *Runner) run(ctx context.Context, script *Script) *Result {
	started := time.Now()
	res := &Result{Script: script.RelPath, StartedAt: started}

	interpreter := pythonInterpreter()
	cmd := exec.Command(interpreter, script.AbsPath)
	cmd.Dir = filepath.Dir(script.AbsPath)
	cmd.Env = append(os.Environ(), "VIBEFOUNDRY_PROJECT_ROOT="+r.root)

	stdout := newCappedBuffer(outputCap)
	stderr := newCappedBuffer(outputCap)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.log.Info("running script", "script", script.RelPath, "interpreter", interpreter)
	if err := cmd.Start(); err != nil {
		res.Status = StatusFailed
		res.ExitCode = -1
		res.Stderr = err.Error()
		return res
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(runTimeout)
	defer timer.Stop()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-done:
	case <-timer.C:
		timedOut = true
		r.killProcessTree(cmd.Process.Pid, done)
		waitErr = <-done
	case <-ctx.Done():
		r.killProcessTree(cmd.Process.Pid, done)
		waitErr = <-done
	}

	res.Duration = time.Since(started)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.ExitCode = cmd.ProcessState.ExitCode()

	switch {
	case timedOut:
		res.Status = StatusTimedOut
	default:
		if pkg, ok := missingModule(res.Stderr); ok {
			res.Status = StatusMissingModule
			res.MissingModule = pkg
		} else if waitErr != nil {
			res.Status = StatusFailed
		} else {
			res.Status = StatusOK
		}
	}

	r.log.Info("script finished",
		"script", script.RelPath,
		"status", res.Status,
		"exit_code", res.ExitCode,
		"duration", res.Duration.Round(time.Millisecond),
		"output", humanize.Bytes(uint64(len(res.Stdout)+len(res.Stderr))))
	return res
}

// killProcessTree terminates the script and all its descendants bottom-up,
// escalating to SIGKILL after a grace period.
func (r *Runner) killProcessTree(pid int, done <-chan error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return
	}

	descendants, err := processTreeBottomUp(proc)
	if err != nil {
		descendants = []*process.Process{proc}
	}

	r.log.Debug("kill process tree: SIGTERM", "pid", pid, "procs", len(descendants))
	for _, child := range descendants {
		if err := child.Terminate(); err != nil {
			r.log.Debug("kill process tree: SIGTERM", "pid", child.Pid, "err", err)
		}
	}

	grace := time.NewTimer(killGrace)
	defer grace.Stop()
	select {
	case <-done:
		return
	case <-grace.C:
	}

	r.log.Debug("kill process tree: SIGKILL", "pid", pid, "procs", len(descendants))
	for _, child := range descendants {
		exists, err := process.PidExists(child.Pid)
		if err != nil || !exists {
			continue
		}
		if err := child.Kill(); err != nil {
			r.log.Warn("kill process tree: SIGKILL", "pid", child.Pid, "err", err)
		}
	}
}

// processTreeBottomUp flattens the process tree children-first so kills never
// orphan grandchildren.
func processTreeBottomUp(proc *process.Process) ([]*process.Process, error) {
	var tree []*process.Process
	children, err := proc.Children()
	if err != nil && !errors.Is(err, process.ErrorNoChildren) {
		return nil, err
	}
	for _, child := range children {
		subtree, _ := processTreeBottomUp(child)
		tree = append(tree, subtree...)
	}
	tree = append(tree, proc)
	return tree, nil
}

// Install runs pip for one package. Never auto-runs anything afterwards.
func (r *Runner) Install(ctx context.Context, pkg string) (*InstallResult, error) {
	if !packageNameRe.MatchString(pkg) {
		return nil, ErrBadPackageName
	}

	ctx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	stdout := newCappedBuffer(outputCap)
	stderr := newCappedBuffer(outputCap)
	cmd := exec.CommandContext(ctx, pythonInterpreter(), "-m", "pip", "install", pkg)
	cmd.Dir = r.root
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.log.Info("installing package", "package", pkg)
	err := cmd.Run()
	return &InstallResult{
		Success: err == nil,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}, nil
}

var (
	packageNameRe     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	moduleNotFoundRe  = regexp.MustCompile(`ModuleNotFoundError: No module named '([^']+)'`)
	legacyImportErrRe = regexp.MustCompile(`ImportError: No module named ([A-Za-z0-9_.]+)`)
)

// moduleAliases maps import names to the pip packages that provide them.
var moduleAliases = map[string]string{
	"PIL":     "pillow",
	"cv2":     "opencv-python",
	"sklearn": "scikit-learn",
	"yaml":    "pyyaml",
}

// missingModule extracts the pip package to install from a Python import
// failure, reducing dotted imports to the top-level package.
func missingModule(stderr string) (string, bool) {
	m := moduleNotFoundRe.FindStringSubmatch(stderr)
	if m == nil {
		m = legacyImportErrRe.FindStringSubmatch(stderr)
	}
	if m == nil {
		return "", false
	}

	name, _, _ := strings.Cut(m[1], ".")
	if pkg, ok := moduleAliases[name]; ok {
		return pkg, true
	}
	return name, true
}

func pythonInterpreter() string {
	if path, err := exec.LookPath("python3"); err == nil {
		return path
	}
	return "python"
}
