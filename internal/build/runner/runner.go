// Package runner supervises a single build process and streams its decoded
// output to per-stream line feeds.
//
// Two reader goroutines move raw chunks off the stdout and stderr pipes and
// a third waits for the process. A timeout ends Drain but not the build:
// the readers keep emptying the pipes until the process exits. Everything else happens on the goroutine
// that calls Drain: NUL replacement, decoding, and the feed callbacks. Feeds
// are therefore never called concurrently and need no locking of their own.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// readSize is the largest chunk read from a pipe at once.
const readSize = 32 * 1024

// Options configures a build run.
type Options struct {
	// Args is the command and its arguments. Args[0] is looked up in PATH.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Timeout bounds how long Drain waits. Zero means no limit. The
	// process is not killed when it fires.
	Timeout time.Duration

	// Encoding names the output encoding. See LookupEncoding.
	Encoding string

	// Env overrides or adds environment variables.
	Env map[string]string

	// Unset removes variables from the inherited environment.
	Unset []string

	Logger *slog.Logger
}

// LineFeed receives decoded output for one stream.
type LineFeed interface {
	// Feed receives a decoded chunk with no line-boundary guarantee.
	Feed(text string)

	// End is called once after the last chunk.
	End()
}

type streamID int

const (
	stdoutStream streamID = iota
	stderrStream
)

type chunk struct {
	stream streamID
	data   []byte
	eof    bool
}

// Handle is a started build process.
type Handle struct {
	ctx     context.Context
	cmd     *exec.Cmd
	pipes   [2]*os.File
	decoder [2]*decoder
	timeout time.Duration
	logger  *slog.Logger
	started time.Time

	chunks    chan chunk
	stop      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once

	// waitErr is set before exited is closed.
	waitErr error
}

// Start launches the command. A command that cannot be launched yields a
// *SpawnError; an unknown encoding yields ErrUnknownEncoding.
func Start(ctx context.Context, opts Options) (*Handle, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if len(opts.Args) == 0 || opts.Args[0] == "" {
		return nil, &SpawnError{Reason: "empty command"}
	}

	enc, err := LookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(opts.Args[0], opts.Args[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = buildEnvironment(opts.Env, opts.Unset)

	// Own process group so the whole build tree can be killed.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Reason: err.Error(), Err: err}
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, &SpawnError{Reason: err.Error(), Err: err}
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{outR, outW, errR, errW} {
			f.Close()
		}
		return nil, &SpawnError{Reason: spawnReason(err), Err: err}
	}

	// The child holds its own copies of the write ends.
	outW.Close()
	errW.Close()

	h := &Handle{
		ctx:     ctx,
		cmd:     cmd,
		pipes:   [2]*os.File{outR, errR},
		decoder: [2]*decoder{newDecoder(enc), newDecoder(enc)},
		timeout: opts.Timeout,
		logger:  logger,
		started: time.Now(),
		chunks:  make(chan chunk, 16),
		stop:    make(chan struct{}),
		exited:  make(chan struct{}),
	}

	logger.Debug("build started", "args", opts.Args, "dir", opts.Dir, "pid", cmd.Process.Pid)

	go h.read(stdoutStream)
	go h.read(stderrStream)
	go h.wait()

	return h, nil
}

func spawnReason(err error) string {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return execErr.Name + ": " + execErr.Err.Error()
	}
	return err.Error()
}

// PID returns the process ID.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Done returns a channel that is closed when the process exits.
func (h *Handle) Done() <-chan struct{} {
	return h.exited
}

// Kill terminates the process group.
func (h *Handle) Kill() error {
	select {
	case <-h.exited:
		return nil
	default:
	}
	return unix.Kill(-h.cmd.Process.Pid, unix.SIGKILL)
}

// read moves chunks off one pipe. Once Drain has stopped listening the
// pipe is still read, and the bytes discarded, so a build that outlives its
// timeout never blocks on a full pipe or dies writing to a closed one.
func (h *Handle) read(id streamID) {
	f := h.pipes[id]
	buf := make([]byte, readSize)
	discard := false
	for {
		n, err := f.Read(buf)
		if n > 0 && !discard {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case h.chunks <- chunk{stream: id, data: data}:
			case <-h.stop:
				discard = true
			}
		}
		if err != nil {
			if !discard {
				select {
				case h.chunks <- chunk{stream: id, eof: true}:
				case <-h.stop:
				}
			}
			return
		}
	}
}

// release closes the pipes once the process has exited, ending readers
// still discarding output after a timeout.
func (h *Handle) release() {
	<-h.exited
	h.closePipes()
}

func (h *Handle) closePipes() {
	h.closeOnce.Do(func() {
		for _, f := range h.pipes {
			f.Close()
		}
	})
}

func (h *Handle) wait() {
	h.waitErr = h.cmd.Wait()
	close(h.exited)
}

// Drain runs the event loop until the process has exited and both streams
// have ended, or until the timeout fires. Each feed's End is called exactly
// once before Drain returns. Drain must be called once.
func (h *Handle) Drain(stdout, stderr LineFeed) Exit {
	feeds := [2]LineFeed{stdout, stderr}
	var ended [2]bool

	var timer <-chan time.Time
	if h.timeout > 0 {
		t := time.NewTimer(h.timeout)
		defer t.Stop()
		timer = t.C
	}

	exited := h.exited
	cancel := h.ctx.Done()
	processDone := false
	timedOut := false

	for !timedOut && !(processDone && ended[0] && ended[1]) {
		select {
		case c := <-h.chunks:
			h.handle(c, feeds, &ended)
		case <-exited:
			processDone = true
			exited = nil
		case <-timer:
			timedOut = true
		case <-cancel:
			h.logger.Warn("build canceled; killing process group", "pid", h.PID(), "error", h.ctx.Err())
			if err := h.Kill(); err != nil {
				h.logger.Warn("kill build process group", "error", err)
			}
			cancel = nil
		}
	}

	if timedOut {
		h.drainBuffered(feeds, &ended)
	}

	close(h.stop)
	for id := range h.pipes {
		if !ended[id] {
			h.end(streamID(id), feeds)
		}
	}
	if ended[0] && ended[1] {
		h.closePipes()
	} else {
		go h.release()
	}

	select {
	case <-h.exited:
		exit := exitFromWait(h.waitErr)
		h.logger.Debug("build finished", "exit", exit.String(), "elapsed", time.Since(h.started))
		return exit
	default:
		h.logger.Warn("build timed out", "timeout", h.timeout, "pid", h.PID())
		return Exit{Kind: TimedOut}
	}
}

// drainBuffered handles chunks that are already queued without waiting for
// more.
func (h *Handle) drainBuffered(feeds [2]LineFeed, ended *[2]bool) {
	for {
		select {
		case c := <-h.chunks:
			h.handle(c, feeds, ended)
		default:
			return
		}
	}
}

func (h *Handle) handle(c chunk, feeds [2]LineFeed, ended *[2]bool) {
	if ended[c.stream] {
		return
	}
	if c.eof {
		h.end(c.stream, feeds)
		ended[c.stream] = true
		return
	}
	replaceNUL(c.data)
	if text := h.decoder[c.stream].decode(c.data, false); text != "" {
		feeds[c.stream].Feed(text)
	}
}

func (h *Handle) end(id streamID, feeds [2]LineFeed) {
	if text := h.decoder[id].decode(nil, true); text != "" {
		feeds[id].Feed(text)
	}
	feeds[id].End()
}

// Run starts the command and drains it. Spawn failures are reported as an
// Exit rather than an error.
func Run(ctx context.Context, opts Options, stdout, stderr LineFeed) Exit {
	h, err := Start(ctx, opts)
	if err != nil {
		var spawnErr *SpawnError
		if errors.As(err, &spawnErr) {
			return Exit{Kind: SpawnFailure, Reason: spawnErr.Reason}
		}
		return Exit{Kind: SpawnFailure, Reason: err.Error()}
	}
	return h.Drain(stdout, stderr)
}

// buildEnvironment creates the child environment.
// Precedence (highest to lowest): env > os.Environ(); unset names are
// removed from the inherited environment first.
func buildEnvironment(env map[string]string, unset []string) []string {
	envMap := make(map[string]string)

	for _, kv := range os.Environ() {
		if idx := strings.Index(kv, "="); idx > 0 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}

	for _, k := range unset {
		delete(envMap, k)
	}

	for k, v := range env {
		envMap[k] = v
	}

	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(envMap))
	for _, k := range keys {
		result = append(result, k+"="+envMap[k])
	}
	return result
}
