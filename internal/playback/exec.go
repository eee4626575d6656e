package playback

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
)

// DefaultCommand plays a URL or stdin without a window and exits at the end.
var DefaultCommand = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}

// ExecPlayer plays audio by running an external command. URL sources are
// passed as the last argument; in-memory sources are piped to stdin with "-".
type ExecPlayer struct {
	Command []string
}

func (p ExecPlayer) Play(ctx context.Context, src Source) (Handle, error) {
	argv := p.Command
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	args := append([]string{}, argv[1:]...)

	var stdin *bytes.Reader
	switch {
	case src.URL != "":
		args = append(args, src.URL)
	case len(src.Data) > 0:
		args = append(args, "-")
		stdin = bytes.NewReader(src.Data)
	default:
		return nil, ErrEmptySource
	}

	// The process outlives the request context; Stop ends it.
	cmd := exec.Command(argv[0], args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &execHandle{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

type execHandle struct {
	cmd  *exec.Cmd
	done chan struct{}
	once sync.Once
	err  error
}

func (h *execHandle) Stop() error {
	h.once.Do(func() {
		select {
		case <-h.done:
			return
		default:
		}
		if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			h.err = err
		}
	})
	return h.err
}

func (h *execHandle) Done() <-chan struct{} { return h.done }
