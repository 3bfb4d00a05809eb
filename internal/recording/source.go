package recording

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"veriflow/internal/camera"
)

// chunkSource delivers encoded video data in arrival order. Chunks closes
// when the stream ends; Done closes once the underlying producer has fully
// shut down and Err is safe to read.
type chunkSource interface {
	Chunks() <-chan []byte
	Stop()
	Done() <-chan struct{}
	Err() error
}

const chunkSize = 64 * 1024

// ffmpegSource captures from a device into a streamable container on stdout.
// Stop asks ffmpeg to finalize via SIGINT; the first stop wins and later
// calls are no-ops.
type ffmpegSource struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	chunks  chan []byte
	done    chan struct{}
	stop    sync.Once
	stopped atomic.Bool
	err     error
}

type captureSpec struct {
	Binary    string
	Device    camera.Device
	Profile   camera.Profile
	Encoding  Encoding
	Bitrate   int
	MaxLength int
}

func startFFmpegSource(spec captureSpec) (chunkSource, error) {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2"}
	if spec.Profile.Width > 0 && spec.Profile.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", spec.Profile.Width, spec.Profile.Height))
	}
	if spec.Profile.FrameRate > 0 {
		args = append(args, "-framerate", strconv.Itoa(spec.Profile.FrameRate))
	}
	args = append(args, "-i", spec.Device.Path)
	if spec.MaxLength > 0 {
		// Hard ceiling in case the stop signal never lands.
		args = append(args, "-t", strconv.Itoa(spec.MaxLength))
	}
	args = append(args, "-c:v", spec.Encoding.Codec)
	if spec.Bitrate > 0 {
		args = append(args, "-b:v", strconv.Itoa(spec.Bitrate))
	}
	switch spec.Encoding.Container {
	case "mp4":
		args = append(args, "-movflags", "frag_keyframe+empty_moov", "-f", "mp4")
	default:
		args = append(args, "-f", spec.Encoding.Container)
	}
	args = append(args, "pipe:1")

	cmd := exec.Command(spec.Binary, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start capture: %w", err)
	}

	src := &ffmpegSource{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		chunks: make(chan []byte, 8),
		done:   make(chan struct{}),
	}
	go src.pump()
	return src, nil
}

func (s *ffmpegSource) pump() {
	for {
		buf := make([]byte, chunkSize)
		n, err := s.stdout.Read(buf)
		if n > 0 {
			s.chunks <- buf[:n]
		}
		if err != nil {
			break
		}
	}
	close(s.chunks)

	err := s.cmd.Wait()
	if err != nil && !s.stopped.Load() {
		detail := strings.TrimSpace(s.stderr.String())
		if detail != "" {
			s.err = fmt.Errorf("capture: %s: %w", detail, err)
		} else {
			s.err = fmt.Errorf("capture: %w", err)
		}
	}
	close(s.done)
}

func (s *ffmpegSource) Chunks() <-chan []byte {
	return s.chunks
}

func (s *ffmpegSource) Stop() {
	s.stop.Do(func() {
		s.stopped.Store(true)
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Signal(os.Interrupt)
		}
	})
}

func (s *ffmpegSource) Done() <-chan struct{} {
	return s.done
}

func (s *ffmpegSource) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
