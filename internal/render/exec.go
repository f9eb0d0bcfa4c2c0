package render

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/timeline"
	"github.com/mattn/go-shellwords"
)

// maxPCMLine bounds one JSONL response line. Base64 PCM for a few seconds of
// audio exceeds the default scanner token size.
const maxPCMLine = 16 << 20

type execRenderer struct {
	cmd        []string
	outputDir  string
	sampleRate int
	channels   int
	mu         sync.Mutex
}

type execRequest struct {
	SessionID  string          `json:"session_id"`
	SampleRate int             `json:"sample_rate"`
	Channels   int             `json:"channels"`
	Timeline   json.RawMessage `json:"timeline"`
}

type execResponse struct {
	PCMBase64 string `json:"pcm_base64"`
	Final     bool   `json:"final"`
}

// NewExecRenderer wraps an external synthesizer command. The command receives
// the timeline envelope as JSON on stdin, answers JSONL {pcm_base64, final}
// chunks, and the collected PCM is sunk to <output_dir>/<session_id>.wav.
func NewExecRenderer(cfg config.RenderConfig) (Renderer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse render command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("render command is empty")
	}
	return &execRenderer{
		cmd:        args,
		outputDir:  cfg.OutputDir,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
	}, nil
}

func (r *execRenderer) Render(ctx context.Context, sessionID string, tl timeline.Timeline) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := tl.Marshal()
	if err != nil {
		return Result{}, err
	}
	input, err := json.Marshal(execRequest{
		SessionID:  sessionID,
		SampleRate: r.sampleRate,
		Channels:   r.channels,
		Timeline:   raw,
	})
	if err != nil {
		return Result{}, err
	}

	cmd := exec.CommandContext(ctx, r.cmd[0], r.cmd[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Result{}, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start render command: %w", err)
	}

	if _, err := stdin.Write(input); err != nil {
		cmd.Wait()
		return Result{}, err
	}
	stdin.Close()

	var pcm []byte
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxPCMLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp execResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			cmd.Wait()
			return Result{}, fmt.Errorf("decode render response: %w", err)
		}
		chunk, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
		if err != nil {
			cmd.Wait()
			return Result{}, fmt.Errorf("decode render pcm: %w", err)
		}
		pcm = append(pcm, chunk...)
	}
	if err := cmd.Wait(); err != nil {
		return Result{}, fmt.Errorf("render command failed: %w: %s", err, stderr.String())
	}
	if err := scanner.Err(); err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return Result{}, err
	}
	path := filepath.Join(r.outputDir, sessionID+".wav")
	if err := writeWAV(path, pcm, r.sampleRate, r.channels); err != nil {
		return Result{}, err
	}
	return Result{
		SessionID: sessionID,
		Path:      path,
		Events:    tl.Len(),
		Duration:  tl.Span(),
		PCMBytes:  len(pcm),
	}, nil
}
