package services

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"vox-agent-backend/internal/apperr"
	"vox-agent-backend/internal/config"
	"vox-agent-backend/internal/logger"
)

const (
	sttTimeout = 5 * time.Minute
	ttsTimeout = 5 * time.Minute
)

// AudioService wraps the transcription and synthesis binaries. Both are
// optional collaborators: missing configuration degrades the feature, not
// the process.
type AudioService struct {
	sttBinary    string
	sttModelPath string
	ttsBinary    string
	ttsModelPath string
	tempDir      string
}

func NewAudioService(cfg *config.Config) *AudioService {
	s := &AudioService{
		sttBinary:    cfg.STTBinary,
		sttModelPath: cfg.STTModelPath,
		ttsBinary:    cfg.TTSBinary,
		ttsModelPath: cfg.TTSModelPath,
		tempDir:      cfg.TempDir,
	}
	if s.sttModelPath == "" {
		logger.Warn("STT_MODEL_PATH not set, audio transcription disabled")
	}
	if s.ttsModelPath == "" {
		logger.Warn("TTS_MODEL_PATH not set, text-to-speech disabled")
	}
	return s
}

// TranscribeAudio runs the whisper-style binary on the audio file and
// returns the recognized text from stdout.
func (s *AudioService) TranscribeAudio(ctx context.Context, audioPath string) (string, error) {
	if s.sttModelPath == "" {
		return "", apperr.Validation("transcription is not configured, set STT_MODEL_PATH")
	}

	ctx, cancel := context.WithTimeout(ctx, sttTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.sttBinary,
		"--model", s.sttModelPath,
		"--no-timestamps",
		"--file", audioPath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", apperr.Connectivity(err, "transcription timed out")
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", apperr.Upstream(0, fmt.Sprintf("transcription failed: %s", msg))
	}

	text := strings.TrimSpace(stdout.String())
	logger.Info("Transcribed audio", "file", filepath.Base(audioPath), "chars", len(text))
	return text, nil
}

// TextToSpeech synthesizes text into a wav file under the temp directory
// via the piper binary and returns its path.
func (s *AudioService) TextToSpeech(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", apperr.Validation("no text provided for TTS")
	}
	if s.ttsModelPath == "" {
		return "", apperr.Validation("text-to-speech is not configured, set TTS_MODEL_PATH to a piper voice model")
	}
	if _, err := os.Stat(s.ttsModelPath); err != nil {
		return "", apperr.Configuration("TTS model not found at %s", s.ttsModelPath)
	}

	outputPath := filepath.Join(s.tempDir, fmt.Sprintf("tts_%d.wav", textHash(text)))

	ctx, cancel := context.WithTimeout(ctx, ttsTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.ttsBinary,
		"--model", s.ttsModelPath,
		"--output_file", outputPath,
	)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", apperr.Connectivity(err, "TTS generation timed out")
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", apperr.Upstream(0, fmt.Sprintf("piper TTS failed: %s", msg))
	}

	logger.Info("Generated TTS audio", "file", filepath.Base(outputPath))
	return outputPath, nil
}

func textHash(text string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	return h.Sum32()
}
