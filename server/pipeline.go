package voxserv

import (
	"fmt"
	"time"

	"github.com/voxlate/voxlate/audio"
	"github.com/voxlate/voxlate/config"
)

// Pipeline is the speech processing stage the dev backend stands in for. The
// real deployment talks to cloud STT/translation/TTS; the wire contract is
// identical either way.
type Pipeline interface {
	Transcribe(pcm []byte, sourceLang string) string
	Translate(text, sourceLang, targetLang string) string
	Synthesize(text, targetLang, voiceModel, voiceGender, voicePrompt string) ([]byte, error)
}

// StubPipeline produces deterministic placeholder output: transcripts
// describing the received audio, tagged translations, and a fixed tone as
// synthesized speech. Enough to exercise every frame type end to end.
type StubPipeline struct {
	cfg config.PipelineConfig
}

func NewStubPipeline(cfg config.PipelineConfig) *StubPipeline {
	return &StubPipeline{cfg: cfg}
}

func (p *StubPipeline) Transcribe(pcm []byte, sourceLang string) string {
	ms := len(pcm) * 1000 / (audio.SampleRate * audio.Channels * audio.BitsPerSample / 8)
	return fmt.Sprintf("[%s %dms]", sourceLang, ms)
}

func (p *StubPipeline) Translate(text, sourceLang, targetLang string) string {
	return fmt.Sprintf("(%s) %s", targetLang, text)
}

func (p *StubPipeline) Synthesize(text, targetLang, voiceModel, voiceGender, voicePrompt string) ([]byte, error) {
	tone := audio.Tone(p.cfg.SynthToneHz, time.Duration(p.cfg.SynthSegmentMs)*time.Millisecond)
	return audio.EncodeSegment(tone)
}
