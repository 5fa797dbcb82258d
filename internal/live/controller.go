// Package live runs the realtime voice and video loop: microphone
// audio is segmented into utterances by silence detection, each
// utterance goes to the model as an inline WAV together with the
// newest camera or screen frame, and the reply is read aloud through
// the platform TTS. Turns are strictly user initiated; the model only
// speaks after the user does.
package live

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"omnichat/internal/gemini"
	"omnichat/internal/logging"
	"omnichat/internal/store"
)

const (
	utterancePrompt = "Please transcribe and respond to this audio."
	frameNote       = " Use the attached image for visual context."
)

// EventKind tags events on the controller's channel.
type EventKind int

const (
	EventUtterance EventKind = iota
	EventReplyStarted
	EventReplyText
	EventError
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventUtterance:
		return "utterance"
	case EventReplyStarted:
		return "reply-started"
	case EventReplyText:
		return "reply-text"
	case EventError:
		return "error"
	case EventStopped:
		return "stopped"
	}
	return "unknown"
}

// Event is one observable step of the loop, consumed by the CLI.
type Event struct {
	Kind     EventKind
	Text     string
	Err      error
	Duration time.Duration
}

// LLM is the multimodal completion surface the loop needs.
type LLM interface {
	CompleteChat(ctx context.Context, systemPrompt string, history []gemini.Content) (string, error)
}

// PCMSource feeds the loop with microphone chunks.
type PCMSource interface {
	Start(ctx context.Context) error
	Chunks() <-chan []int16
	Stop()
}

// FrameProvider keeps the newest camera or screen frame available.
type FrameProvider interface {
	Start(ctx context.Context) error
	Latest() ([]byte, bool)
	Stop()
}

// TTS voices replies. Speaking gates mic capture against feedback.
type TTS interface {
	Speak(ctx context.Context, text string) error
	Speaking() bool
}

// Config tunes one live run.
type Config struct {
	Mode             VideoMode
	CameraIndex      int
	SilenceThreshold int
	SilenceDuration  time.Duration
}

// DefaultConfig matches the loop's usual setup: camera on, standard
// silence detection.
func DefaultConfig() Config {
	return Config{
		Mode:             ModeCamera,
		SilenceThreshold: DefaultSilenceThreshold,
		SilenceDuration:  DefaultSilenceDuration,
	}
}

// Controller wires capture, segmentation, the model, and speech into
// one supervised pipeline. A controller is single use.
type Controller struct {
	audio   PCMSource
	frames  FrameProvider
	llm     LLM
	speaker TTS
	store   *store.Store
	cfg     Config

	events chan Event
	utts   chan *Utterance
	cancel context.CancelFunc
	eg     *errgroup.Group

	mu         sync.Mutex
	running    bool
	transcript []store.Message
	turns      int
	sessionID  string

	stopOnce sync.Once
}

// NewController builds a controller. Nil audio, frames, or speaker
// select the platform defaults; a nil store skips transcript
// persistence.
func NewController(audio PCMSource, frames FrameProvider, llm LLM, speaker TTS, st *store.Store, cfg Config) *Controller {
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = DefaultSilenceThreshold
	}
	if cfg.SilenceDuration <= 0 {
		cfg.SilenceDuration = DefaultSilenceDuration
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeNone
	}
	if audio == nil {
		audio = NewAudioSource(nil)
	}
	if frames == nil {
		frames = NewFrameSource(cfg.Mode, cfg.CameraIndex)
	}
	if speaker == nil {
		speaker = NewSpeaker("")
	}
	return &Controller{
		audio:   audio,
		frames:  frames,
		llm:     llm,
		speaker: speaker,
		store:   st,
		cfg:     cfg,
		events:  make(chan Event, 32),
		utts:    make(chan *Utterance, 4),
	}
}

// Events delivers loop events. The channel closes after Stop.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// SessionID returns the persisted transcript session, set on Stop.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Start launches capture and the reply pipeline. A video failure
// degrades to voice only rather than failing the run.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("live loop already running")
	}
	c.running = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if err := c.audio.Start(ctx); err != nil {
		cancel()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return err
	}
	if c.cfg.Mode != ModeNone {
		if err := c.frames.Start(ctx); err != nil {
			logging.LiveWarn("video disabled, continuing voice only: %v", err)
			c.frames = nil
		}
	} else {
		c.frames = nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	c.eg = eg
	eg.Go(func() error { return c.captureLoop(egCtx) })
	eg.Go(func() error { return c.replyLoop(egCtx) })

	logging.Live("live loop started (mode=%s, threshold=%d, silence=%s)",
		c.cfg.Mode, c.cfg.SilenceThreshold, c.cfg.SilenceDuration)
	return nil
}

// captureLoop feeds mic chunks through the segmenter. Chunks are
// dropped while a reply is playing so the model never hears itself.
func (c *Controller) captureLoop(ctx context.Context) error {
	defer close(c.utts)
	seg := NewSegmenter(c.cfg.SilenceThreshold, c.cfg.SilenceDuration)

	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-c.audio.Chunks():
			if !ok {
				// Recorder died on its own. Hand over whatever
				// speech was buffered before going quiet.
				if utt, ok := seg.Flush(); ok {
					select {
					case c.utts <- utt:
					case <-ctx.Done():
					}
				}
				return nil
			}
			if c.speaker.Speaking() {
				continue
			}
			utt, ok := seg.Feed(chunk)
			if !ok {
				continue
			}
			c.emit(Event{Kind: EventUtterance, Duration: utt.Duration})
			logging.LiveDebug("utterance captured (%.1fs)", utt.Duration.Seconds())
			select {
			case c.utts <- utt:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (c *Controller) replyLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case utt, ok := <-c.utts:
			if !ok {
				return nil
			}
			c.handleUtterance(ctx, utt)
		}
	}
}

// handleUtterance runs one turn: WAV plus newest frame to the model,
// reply out as an event and through the speaker. Errors surface as
// events and the loop keeps going.
func (c *Controller) handleUtterance(ctx context.Context, utt *Utterance) {
	timer := logging.StartTimer(logging.CategoryLive, "live turn")
	defer timer.StopWithInfo()

	wav := wavEncode(utt.PCM, SampleRate)
	media := []gemini.Part{{InlineData: &gemini.Blob{
		MIMEType: "audio/wav",
		Data:     base64.StdEncoding.EncodeToString(wav),
	}}}
	prompt := utterancePrompt
	if c.frames != nil {
		if img, ok := c.frames.Latest(); ok {
			prompt += frameNote
			media = append(media, gemini.Part{InlineData: &gemini.Blob{
				MIMEType: "image/jpeg",
				Data:     base64.StdEncoding.EncodeToString(img),
			}})
		}
	}
	parts := append([]gemini.Part{{Text: prompt}}, media...)

	c.emit(Event{Kind: EventReplyStarted})
	reply, err := c.llm.CompleteChat(ctx, "", []gemini.Content{{Role: gemini.RoleUser, Parts: parts}})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.LiveError("live turn failed: %v", err)
		c.emit(Event{Kind: EventError, Err: err})
		return
	}

	c.emit(Event{Kind: EventReplyText, Text: reply})
	c.record(utt, reply)
	if err := c.speaker.Speak(ctx, reply); err != nil {
		logging.LiveWarn("speak: %v", err)
	}
}

func (c *Controller) record(utt *Utterance, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns++
	seq := len(c.transcript)
	c.transcript = append(c.transcript,
		store.Message{
			Seq:     seq + 1,
			Role:    store.RoleUser,
			Content: fmt.Sprintf("(voice, %.1fs)", utt.Duration.Seconds()),
		},
		store.Message{
			Seq:     seq + 2,
			Role:    store.RoleModel,
			Content: reply,
		})
}

// Stop cancels the loop, including any in-flight model call, shuts
// down capture, persists the transcript, and closes the event
// channel. Safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		started := c.running
		c.running = false
		c.mu.Unlock()
		if !started {
			return
		}

		c.cancel()
		c.audio.Stop()
		if c.frames != nil {
			c.frames.Stop()
		}
		_ = c.eg.Wait()

		c.persistTranscript()
		c.emit(Event{Kind: EventStopped})
		close(c.events)

		c.mu.Lock()
		turns := c.turns
		c.mu.Unlock()
		logging.Live("live loop stopped after %d turns", turns)
	})
}

func (c *Controller) persistTranscript() {
	if c.store == nil {
		return
	}
	c.mu.Lock()
	transcript := c.transcript
	c.transcript = nil
	c.mu.Unlock()
	if len(transcript) == 0 {
		return
	}

	id := uuid.NewString()
	title := "Live " + time.Now().Format("Jan 2 15:04")
	if err := c.store.CreateSession(id, title, store.KindLive, ""); err != nil {
		logging.LiveWarn("transcript not persisted: %v", err)
		return
	}
	for _, msg := range transcript {
		msg.SessionID = id
		if err := c.store.AppendMessage(msg); err != nil {
			logging.LiveWarn("transcript message not persisted: %v", err)
			return
		}
	}
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		logging.LiveDebug("event channel full, dropping %s", ev.Kind)
	}
}
