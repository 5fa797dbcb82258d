package live

import "time"

// Segmentation defaults. Threshold is mean absolute amplitude over one
// chunk; an utterance ends after a full second under it.
const (
	DefaultSilenceThreshold = 300
	DefaultSilenceDuration  = time.Second
	minUtterance            = 300 * time.Millisecond
)

// Utterance is one stretch of speech cut out of the mic stream.
type Utterance struct {
	PCM      []int16
	Duration time.Duration
}

// Segmenter splits a PCM chunk stream into utterances by silence
// detection. Not safe for concurrent use; feed it from one goroutine.
type Segmenter struct {
	threshold    int
	silenceAfter time.Duration
	rate         int

	speaking bool
	buf      []int16
	silence  time.Duration
}

// NewSegmenter builds a segmenter. Zero values select the defaults.
func NewSegmenter(threshold int, silenceAfter time.Duration) *Segmenter {
	if threshold <= 0 {
		threshold = DefaultSilenceThreshold
	}
	if silenceAfter <= 0 {
		silenceAfter = DefaultSilenceDuration
	}
	return &Segmenter{
		threshold:    threshold,
		silenceAfter: silenceAfter,
		rate:         SampleRate,
	}
}

// Feed consumes one chunk. When the trailing silence passes the
// configured duration the buffered speech is returned as an utterance.
// Utterances shorter than minUtterance are dropped as noise.
func (s *Segmenter) Feed(chunk []int16) (*Utterance, bool) {
	loud := meanAbs(chunk) > s.threshold
	chunkDur := time.Duration(len(chunk)) * time.Second / time.Duration(s.rate)

	if loud {
		s.silence = 0
		s.speaking = true
		s.buf = append(s.buf, chunk...)
		return nil, false
	}

	if !s.speaking {
		return nil, false
	}

	// Trailing silence is kept so the utterance does not end clipped.
	s.buf = append(s.buf, chunk...)
	s.silence += chunkDur
	if s.silence < s.silenceAfter {
		return nil, false
	}
	return s.cut()
}

// Flush returns any buffered speech, ending the utterance early. Used
// when capture stops mid-sentence.
func (s *Segmenter) Flush() (*Utterance, bool) {
	if !s.speaking {
		return nil, false
	}
	return s.cut()
}

func (s *Segmenter) cut() (*Utterance, bool) {
	pcm := s.buf
	trailing := s.silence
	s.buf = nil
	s.speaking = false
	s.silence = 0

	// The blip guard measures speech without the trailing silence,
	// which alone would push any click past the minimum.
	dur := time.Duration(len(pcm)) * time.Second / time.Duration(s.rate)
	if dur-trailing < minUtterance {
		return nil, false
	}
	return &Utterance{PCM: pcm, Duration: dur}, true
}

// meanAbs is the average absolute sample value of one chunk.
func meanAbs(chunk []int16) int {
	if len(chunk) == 0 {
		return 0
	}
	var sum int64
	for _, v := range chunk {
		if v < 0 {
			sum -= int64(v)
		} else {
			sum += int64(v)
		}
	}
	return int(sum / int64(len(chunk)))
}
