package midi

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"sort"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/Conceptual-Machines/magda-composer/internal/logger"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/score"
	"github.com/Conceptual-Machines/magda-composer/internal/theory"
)

const (
	// TicksPerQuarter divides evenly by 3 so triplet offsets land on whole ticks
	TicksPerQuarter = 960
	defaultVelocity = 90
	drumChannel     = 9
	melodicChannels = 15
)

// event ranks order events that share a tick
const (
	rankNoteOff = iota
	rankMarker
	rankNoteOn
)

type noteEvent struct {
	tick   int64
	rank   int
	key    uint8
	seq    int
	marker string
}

// Write encodes a score as a format 1 Standard MIDI File. Track 0 carries tempo
// and meter; each part gets its own track. Parts that share a program share a
// channel. When a score was regrouped into measures every part track carries a
// "Bar N" marker at the start of each bar.
func Write(w io.Writer, s *score.Score) error {
	file := smf.New()
	file.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	tempo := s.TempoBPM
	if tempo <= 0 {
		tempo = score.TempoBPM
	}

	var conductor smf.Track
	conductor.Add(0, smf.MetaTempo(float64(tempo)))
	if len(s.Parts) > 0 {
		ts := s.Parts[0].TimeSignature
		conductor.Add(0, smf.MetaMeter(uint8(ts.Numerator), uint8(ts.Denominator)))
	} else {
		conductor.Add(0, smf.MetaMeter(score.BeatsPerMeasure, score.BeatUnit))
	}
	conductor.Close(0)
	if err := file.Add(conductor); err != nil {
		return fmt.Errorf("failed to add conductor track: %w", err)
	}

	channels, shared := assignChannels(s.Parts)
	if len(shared) > 0 {
		logger.Warn("More instruments than MIDI channels, some programs share a channel", logger.Fields{
			"parts":           len(s.Parts),
			"shared_programs": shared,
		})
	}

	for i, part := range s.Parts {
		tr, err := partTrack(part, channels[i])
		if err != nil {
			return err
		}
		if err := file.Add(tr); err != nil {
			return fmt.Errorf("failed to add track for %s: %w", part.Instrument.Name, err)
		}
	}

	_, err := file.WriteTo(w)
	return err
}

// WriteFile encodes the score in memory, writes it to a temporary file in the
// target directory and renames it into place. A failed encode or write leaves
// nothing at path.
func WriteFile(path string, s *score.Score) error {
	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := writeAndClose(tmp, buf.Bytes()); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

func writeAndClose(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func partTrack(part *score.Part, channel uint8) (smf.Track, error) {
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(part.Instrument.Name))
	tr.Add(0, gomidi.ProgramChange(channel, uint8(part.Instrument.Program)))

	events, err := flatten(part.Elements)
	if err != nil {
		return nil, fmt.Errorf("part %s: %w", part.Instrument.Name, err)
	}
	events = append(events, barMarkers(part.Measures)...)
	sortEvents(events)

	var last int64
	for _, ev := range events {
		delta := uint32(ev.tick - last)
		last = ev.tick
		switch ev.rank {
		case rankNoteOn:
			tr.Add(delta, gomidi.NoteOn(channel, ev.key, defaultVelocity))
		case rankMarker:
			tr.Add(delta, smf.MetaMarker(ev.marker))
		default:
			tr.Add(delta, gomidi.NoteOff(channel, ev.key))
		}
	}
	tr.Close(0)
	return tr, nil
}

// flatten turns placements into note on/off pairs. Placements keep their stream
// order in the score; sortEvents only applies what delta-time encoding requires.
func flatten(elements []score.Placement) ([]noteEvent, error) {
	var events []noteEvent
	seq := 0
	for _, el := range elements {
		if el.Duration.Num <= 0 {
			continue
		}
		start := toTicks(el.Offset)
		end := toTicks(el.Offset.Add(el.Duration))
		if end <= start {
			end = start + 1
		}
		for _, p := range el.Pitches {
			key, err := theory.NoteNameToMIDI(p)
			if err != nil {
				return nil, err
			}
			events = append(events,
				noteEvent{tick: start, rank: rankNoteOn, key: uint8(key), seq: seq},
				noteEvent{tick: end, rank: rankNoteOff, key: uint8(key), seq: seq},
			)
			seq++
		}
	}
	return events, nil
}

func barMarkers(measures []score.Measure) []noteEvent {
	markers := make([]noteEvent, 0, len(measures))
	for _, m := range measures {
		markers = append(markers, noteEvent{
			tick:   toTicks(m.Offset),
			rank:   rankMarker,
			seq:    m.Number,
			marker: fmt.Sprintf("Bar %d", m.Number),
		})
	}
	return markers
}

// sortEvents orders by absolute tick. At equal ticks note-offs go first, then
// bar markers, then note-ons.
func sortEvents(events []noteEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		if events[i].rank != events[j].rank {
			return events[i].rank < events[j].rank
		}
		return events[i].seq < events[j].seq
	})
}

func toTicks(q models.QuarterLength) int64 {
	if q.Den <= 0 {
		return 0
	}
	// round half up: (2*num*tpq + den) / (2*den)
	num := new(big.Int).Mul(big.NewInt(q.Num), big.NewInt(2*TicksPerQuarter))
	num.Add(num, big.NewInt(q.Den))
	den := new(big.Int).Mul(big.NewInt(q.Den), big.NewInt(2))
	ticks := num.Quo(num, den)
	if !ticks.IsInt64() {
		return math.MaxInt64
	}
	return ticks.Int64()
}

// assignChannels gives each distinct program its own melodic channel, in part
// order. Parts with the same program share that channel. Past 15 programs the
// channels are reused, and the programs placed on a reused channel are returned.
func assignChannels(parts []*score.Part) ([]uint8, []int) {
	channels := make([]uint8, len(parts))
	byProgram := make(map[int]uint8)
	var shared []int
	for i, p := range parts {
		program := p.Instrument.Program
		ch, ok := byProgram[program]
		if !ok {
			n := len(byProgram)
			ch = channelFor(n)
			if n >= melodicChannels {
				shared = append(shared, program)
			}
			byProgram[program] = ch
		}
		channels[i] = ch
	}
	return channels, shared
}

// channelFor maps an index to a melodic channel, skipping percussion
func channelFor(i int) uint8 {
	ch := uint8(i % melodicChannels)
	if ch >= drumChannel {
		ch++
	}
	return ch
}
