package midi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/theory"
)

// ErrUnsupportedTimeFormat is returned for SMPTE-timed files
var ErrUnsupportedTimeFormat = errors.New("only metric (ticks per quarter) time format is supported")

type partKey struct {
	track   int
	channel uint8
}

type noteSpan struct {
	key   uint8
	start int64
	end   int64
	seq   int
}

type otherEvent struct {
	tick int64
	seq  int
}

type partBuilder struct {
	key        partKey
	name       string
	program    int
	hasProgram bool
	notes      []noteSpan
	others     []otherEvent
}

// ReadFile parses a Standard MIDI File from disk
func ReadFile(path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// Parse reads a Standard MIDI File into parts of notes, chords and ignored events.
// A part is one channel within one track. Notes starting on the same tick in a
// part become a chord, pitches in the order their note-on events appear, lasting
// as long as the longest of them.
func Parse(r io.Reader) (*models.Document, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, err
	}

	tpq, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrUnsupportedTimeFormat
	}
	ticksPerQuarter := int64(tpq.Ticks4th())
	if ticksPerQuarter == 0 {
		return nil, ErrUnsupportedTimeFormat
	}

	builders := make(map[partKey]*partBuilder)
	channelPrograms := make(map[uint8]int)

	get := func(k partKey) *partBuilder {
		b, ok := builders[k]
		if !ok {
			b = &partBuilder{key: k}
			builders[k] = b
		}
		return b
	}

	for ti, track := range s.Tracks {
		var (
			tick      int64
			seq       int
			trackName string
			open      = make(map[partKey]map[uint8][]noteSpan)
		)

		for _, ev := range track {
			tick += int64(ev.Delta)
			msg := ev.Message
			seq++

			var ch, key, vel, prog, ctl, val uint8
			var text string

			switch {
			case msg.GetMetaTrackName(&text):
				trackName = text
			case msg.GetProgramChange(&ch, &prog):
				b := get(partKey{ti, ch})
				if !b.hasProgram {
					b.program = int(prog)
					b.hasProgram = true
				}
				if _, seen := channelPrograms[ch]; !seen {
					channelPrograms[ch] = int(prog)
				}
			case msg.GetNoteStart(&ch, &key, &vel):
				k := partKey{ti, ch}
				get(k)
				if open[k] == nil {
					open[k] = make(map[uint8][]noteSpan)
				}
				open[k][key] = append(open[k][key], noteSpan{key: key, start: tick, seq: seq})
			case msg.GetNoteEnd(&ch, &key):
				k := partKey{ti, ch}
				stack := open[k][key]
				if len(stack) == 0 {
					continue
				}
				n := stack[0]
				open[k][key] = stack[1:]
				n.end = tick
				b := get(k)
				b.notes = append(b.notes, n)
			case msg.GetControlChange(&ch, &ctl, &val):
				b := get(partKey{ti, ch})
				b.others = append(b.others, otherEvent{tick: tick, seq: seq})
			}
		}

		// notes still sounding at the end of the track stop there
		for k, keys := range open {
			for _, stack := range keys {
				for _, n := range stack {
					n.end = tick
					get(k).notes = append(get(k).notes, n)
				}
			}
		}

		for k, b := range builders {
			if k.track == ti && b.name == "" {
				b.name = trackName
			}
		}
	}

	keys := make([]partKey, 0, len(builders))
	for k := range builders {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].track != keys[j].track {
			return keys[i].track < keys[j].track
		}
		return keys[i].channel < keys[j].channel
	})

	doc := &models.Document{}
	for _, k := range keys {
		b := builders[k]
		if !b.hasProgram {
			if p, ok := channelPrograms[k.channel]; ok {
				b.program = p
				b.hasProgram = true
			}
		}
		if len(b.notes) == 0 && len(b.others) == 0 {
			continue
		}
		doc.Parts = append(doc.Parts, b.build(ticksPerQuarter))
	}

	return doc, nil
}

func (b *partBuilder) build(tpq int64) models.PartSource {
	sort.SliceStable(b.notes, func(i, j int) bool {
		if b.notes[i].start != b.notes[j].start {
			return b.notes[i].start < b.notes[j].start
		}
		return b.notes[i].seq < b.notes[j].seq
	})

	type timed struct {
		tick int64
		seq  int
		el   models.Element
	}
	var items []timed

	for i := 0; i < len(b.notes); {
		j := i
		longest := int64(0)
		var pitches []string
		for ; j < len(b.notes) && b.notes[j].start == b.notes[i].start; j++ {
			pitches = append(pitches, theory.MIDIToNoteName(int(b.notes[j].key)))
			if d := b.notes[j].end - b.notes[j].start; d > longest {
				longest = d
			}
		}
		kind := models.ElementNote
		if len(pitches) > 1 {
			kind = models.ElementChord
		}
		items = append(items, timed{
			tick: b.notes[i].start,
			seq:  b.notes[i].seq,
			el: models.Element{
				Kind:     kind,
				Pitches:  pitches,
				Duration: models.NewQuarterLength(longest, tpq),
				Offset:   models.NewQuarterLength(b.notes[i].start, tpq),
			},
		})
		i = j
	}

	for _, o := range b.others {
		items = append(items, timed{
			tick: o.tick,
			seq:  o.seq,
			el: models.Element{
				Kind:   models.ElementOther,
				Offset: models.NewQuarterLength(o.tick, tpq),
			},
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].tick != items[j].tick {
			return items[i].tick < items[j].tick
		}
		return items[i].seq < items[j].seq
	})

	elements := make([]models.Element, len(items))
	for i, it := range items {
		elements[i] = it.el
	}

	return models.PartSource{
		Name:       b.name,
		Program:    b.program,
		HasProgram: b.hasProgram,
		Elements:   elements,
	}
}
