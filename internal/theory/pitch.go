package theory

import (
	"fmt"
	"strconv"
	"strings"
)

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var letterOffsets = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// defaultOctave is used when a pitch name omits its octave, e.g. "F#"
const defaultOctave = 4

// NoteNameToMIDI converts a pitch name to a MIDI note number.
// Accepts sharps as '#' and flats as 'b' or '-', repeated for double accidentals
// (C##4, E--3). A trailing "-1" is octave -1, so C-1 = 0 and C4 = 60.
func NoteNameToMIDI(noteName string) (int, error) {
	if noteName == "" {
		return 0, fmt.Errorf("empty note name")
	}

	letter := strings.ToUpper(noteName[:1])[0]
	semitone, ok := letterOffsets[letter]
	if !ok {
		return 0, fmt.Errorf("invalid note letter: %c", noteName[0])
	}

	idx := 1
accidentals:
	for idx < len(noteName) {
		switch c := noteName[idx]; {
		case c == '#':
			semitone++
		case c == 'b':
			semitone--
		case c == '-' && noteName[idx:] != "-1":
			semitone--
		default:
			break accidentals
		}
		idx++
	}

	oct := defaultOctave
	if idx < len(noteName) {
		v, err := strconv.Atoi(noteName[idx:])
		if err != nil {
			return 0, fmt.Errorf("invalid octave in note name %s: %w", noteName, err)
		}
		oct = v
	}

	midiNote := (oct+1)*12 + semitone
	if midiNote < 0 || midiNote > 127 {
		return 0, fmt.Errorf("note %s outside MIDI range", noteName)
	}
	return midiNote, nil
}

// MIDIToNoteName returns the sharp spelling with octave, e.g. 61 -> "C#4"
func MIDIToNoteName(note int) string {
	if note < 0 {
		note = 0
	}
	if note > 127 {
		note = 127
	}
	return sharpNames[note%12] + strconv.Itoa(note/12-1)
}

// ValidPitch reports whether name can be placed in a score
func ValidPitch(name string) bool {
	_, err := NoteNameToMIDI(name)
	return err == nil
}
