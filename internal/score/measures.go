package score

import (
	"sort"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

// MakeMeasures regroups every part's placements into bars of the part's time
// signature. A placement belongs to the bar its offset starts in; notes that cross
// a barline are not split. Applying it twice has no further effect.
func MakeMeasures(s *Score) {
	if s == nil || s.measured {
		return
	}
	for _, p := range s.Parts {
		p.Measures = measuresFor(p)
	}
	s.measured = true
}

func measuresFor(p *Part) []Measure {
	length := p.TimeSignature.MeasureLength()
	if length.Num <= 0 {
		return nil
	}

	var measures []Measure
	index := make(map[int64]int)
	for _, el := range p.Elements {
		// floor(offset / length) for non-negative offsets
		bar := (el.Offset.Num * length.Den) / (el.Offset.Den * length.Num)
		i, ok := index[bar]
		if !ok {
			i = len(measures)
			index[bar] = i
			measures = append(measures, Measure{
				Number: int(bar) + 1,
				Offset: models.NewQuarterLength(bar*length.Num, length.Den),
			})
		}
		measures[i].Elements = append(measures[i].Elements, el)
	}
	// bars stay in stream order inside, but are listed by number
	sort.SliceStable(measures, func(a, b int) bool { return measures[a].Number < measures[b].Number })
	return measures
}
