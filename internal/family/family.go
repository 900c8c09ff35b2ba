// Package family is the registry of the eight test families
// ({listening,reading,writing,speaking} x {ielts,pte}) and the per-family
// metadata the rest of the system keys off: section-count bounds, score
// scale, and whether submissions are auto-scorable.
package family

import (
	"math"

	"github.com/langprep/langprep/internal/apperr"
)

type Skill string

const (
	SkillListening Skill = "listening"
	SkillReading   Skill = "reading"
	SkillWriting   Skill = "writing"
	SkillSpeaking  Skill = "speaking"
)

type Exam string

const (
	ExamIELTS Exam = "ielts"
	ExamPTE   Exam = "pte"
)

// Tag identifies one family, e.g. "ielts_listening" or "pte_writing".
type Tag string

const (
	IELTSListening Tag = "ielts_listening"
	IELTSReading   Tag = "ielts_reading"
	IELTSWriting   Tag = "ielts_writing"
	IELTSSpeaking  Tag = "ielts_speaking"
	PTEListening   Tag = "pte_listening"
	PTEReading     Tag = "pte_reading"
	PTEWriting     Tag = "pte_writing"
	PTESpeaking    Tag = "pte_speaking"
)

// Scale is the numeric representation a family stores scores in. Scales are
// never merged: aggregation averages within a scale and only then combines.
type Scale string

const (
	ScalePercent Scale = "percent" // 0..100
	ScaleBand    Scale = "band"    // 1.0..9.0 in 0.5 steps
	ScalePTE     Scale = "pte"     // integer 0..90
)

type Meta struct {
	Tag         Tag
	Skill       Skill
	Exam        Exam
	Scale       Scale
	MinSections int
	MaxSections int
	// AutoScored families get a suggested score computed from answer keys
	// at submit time; grading itself is still an admin action.
	AutoScored bool
}

var registry = map[Tag]Meta{
	IELTSListening: {Tag: IELTSListening, Skill: SkillListening, Exam: ExamIELTS, Scale: ScalePercent, MinSections: 1, MaxSections: 4, AutoScored: true},
	IELTSReading:   {Tag: IELTSReading, Skill: SkillReading, Exam: ExamIELTS, Scale: ScalePercent, MinSections: 1, MaxSections: 8, AutoScored: true},
	IELTSWriting:   {Tag: IELTSWriting, Skill: SkillWriting, Exam: ExamIELTS, Scale: ScaleBand, MinSections: 1, MaxSections: 8},
	IELTSSpeaking:  {Tag: IELTSSpeaking, Skill: SkillSpeaking, Exam: ExamIELTS, Scale: ScaleBand, MinSections: 1, MaxSections: 8},
	PTEListening:   {Tag: PTEListening, Skill: SkillListening, Exam: ExamPTE, Scale: ScalePTE, MinSections: 1, MaxSections: 4, AutoScored: true},
	PTEReading:     {Tag: PTEReading, Skill: SkillReading, Exam: ExamPTE, Scale: ScalePTE, MinSections: 1, MaxSections: 8, AutoScored: true},
	PTEWriting:     {Tag: PTEWriting, Skill: SkillWriting, Exam: ExamPTE, Scale: ScalePTE, MinSections: 1, MaxSections: 8},
	PTESpeaking:    {Tag: PTESpeaking, Skill: SkillSpeaking, Exam: ExamPTE, Scale: ScalePTE, MinSections: 1, MaxSections: 8},
}

// All returns the eight tags in a fixed order.
func All() []Tag {
	return []Tag{
		IELTSListening, IELTSReading, IELTSWriting, IELTSSpeaking,
		PTEListening, PTEReading, PTEWriting, PTESpeaking,
	}
}

func Parse(s string) (Tag, error) {
	t := Tag(s)
	if _, ok := registry[t]; !ok {
		return "", apperr.Validationf("unknown family %q", s)
	}
	return t, nil
}

func (t Tag) Valid() bool {
	_, ok := registry[t]
	return ok
}

func (t Tag) Meta() Meta { return registry[t] }

func (s Scale) Bounds() (min, max float64) {
	switch s {
	case ScaleBand:
		return 1.0, 9.0
	case ScalePTE:
		return 0, 90
	default:
		return 0, 100
	}
}

// NormalizeScore validates score against the family's scale and returns the
// value to store. Band scores inside the range are rounded to the nearest
// 0.5 step rather than rejected; PTE scores must be whole numbers.
func NormalizeScore(score float64, t Tag) (float64, error) {
	m, ok := registry[t]
	if !ok {
		return 0, apperr.Validationf("unknown family %q", t)
	}
	min, max := m.Scale.Bounds()
	if score < min || score > max {
		return 0, apperr.Validationf("score %g out of range [%g,%g] for %s scale", score, min, max, m.Scale)
	}
	switch m.Scale {
	case ScaleBand:
		return math.Round(score*2) / 2, nil
	case ScalePTE:
		if score != math.Trunc(score) {
			return 0, apperr.Validationf("score %g must be a whole number on the %s scale", score, m.Scale)
		}
		return score, nil
	default:
		return score, nil
	}
}

// PercentEquivalent maps a stored score onto 0..100 for bucketing in
// score distributions. The mapping is linear over the scale's range.
func PercentEquivalent(score float64, t Tag) float64 {
	min, max := registry[t].Scale.Bounds()
	if max == min {
		return 0
	}
	return (score - min) / (max - min) * 100
}
