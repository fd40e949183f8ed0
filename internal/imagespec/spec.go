package imagespec

import (
	"math/rand/v2"
	"strings"
)

// Shape selects the output resolution of a generated image.
type Shape string

const (
	ShapePortrait  Shape = "portrait"
	ShapeLandscape Shape = "landscape"
	ShapeSquare    Shape = "square"
)

// Model identifies a generation backend model.
type Model string

const (
	// ModelSafe is the default model and the only one allowed outside
	// restricted channels.
	ModelSafe  Model = "safe-diffusion"
	ModelFull  Model = "nai-diffusion"
	ModelFurry Model = "nai-diffusion-furry"
)

// Sampler identifies a diffusion sampler.
type Sampler string

const (
	SamplerEulerAncestral Sampler = "k_euler_ancestral"
	SamplerEuler          Sampler = "k_euler"
	SamplerLMS            Sampler = "k_lms"
	SamplerDDIM           Sampler = "ddim"
	SamplerPLMS           Sampler = "plms"
)

// Samplers lists every defined sampler in series-expansion order.
var Samplers = []Sampler{
	SamplerEulerAncestral,
	SamplerEuler,
	SamplerLMS,
	SamplerDDIM,
	SamplerPLMS,
}

const (
	CFGDefault = 11.0
	CFGMin     = 1.1
	CFGMax     = 100.0

	StepsDefault = 28
	StepsMin     = 1
	StepsMax     = 28

	// SeedModulus bounds seeds to [0, 2^31).
	SeedModulus = int64(1) << 31

	BatchMax = 8
)

// Image is one fully-parameterized generation request. All fields are
// in-domain by construction: use New, Batch or Series rather than a
// literal.
type Image struct {
	Prompt   string
	Negative string
	Shape    Shape
	Model    Model
	Sampler  Sampler
	CFG      float64
	Steps    int
	Seed     int64
}

// Options carries raw, possibly out-of-domain request values. Zero values
// mean "not provided". Out-of-domain values silently fall back to the
// default, not to the nearest bound.
type Options struct {
	Negative string
	Shape    string
	Model    string
	Sampler  string
	CFG      float64
	Steps    int

	// Seed < 0 requests a fresh random seed.
	Seed int64
}

// New builds a single clamped Image from raw options.
func New(prompt string, opts Options) Image {
	return Image{
		Prompt:   strings.TrimSpace(prompt),
		Negative: strings.TrimSpace(opts.Negative),
		Shape:    ParseShape(opts.Shape),
		Model:    ParseModel(opts.Model),
		Sampler:  ParseSampler(opts.Sampler),
		CFG:      clampCFG(opts.CFG),
		Steps:    clampSteps(opts.Steps),
		Seed:     normalizeSeed(opts.Seed),
	}
}

// Batch expands a base Image into n copies with consecutive seeds
// (base.Seed + index, mod 2^31). n is clamped to [1, BatchMax].
func Batch(base Image, n int) []Image {
	if n < 1 {
		n = 1
	}
	if n > BatchMax {
		n = BatchMax
	}
	out := make([]Image, n)
	for i := 0; i < n; i++ {
		img := base
		img.Seed = (base.Seed + int64(i)) % SeedModulus
		out[i] = img
	}
	return out
}

// SeriesAxis names the single parameter a series varies.
type SeriesAxis string

const (
	SeriesShape   SeriesAxis = "shape"
	SeriesSampler SeriesAxis = "sampler"
	SeriesCFG     SeriesAxis = "cfg"
	SeriesSteps   SeriesAxis = "steps"
)

// ParseSeriesAxis maps free text onto a series axis, defaulting to shape.
func ParseSeriesAxis(v string) SeriesAxis {
	switch SeriesAxis(strings.ToLower(strings.TrimSpace(v))) {
	case SeriesSampler:
		return SeriesSampler
	case SeriesCFG:
		return SeriesCFG
	case SeriesSteps:
		return SeriesSteps
	default:
		return SeriesShape
	}
}

// Series expands a base Image along one axis, holding every other field
// (seed included) from the base:
//
//	shape:   portrait, landscape, square
//	sampler: every defined sampler
//	cfg:     2, 4, ..., 20
//	steps:   4, 8, ..., 28
func Series(base Image, axis SeriesAxis) []Image {
	switch axis {
	case SeriesSampler:
		out := make([]Image, len(Samplers))
		for i, s := range Samplers {
			img := base
			img.Sampler = s
			out[i] = img
		}
		return out
	case SeriesCFG:
		out := make([]Image, 0, 10)
		for cfg := 2.0; cfg <= 20.0; cfg += 2.0 {
			img := base
			img.CFG = cfg
			out = append(out, img)
		}
		return out
	case SeriesSteps:
		out := make([]Image, 0, 7)
		for steps := 4; steps <= 28; steps += 4 {
			img := base
			img.Steps = steps
			out = append(out, img)
		}
		return out
	default:
		shapes := []Shape{ShapePortrait, ShapeLandscape, ShapeSquare}
		out := make([]Image, len(shapes))
		for i, sh := range shapes {
			img := base
			img.Shape = sh
			out[i] = img
		}
		return out
	}
}

// Resolution returns the pixel dimensions for the image's shape.
func (img Image) Resolution() (width, height int) {
	switch img.Shape {
	case ShapeLandscape:
		return 768, 512
	case ShapeSquare:
		return 640, 640
	default:
		return 512, 768
	}
}

func ParseShape(v string) Shape {
	switch Shape(strings.ToLower(strings.TrimSpace(v))) {
	case ShapeLandscape:
		return ShapeLandscape
	case ShapeSquare:
		return ShapeSquare
	default:
		return ShapePortrait
	}
}

func ParseModel(v string) Model {
	switch Model(strings.ToLower(strings.TrimSpace(v))) {
	case ModelFull:
		return ModelFull
	case ModelFurry:
		return ModelFurry
	default:
		return ModelSafe
	}
}

func ParseSampler(v string) Sampler {
	switch Sampler(strings.ToLower(strings.TrimSpace(v))) {
	case SamplerEuler:
		return SamplerEuler
	case SamplerLMS:
		return SamplerLMS
	case SamplerDDIM:
		return SamplerDDIM
	case SamplerPLMS:
		return SamplerPLMS
	default:
		return SamplerEulerAncestral
	}
}

func clampCFG(v float64) float64 {
	if v < CFGMin || v > CFGMax {
		return CFGDefault
	}
	return v
}

func clampSteps(v int) int {
	if v < StepsMin || v > StepsMax {
		return StepsDefault
	}
	return v
}

func normalizeSeed(v int64) int64 {
	if v < 0 {
		return rand.Int64N(SeedModulus)
	}
	return v % SeedModulus
}
