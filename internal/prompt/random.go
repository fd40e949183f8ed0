// Package prompt composes randomized prompts for the "surprise me"
// request path. The trait table mirrors the curated tag pools the bot
// shipped with: each row fires with its own probability and picks one
// option, optionally wrapped in emphasis braces.
package prompt

import (
	"math/rand/v2"
	"strings"
)

var colors = []string{
	"gray", "brown", "orange", "blonde", "yellow", "green", "teal", "cyan",
	"sky", "blue", "indigo", "violet", "purple", "fuchsia", "pink",
	"crimson", "red", "beige", "silver", "white", "black",
}

var artTypes = []string{
	"pixel art", "official art", "sketch art", "game cg", "photorealistic",
	"aestheticism",
}

var mediums = []string{"watercolor", "watercolor pencil", "oil painting", "pastel"}

var styles = []string{
	"by Wadim Kashin",
	"by Gaston Bussiere, by Sophie Anderson, by WLOP",
	"by Georges Pierre Seurat",
	"by Vincent van Gogh",
	"by Paul Cezanne",
	"by Jean-Honore Fragonard, by Francois Boucher, by Jean-Antoine Watteau",
	"by Studio Ghibli",
	"by William Holman Hunt",
}

var clothes = []string{
	"kimono", "school uniform", "suit", "t-shirt", "dress", "coat",
	"jacket", "shirt",
}

type trait struct {
	prob    float64
	options []string
}

// Random returns a freshly composed prompt. It is pure beyond its use of
// the process RNG and never returns an empty string.
func Random() string {
	coloredClothes := make([]string, 0, 2*len(clothes))
	coloredClothes = append(coloredClothes, clothes...)
	for _, c := range clothes {
		coloredClothes = append(coloredClothes, color()+" "+c)
	}

	traits := []trait{
		{0.9, []string{"masterpiece"}},
		{0.9, []string{"best quality"}},
		{0.9, []string{"highly detailed"}},
		{0.8, []string{color() + " hair"}},
		{0.8, []string{color() + " eyes"}},
		{0.5, []string{"gradient hair"}},
		{0.5, []string{"floating hair"}},
		{0.5, []string{"long hair", "short hair"}},
		{0.5, artTypes},
		{0.5, mediums},
		{0.5, coloredClothes},
		{0.5, []string{"exited", "happy", "sad", "angry", "scared", "confused", "expressionless"}},
		{0.5, []string{"full-body", "upper-body"}},
		{0.5, []string{"looking at viewer", "looking away"}},
		{0.5, []string{"from above", "from below"}},
		{0.3, styles},
		{0.3, []string{color() + " background"}},
		{0.3, []string{"beautiful detailed water"}},
		{0.3, []string{"beautiful detailed sky"}},
		{0.3, []string{"floating cherry blossom", "floating maple leaf", "floating flowers", "floating waterdrops"}},
		{0.3, []string{"dynamic angle"}},
		{0.3, []string{"backlighting"}},
		{0.3, []string{"cinematic lighting"}},
		{0.3, []string{"face close-up", "eye close-up"}},
		{0.3, []string{"cat ears, cat tail", "dog ears, dog tail", "fox ears, fox tail"}},
		{0.3, []string{"foreground focus", "fish eye lens", "depth of field"}},
		{0.3, []string{"hair ornament"}},
		{0.2, []string{"chibi"}},
		{0.2, []string{"monochrome"}},
	}

	parts := make([]string, 0, len(traits))
	for _, tr := range traits {
		if rand.Float64() >= tr.prob {
			continue
		}
		parts = append(parts, emphasize(tr.options[rand.IntN(len(tr.options))]))
	}
	if len(parts) == 0 {
		// Every row missed; quality tags are a safe floor.
		parts = append(parts, "masterpiece", "best quality")
	}
	return strings.Join(parts, ", ")
}

// emphasize wraps the tag in 0-5 brace pairs, each added with p=0.4.
func emphasize(tag string) string {
	weight := 0
	for i := 0; i < 5; i++ {
		if rand.Float64() < 0.4 {
			weight++
		}
	}
	return strings.Repeat("{", weight) + tag + strings.Repeat("}", weight)
}

func color() string {
	return colors[rand.IntN(len(colors))]
}
