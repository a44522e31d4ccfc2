package gif

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"math"

	"github.com/golang/freetype/truetype"
	"github.com/gorgonia/memn2n"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi             = 144.0
	fontsize        = 12.0
	lineheight      = 1.2
	cellW           = 40
	dummyLongString = `Epoch 100000, accuracy 1.000`
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

// globPalette is every gray, from black to white.
var globPalette = func() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{uint8(i)}
	}
	return p
}()

// Encoder renders snapshots as the frames of a GIF: every memory slot of the story is shown with a
// heat map of the attention each hop paid to it.
type Encoder struct {
	H, W int
	font.Drawer

	out *gif.GIF
	io.Writer
	face font.Face

	maxH, maxW  int // maxHeight and maxWidth
	padH, padW  int // padding so everything don't start at the topleft
	textW       int // width of the sentences, the heat map starts after
	initialized bool
}

// NewGifEncoder with height and width
func NewGifEncoder(h, w int) *Encoder {
	return &Encoder{
		H:    -1,
		W:    -1,
		maxH: h,
		maxW: w,
		padH: 10,
		padW: 10,

		Drawer: font.Drawer{
			Src: image.Black,
		},
		out: &gif.GIF{LoopCount: -1},
	}
}

// Encode a snapshot as one frame.
func (enc *Encoder) Encode(s memn2n.Snapshot) error {
	story := s.Example.Story
	slots := 0
	if len(s.Answer.Attention) > 0 {
		slots = len(s.Answer.Attention[0])
	}
	hops := len(s.Answer.Attention)

	lines := make([]string, slots)
	for slot := range lines {
		if i := memn2n.SentenceOf(slot, len(story)); i >= 0 {
			lines[slot] = fmt.Sprintf("%d %v", i+1, story[i])
		}
	}

	if !enc.initialized {
		// lazy init of the layout
		enc.face = truetype.NewFace(regular, &truetype.Options{
			Size:    fontsize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		})
		enc.Drawer.Src = image.Black
		enc.Drawer.Face = enc.face

		// first calculate how long the max length will be
		textW := font.MeasureString(enc.Face, dummyLongString).Ceil()
		for _, l := range lines {
			textW = maxInt(textW, font.MeasureString(enc.Face, l).Ceil())
		}
		dy := int(math.Ceil(fontsize * lineheight * dpi / 72))
		w := textW + hops*cellW + 3*enc.padW
		h := (slots+4)*dy + 2*enc.padH // + 4 is for the title, the question, the answer and the hops

		w = minInt(w, enc.maxW)
		h = minInt(h, enc.maxH)

		if w == enc.maxW {
			enc.padW = 0
		}
		if h == enc.maxH {
			enc.padH = 0
		}

		enc.H = h
		enc.W = w
		enc.textW = textW
		enc.initialized = true
	}

	bg := image.White
	im := image.NewPaletted(image.Rect(0, 0, enc.W, enc.H), globPalette)
	draw.Draw(im, im.Bounds(), bg, image.Point{}, draw.Src)
	dy := int(math.Ceil(fontsize * lineheight * dpi / 72))
	enc.Dst = im

	y := enc.padH + dy
	enc.Dot = fixed.P(enc.padW, y)
	enc.DrawString(fmt.Sprintf("Epoch %d, accuracy %.3f", s.Epoch, s.Accuracy))
	y += dy

	heatX := enc.padW*2 + enc.textW
	for k := 0; k < hops; k++ {
		enc.Dot = fixed.P(heatX+k*cellW, y)
		enc.DrawString(fmt.Sprintf("%d", k+1))
	}
	y += dy

	for slot, l := range lines {
		enc.Dot = fixed.P(enc.padW, y)
		enc.DrawString(l)
		for k := 0; k < hops; k++ {
			p := s.Answer.Attention[k][slot]
			heat := image.NewUniform(color.Gray{uint8(255 - clamp(p)*255)})
			cell := image.Rect(heatX+k*cellW, y-dy+4, heatX+(k+1)*cellW-4, y)
			draw.Draw(im, cell, heat, image.Point{}, draw.Src)
		}
		y += dy
	}

	enc.Dot = fixed.P(enc.padW, y)
	enc.DrawString(fmt.Sprintf("%v?", s.Example.Question))
	y += dy

	var delay int
	mark := "wrong:"
	if s.Answer.Word == s.Example.Answer {
		mark = "right:"
		delay = 100
	}
	enc.Dot = fixed.P(enc.padW, y)
	enc.DrawString(fmt.Sprintf("%s %s (expected %s)", mark, s.Answer.Word, s.Example.Answer))

	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, delay)
	return nil
}

// Flush writes the gif into the writer
func (enc *Encoder) Flush() error { return gif.EncodeAll(enc.Writer, enc.out) }

func clamp(p float32) float32 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Frames is the number of frames encoded so far.
func (enc *Encoder) Frames() int { return len(enc.out.Image) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
