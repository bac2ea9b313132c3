package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultWatermarkText = "MEME IP VAULT"
	creditText           = "© Meme IP Vault"
	creditMargin         = 10
)

var (
	fillColor   = color.NRGBA{R: 255, G: 255, B: 255, A: 128}
	strokeColor = color.NRGBA{R: 0, G: 0, B: 0, A: 128}
	creditColor = color.NRGBA{R: 255, G: 255, B: 255, A: 179}
)

// 解析后的字体只读，可并发使用
var (
	boldFont    = sync.OnceValues(func() (*opentype.Font, error) { return opentype.Parse(gobold.TTF) })
	regularFont = sync.OnceValues(func() (*opentype.Font, error) { return opentype.Parse(goregular.TTF) })
)

// AddWatermark 在图片副本上叠加水印，返回 PNG 编码的新图片
//
// 居中主文字为半透明白色填充加深色描边，字号随图片宽度缩放；
// 右下角另加一行较小的版权文字。传入的 data 不会被修改。
func AddWatermark(data []byte, text string) ([]byte, error) {
	return addWatermark(data, text, config.DefaultMaxPixels)
}

func addWatermark(data []byte, text string, maxPixels int64) ([]byte, error) {
	if text == "" {
		text = DefaultWatermarkText
	}

	src, _, err := decodeImage(data, maxPixels)
	if err != nil {
		return nil, newError(KindComposite, "watermark", err)
	}

	out, err := compositeWatermark(src, text)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, newError(KindComposite, "watermark", fmt.Errorf("encode png: %w", err))
	}
	return buf.Bytes(), nil
}

func compositeWatermark(src image.Image, text string) (*image.RGBA, error) {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)

	fontSize := math.Max(float64(w)/20, 20)
	smallSize := math.Max(float64(w)/40, 12)

	if err := drawCenteredText(dst, text, fontSize); err != nil {
		return nil, err
	}
	if err := drawCredit(dst, smallSize); err != nil {
		return nil, err
	}
	return dst, nil
}

func newFace(f func() (*opentype.Font, error), size float64) (font.Face, error) {
	parsed, err := f()
	if err != nil {
		return nil, newError(KindComposite, "load font", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, newError(KindComposite, "create font face", err)
	}
	return face, nil
}

// drawCenteredText 基线位于图片中心，先画描边再画填充
func drawCenteredText(dst *image.RGBA, text string, size float64) error {
	return drawOutlinedText(dst, text, size, dst.Bounds().Dy()/2,
		fillColor, strokeColor, max(1, int(size/40)))
}

// drawOutlinedText 水平居中、基线为 baseline 的粗体描边文字
func drawOutlinedText(dst *image.RGBA, text string, size float64, baseline int, fill, stroke color.Color, radius int) error {
	face, err := newFace(boldFont, size)
	if err != nil {
		return err
	}
	defer face.Close()

	w := dst.Bounds().Dx()
	mask := image.NewAlpha(dst.Bounds())
	d := &font.Drawer{Dst: mask, Src: image.Opaque, Face: face}
	origin := fixed.Point26_6{
		X: fixed.I(w/2) - d.MeasureString(text)/2,
		Y: fixed.I(baseline),
	}
	d.Dot = origin
	d.DrawString(text)

	tb, _ := font.BoundString(face, text)
	area := image.Rect(
		(origin.X + tb.Min.X).Floor(), (origin.Y + tb.Min.Y).Floor(),
		(origin.X + tb.Max.X).Ceil(), (origin.Y + tb.Max.Y).Ceil(),
	).Inset(-radius).Intersect(dst.Bounds())
	if area.Empty() {
		return nil
	}

	ring := outline(mask, area, radius)
	draw.DrawMask(dst, area, image.NewUniform(stroke), image.Point{}, ring, area.Min, draw.Over)
	draw.DrawMask(dst, area, image.NewUniform(fill), image.Point{}, mask, area.Min, draw.Over)
	return nil
}

// outline 膨胀字形遮罩并减去原遮罩，得到外描边
func outline(mask *image.Alpha, area image.Rectangle, radius int) *image.Alpha {
	out := image.NewAlpha(mask.Bounds())
	r2 := radius * radius
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			var peak uint8
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					if dx*dx+dy*dy > r2 {
						continue
					}
					p := image.Point{X: x + dx, Y: y + dy}
					if !p.In(mask.Rect) {
						continue
					}
					if a := mask.AlphaAt(p.X, p.Y).A; a > peak {
						peak = a
					}
				}
			}
			if own := mask.AlphaAt(x, y).A; peak > own {
				out.SetAlpha(x, y, color.Alpha{A: peak - own})
			}
		}
	}
	return out
}

// drawCredit 右下角版权文字，右边缘与基线距图片边缘 10px
func drawCredit(dst *image.RGBA, size float64) error {
	return drawCornerText(dst, creditText, size, creditColor)
}

func drawCornerText(dst *image.RGBA, text string, size float64, c color.Color) error {
	face, err := newFace(regularFont, size)
	if err != nil {
		return err
	}
	defer face.Close()

	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face}
	d.Dot = fixed.Point26_6{
		X: fixed.I(w-creditMargin) - d.MeasureString(text),
		Y: fixed.I(h - creditMargin),
	}
	d.DrawString(text)
	return nil
}
