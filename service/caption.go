package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"golang.org/x/image/draw"
)

// CaptionCredit 生成图右下角的署名
const CaptionCredit = "Created on Meme IP Vault"

const captionMargin = 20

var (
	captionFill        = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	captionStroke      = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	captionCreditColor = color.NRGBA{R: 255, G: 255, B: 255, A: 153}
)

// AddCaption 在图片顶部和底部写入大写的表情包文字，并在右下角加署名
//
// 字号为图片宽度的 1/15，顶部文字基线距上边缘一个字号加 20px，
// 底部文字基线距下边缘 20px。两行文字都可以为空，署名总会画上。
func AddCaption(data []byte, top, bottom string) ([]byte, error) {
	return addCaption(data, top, bottom, config.DefaultMaxPixels)
}

func addCaption(data []byte, top, bottom string, maxPixels int64) ([]byte, error) {
	src, _, err := decodeImage(data, maxPixels)
	if err != nil {
		return nil, newError(KindComposite, "caption", err)
	}

	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)

	size := math.Max(math.Floor(float64(w)/15), 12)
	radius := max(1, int(size/20))

	if top = strings.TrimSpace(top); top != "" {
		baseline := int(size) + captionMargin
		if err := drawOutlinedText(dst, strings.ToUpper(top), size, baseline, captionFill, captionStroke, radius); err != nil {
			return nil, err
		}
	}
	if bottom = strings.TrimSpace(bottom); bottom != "" {
		baseline := h - captionMargin
		if err := drawOutlinedText(dst, strings.ToUpper(bottom), size, baseline, captionFill, captionStroke, radius); err != nil {
			return nil, err
		}
	}
	if err := drawCornerText(dst, CaptionCredit, math.Floor(size/2), captionCreditColor); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, newError(KindComposite, "caption", fmt.Errorf("encode png: %w", err))
	}
	return buf.Bytes(), nil
}
