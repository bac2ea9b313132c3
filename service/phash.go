package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// hashGrid 指纹采样网格边长，8x8 共 64 位
	hashGrid = 8
	// HashLength 十六进制指纹长度
	HashLength = hashGrid * hashGrid / 4
)

// decodeImage 解码任意已注册格式的图片，先读头部确认像素数不超过 maxPixels
func decodeImage(data []byte, maxPixels int64) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", newError(KindDecode, "decode", fmt.Errorf("empty image buffer"))
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", newError(KindDecode, "decode", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", newError(KindDecode, "decode", fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height))
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", newError(KindDecode, "decode",
			fmt.Errorf("image %dx%d exceeds the pixel limit of %d", cfg.Width, cfg.Height, maxPixels))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", newError(KindDecode, "decode", err)
	}
	return img, format, nil
}

// GenerateImageHash 计算图片的均值感知哈希（aHash）
//
// 图片被拉伸缩放到 8x8、转为灰度，像素灰度严格大于均值记 1，
// 按从左到右、从上到下的顺序从高位写入 64 位整数，输出 16 位小写十六进制。
func GenerateImageHash(data []byte) (string, error) {
	img, _, err := decodeImage(data, config.DefaultMaxPixels)
	if err != nil {
		return "", err
	}
	return hashImage(img), nil
}

func hashImage(img image.Image) string {
	return formatHash(averageHash(img))
}

func averageHash(img image.Image) uint64 {
	grid := grayGrid(img)

	var sum int
	for _, v := range grid {
		sum += int(v)
	}
	mean := float64(sum) / float64(len(grid))

	var bits uint64
	for _, v := range grid {
		bits <<= 1
		if float64(v) > mean {
			bits |= 1
		}
	}
	return bits
}

// grayGrid 缩放到 8x8 后逐行取灰度
func grayGrid(img image.Image) [hashGrid * hashGrid]uint8 {
	small := image.NewRGBA(image.Rect(0, 0, hashGrid, hashGrid))
	// 不保持宽高比
	draw.CatmullRom.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var grid [hashGrid * hashGrid]uint8
	for y := 0; y < hashGrid; y++ {
		for x := 0; x < hashGrid; x++ {
			g := color.GrayModel.Convert(small.RGBAAt(x, y)).(color.Gray)
			grid[y*hashGrid+x] = g.Y
		}
	}
	return grid
}

func formatHash(bits uint64) string {
	return fmt.Sprintf("%0*x", HashLength, bits)
}
