package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/utils"
	"go.uber.org/zap"
)

// GeneratorModel 文生图使用的模型名称
const GeneratorModel = "Stable Diffusion 3"

const maxGeneratedSize = 32 << 20

var (
	ErrGeneratorAuth    = errors.New("image generation api key rejected")
	ErrGeneratorCredits = errors.New("image generation credits exhausted")
)

// GeneratedImage 文生图结果
type GeneratedImage struct {
	Data        []byte
	ContentType string
	Prompt      string
	Model       string
}

// ImageGenerator Stability AI 文生图客户端
type ImageGenerator struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewImageGenerator(cfg *config.GenerateConfig) *ImageGenerator {
	return &ImageGenerator{
		url:        cfg.APIURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled 未配置 api_key 时不可用
func (g *ImageGenerator) Enabled() bool { return g.apiKey != "" }

// Generate 按提示词生成一张 1:1 的 PNG
func (g *ImageGenerator) Generate(ctx context.Context, prompt string) (*GeneratedImage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, validationError("generate", "missing prompt")
	}
	if !g.Enabled() {
		return nil, newError(KindNetwork, "generate", fmt.Errorf("image generation is not configured"))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, field := range [][2]string{
		{"prompt", prompt},
		{"mode", "text-to-image"},
		{"output_format", "png"},
		{"aspect_ratio", "1:1"},
	} {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return nil, newError(KindNetwork, "generate", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, newError(KindNetwork, "generate", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, &body)
	if err != nil {
		return nil, newError(KindNetwork, "generate", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindNetwork, "generate", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		text := strings.TrimSpace(string(msg))
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			err = fmt.Errorf("%w: %s", ErrGeneratorAuth, text)
		case http.StatusPaymentRequired:
			err = fmt.Errorf("%w: %s", ErrGeneratorCredits, text)
		default:
			err = fmt.Errorf("generator status %d: %s", resp.StatusCode, text)
		}
		return nil, newError(KindNetwork, "generate", err)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxGeneratedSize+1))
	if err != nil {
		return nil, newError(KindNetwork, "generate", err)
	}
	if len(data) == 0 {
		return nil, newError(KindNetwork, "generate", fmt.Errorf("generator returned an empty image"))
	}
	if len(data) > maxGeneratedSize {
		return nil, newError(KindNetwork, "generate", fmt.Errorf("generated image exceeds %d bytes", maxGeneratedSize))
	}

	contentType := "image/png"
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && strings.HasPrefix(mt, "image/") {
		contentType = mt
	}

	utils.Logger.Info("image generated",
		zap.Int("bytes", len(data)),
		zap.String("content_type", contentType),
		zap.Duration("duration", time.Since(start)))

	return &GeneratedImage{
		Data:        data,
		ContentType: contentType,
		Prompt:      prompt,
		Model:       GeneratorModel,
	}, nil
}
