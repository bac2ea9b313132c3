package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/utils"
	"go.uber.org/zap"
)

// PinResult Pinata 返回的固定结果
type PinResult struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinataMetadata struct {
	Name      string            `json:"name"`
	KeyValues map[string]string `json:"keyvalues,omitempty"`
}

// IPFSClient 通过 Pinata API 固定文件与 JSON
type IPFSClient struct {
	apiURL     string
	gatewayURL string
	jwt        string
	apiKey     string
	secretKey  string
	httpClient *http.Client
}

func NewIPFSClient(cfg *config.IPFSConfig) *IPFSClient {
	gateway := cfg.GatewayURL
	if gateway != "" && !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return &IPFSClient{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		gatewayURL: gateway,
		jwt:        cfg.JWT,
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured 是否提供了 JWT 或 API key/secret
func (c *IPFSClient) Configured() bool {
	return c.jwt != "" || (c.apiKey != "" && c.secretKey != "")
}

// GatewayURL 由 CID 拼出网关地址
func (c *IPFSClient) GatewayURL(cid string) string {
	return c.gatewayURL + cid
}

// PinFile 上传单个文件到 pinFileToIPFS
func (c *IPFSClient) PinFile(ctx context.Context, name string, data []byte, keyValues map[string]string) (*PinResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, newError(KindStorage, "pin file", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, newError(KindStorage, "pin file", err)
	}

	meta, err := json.Marshal(pinataMetadata{Name: name, KeyValues: keyValues})
	if err != nil {
		return nil, newError(KindStorage, "pin file", err)
	}
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return nil, newError(KindStorage, "pin file", err)
	}
	if err := mw.Close(); err != nil {
		return nil, newError(KindStorage, "pin file", err)
	}

	var result PinResult
	if err := c.do(ctx, http.MethodPost, "/pinning/pinFileToIPFS", mw.FormDataContentType(), &body, &result); err != nil {
		return nil, err
	}

	utils.Logger.Info("file pinned to ipfs",
		zap.String("name", name),
		zap.String("cid", result.IpfsHash),
		zap.Int64("pin_size", result.PinSize))
	return &result, nil
}

// PinJSON 上传 JSON 元数据到 pinJSONToIPFS
func (c *IPFSClient) PinJSON(ctx context.Context, name string, content any) (*PinResult, error) {
	payload, err := json.Marshal(map[string]any{
		"pinataContent":  content,
		"pinataMetadata": pinataMetadata{Name: name},
	})
	if err != nil {
		return nil, newError(KindStorage, "pin json", err)
	}

	var result PinResult
	if err := c.do(ctx, http.MethodPost, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(payload), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Unpin 取消固定
func (c *IPFSClient) Unpin(ctx context.Context, cid string) error {
	return c.do(ctx, http.MethodDelete, "/pinning/unpin/"+cid, "", nil, nil)
}

// Save 实现 FileStore
func (c *IPFSClient) Save(ctx context.Context, obj StoreObject) (*StoredFile, error) {
	keyValues := map[string]string{
		"type":       "meme",
		"subfolder":  obj.Subfolder,
		"uploadedAt": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range obj.Meta {
		keyValues[k] = v
	}

	res, err := c.PinFile(ctx, obj.Filename, obj.Data, keyValues)
	if err != nil {
		return nil, err
	}
	return &StoredFile{
		URL:        "ipfs://" + res.IpfsHash,
		CID:        res.IpfsHash,
		GatewayURL: c.GatewayURL(res.IpfsHash),
	}, nil
}

// Delete 实现 FileStore，只处理 ipfs:// 地址
func (c *IPFSClient) Delete(ctx context.Context, url string) error {
	cid, ok := strings.CutPrefix(url, "ipfs://")
	if !ok || cid == "" {
		return nil
	}
	return c.Unpin(ctx, cid)
}

func (c *IPFSClient) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	if !c.Configured() {
		return newError(KindStorage, "pinata", fmt.Errorf("pinata credentials not configured"))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return newError(KindStorage, "pinata", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.jwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.jwt)
	} else {
		req.Header.Set("pinata_api_key", c.apiKey)
		req.Header.Set("pinata_secret_api_key", c.secretKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newError(KindNetwork, "pinata", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newError(KindNetwork, "pinata", fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newError(KindNetwork, "pinata", fmt.Errorf("decode response: %w", err))
	}
	return nil
}
