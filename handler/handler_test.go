package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/model"
	"github.com/diyapandey-1623/meme-ip-vault/repository"
	"github.com/diyapandey-1623/meme-ip-vault/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdmin = "0xadmin"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()
	return newTestRouterWith(t, nil)
}

func newTestRouterWith(t *testing.T, configure func(*config.Config)) (*gin.Engine, *config.Config) {
	t.Helper()

	cfg := config.Default()
	cfg.Upload.UploadDir = t.TempDir()
	cfg.Upload.MaxSize = 1 << 20
	cfg.Admin.Addresses = []string{testAdmin}
	if configure != nil {
		configure(cfg)
	}

	mr := miniredis.RunT(t)
	cache := service.NewRedisService(&config.RedisConfig{Addr: mr.Addr(), TTL: time.Hour})
	t.Cleanup(func() { _ = cache.Close() })

	db := repository.SetupTestDB(t)
	processor := service.NewImageProcessor(cfg, cache)
	memes := service.NewMemeService(cfg, processor,
		service.NewLocalStore(cfg.Upload.UploadDir, ""), service.DisabledRegistrar{},
		repository.NewMemeRepository(db), repository.NewSocialRepository(db), cache)

	r := NewRouter(cfg, NewMemeHandler(cfg, memes), NewToolHandler(cfg, processor, service.NewImageGenerator(&cfg.Generate)),
		BuildInfo{Version: "test", GitCommit: "abc123"})
	return r, cfg
}

func pngBytes(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/(size/8)+y/(size/8))%2 == 0 {
				img.Set(x, y, color.RGBA{R: 40, G: 40, B: 40, A: 255})
			} else {
				img.Set(x, y, color.RGBA{R: 215, G: 215, B: 215, A: 255})
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartBody 构造带 image 字段的表单
func multipartBody(t *testing.T, fields map[string]string, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="meme.png"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func do(r http.Handler, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, r http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return do(r, method, path, bytes.NewBuffer(raw), "application/json")
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Data
}

func uploadMeme(t *testing.T, r http.Handler, title string) *model.Meme {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{
		"title":   title,
		"license": string(model.LicenseCredit),
	}, "image/png", pngBytes(t, 128))
	w := do(r, http.MethodPost, "/api/v1/memes", body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.UploadResult](t, w).Meme
}

func TestHealthAndVersion(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test","memes":0}`, w.Body.String())

	w = do(r, http.MethodGet, "/version", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"git_commit":"abc123"`)
}

func TestUpload(t *testing.T) {
	r, _ := newTestRouter(t)

	meme := uploadMeme(t, r, "Checkers")
	assert.Equal(t, "Checkers", meme.Title)
	assert.Equal(t, "55aa55aa55aa55aa", meme.Hash)
	assert.False(t, meme.OnChain)

	// 上传的原图可通过静态路由访问
	w := do(r, http.MethodGet, meme.ImageURL, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// 同一张图再次上传带重复警告
	body, ct := multipartBody(t, map[string]string{
		"title":   "Checkers again",
		"license": string(model.LicenseFree),
	}, "image/png", pngBytes(t, 256))
	w = do(r, http.MethodPost, "/api/v1/memes", body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp model.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Warning, "Checkers")
	require.Len(t, resp.Data.Duplicates, 1)
	assert.Equal(t, meme.ID, resp.Data.Duplicates[0].ID)
}

func TestUploadErrors(t *testing.T) {
	r, _ := newTestRouter(t)
	valid := map[string]string{"title": "x", "license": string(model.LicenseCredit)}

	tests := []struct {
		name        string
		fields      map[string]string
		contentType string
		data        []byte
		want        int
	}{
		{"missing image", valid, "", nil, http.StatusBadRequest},
		{"missing title", map[string]string{"license": "Free to Use"}, "image/png", pngBytes(t, 16), http.StatusBadRequest},
		{"bad license", map[string]string{"title": "x", "license": "Mine"}, "image/png", pngBytes(t, 16), http.StatusBadRequest},
		{"wrong type", valid, "application/pdf", []byte("%PDF"), http.StatusBadRequest},
		{"too large", valid, "image/png", make([]byte, 1<<20+1), http.StatusBadRequest},
		{"corrupt image", valid, "image/png", []byte("not a png"), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.fields, tt.contentType, tt.data)
			w := do(r, http.MethodPost, "/api/v1/memes", body, ct)
			assert.Equal(t, tt.want, w.Code, w.Body.String())

			var resp model.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestMemeCRUD(t *testing.T) {
	r, _ := newTestRouter(t)
	meme := uploadMeme(t, r, "Crud")
	path := "/api/v1/memes/" + meme.ID

	w := do(r, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Crud", decode[model.Meme](t, w).Title)

	w = doJSON(t, r, http.MethodPut, path, map[string]any{"title": "Renamed", "inMarketplace": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Renamed", decode[model.Meme](t, w).Title)

	w = doJSON(t, r, http.MethodPut, path, map[string]any{"license": "Mine"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/marketplace", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list model.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)

	w = do(r, http.MethodDelete, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodDelete, path, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestList(t *testing.T) {
	r, _ := newTestRouter(t)
	for i := 0; i < 3; i++ {
		uploadMeme(t, r, fmt.Sprintf("Meme %d", i))
	}
	uploadMeme(t, r, "Special cat")

	w := do(r, http.MethodGet, "/api/v1/memes?limit=2&offset=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list model.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 4, list.Total)
	assert.Len(t, list.Memes, 2)
	assert.Equal(t, 2, list.Limit)
	assert.Equal(t, 1, list.Offset)

	w = do(r, http.MethodGet, "/api/v1/memes?q=cat", nil, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)

	for _, bad := range []string{"sort=random", "limit=0", "limit=abc", "offset=-1"} {
		w = do(r, http.MethodGet, "/api/v1/memes?"+bad, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestSocialEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)
	meme := uploadMeme(t, r, "Social")
	base := "/api/v1/memes/" + meme.ID

	w := doJSON(t, r, http.MethodPost, base+"/like", map[string]string{"userId": "0xUser"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.LikeStatus{LikesCount: 1, Liked: true}, decode[model.LikeStatus](t, w))

	w = do(r, http.MethodGet, base+"/like?userId=0xuser", nil, "")
	assert.Equal(t, model.LikeStatus{LikesCount: 1, Liked: true}, decode[model.LikeStatus](t, w))

	w = doJSON(t, r, http.MethodPost, base+"/like", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, base+"/rate", map[string]any{"userId": "0xUser", "value": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(t, r, http.MethodPost, base+"/rate", map[string]any{"userId": "0xOther", "value": 2})
	require.Equal(t, http.StatusOK, w.Code)
	rating := decode[model.RatingStatus](t, w)
	assert.Equal(t, 3.5, rating.AverageRating)
	assert.Equal(t, 2, rating.RatingCount)

	w = doJSON(t, r, http.MethodPost, base+"/rate", map[string]any{"userId": "0xUser", "value": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, base+"/rate?userId=0xother", nil, "")
	rating = decode[model.RatingStatus](t, w)
	require.NotNil(t, rating.UserRating)
	assert.Equal(t, 2, *rating.UserRating)

	w = doJSON(t, r, http.MethodPost, base+"/links", map[string]string{"url": "https://x.com/post/1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(t, r, http.MethodPost, base+"/links", map[string]string{"url": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, base+"/links", nil, "")
	links := decode[[]model.UsageLink](t, w)
	require.Len(t, links, 1)
	assert.Equal(t, "https://x.com/post/1", links[0].URL)

	w = do(r, http.MethodGet, base+"/meta?userId=0xUser", nil, "")
	meta := decode[model.MemeMeta](t, w)
	assert.Equal(t, 1, meta.LikesCount)
	assert.True(t, meta.UserLike)
	assert.False(t, meta.Verified)

	w = doJSON(t, r, http.MethodPost, "/api/v1/memes/missing/like", map[string]string{"userId": "0xUser"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerify(t *testing.T) {
	r, _ := newTestRouter(t)
	meme := uploadMeme(t, r, "Verify me")
	path := "/api/v1/memes/" + meme.ID + "/verify"

	w := doJSON(t, r, http.MethodPost, path, map[string]any{"verified": true, "adminAddress": "0xrandom"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPost, path, map[string]any{"verified": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, path, map[string]any{"verified": true, "adminAddress": strings.ToUpper(testAdmin)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/memes/"+meme.ID+"/meta", nil, "")
	assert.True(t, decode[model.MemeMeta](t, w).Verified)
}

func TestHashEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	body, ct := multipartBody(t, nil, "image/png", pngBytes(t, 64))
	w := do(r, http.MethodPost, "/api/v1/hash", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[model.HashResponse](t, w)
	assert.Equal(t, "55aa55aa55aa55aa", res.Hash)
	assert.Len(t, res.MD5, 32)
	assert.Equal(t, 64, res.Width)

	body, ct = multipartBody(t, nil, "image/png", []byte("garbage"))
	w = do(r, http.MethodPost, "/api/v1/hash", body, ct)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCompareEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/compare", map[string]string{
		"hash1": "0000000000000000",
		"hash2": "0000000000000001",
	})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[model.CompareResponse](t, w)
	assert.InDelta(t, 98.4375, res.Similarity, 1e-9)
	assert.True(t, res.IsDuplicate)

	w = doJSON(t, r, http.MethodPost, "/api/v1/compare", map[string]string{
		"hash1": "0000000000000000",
		"hash2": "ff",
	})
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[model.CompareResponse](t, w)
	assert.Zero(t, res.Similarity)
	assert.False(t, res.IsDuplicate)

	w = doJSON(t, r, http.MethodPost, "/api/v1/compare", map[string]string{"hash1": "00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWatermarkEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	body, ct := multipartBody(t, map[string]string{"text": "HELLO"}, "image/png", pngBytes(t, 200))
	w := do(r, http.MethodPost, "/api/v1/watermark", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	cfg, err := png.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrValidation, http.StatusBadRequest},
		{service.ErrDecode, http.StatusUnprocessableEntity},
		{&service.Error{Kind: service.KindComposite, Err: service.ErrDecode}, http.StatusUnprocessableEntity},
		{service.ErrComposite, http.StatusInternalServerError},
		{service.ErrStorage, http.StatusInternalServerError},
		{service.ErrNetwork, http.StatusBadGateway},
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrConflict, http.StatusConflict},
		{service.ErrUnauthorized, http.StatusForbidden},
		{service.ErrQueueFull, http.StatusServiceUnavailable},
		{&service.Error{Kind: service.KindNetwork, Err: fmt.Errorf("%w: bad key", service.ErrGeneratorAuth)}, http.StatusUnauthorized},
		{&service.Error{Kind: service.KindNetwork, Err: service.ErrGeneratorCredits}, http.StatusPaymentRequired},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

// stabilityServer 返回固定状态码与内容的文生图服务
func stabilityServer(t *testing.T, status int, body []byte) *config.GenerateConfig {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return &config.GenerateConfig{APIURL: srv.URL, APIKey: "sk-test", Timeout: 5 * time.Second}
}

func TestGenerateEndpoint(t *testing.T) {
	generated := pngBytes(t, 128)
	r, _ := newTestRouterWith(t, func(cfg *config.Config) {
		cfg.Generate = *stabilityServer(t, http.StatusOK, generated)
	})

	t.Run("plain", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/v1/generate", model.GenerateRequest{Prompt: "doge in space"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[model.GenerateResponse](t, w)
		assert.Equal(t, "doge in space", resp.Prompt)
		assert.Equal(t, service.GeneratorModel, resp.Model)
		assert.Equal(t, "55aa55aa55aa55aa", resp.Hash)

		prefix := "data:image/png;base64,"
		require.True(t, strings.HasPrefix(resp.ImageURL, prefix))
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(resp.ImageURL, prefix))
		require.NoError(t, err)
		assert.Equal(t, generated, raw)
	})

	t.Run("with caption", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/v1/generate",
			model.GenerateRequest{Prompt: "doge", TopText: "such wow", BottomText: "much meme"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[model.GenerateResponse](t, w)
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(resp.ImageURL, "data:image/png;base64,"))
		require.NoError(t, err)
		assert.NotEqual(t, generated, raw)

		cfg, err := png.DecodeConfig(bytes.NewReader(raw))
		require.NoError(t, err)
		assert.Equal(t, 128, cfg.Width)
	})

	t.Run("missing prompt", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/v1/generate", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGenerateEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   int
	}{
		{"invalid key", http.StatusUnauthorized, http.StatusUnauthorized},
		{"no credits", http.StatusPaymentRequired, http.StatusPaymentRequired},
		{"upstream failure", http.StatusInternalServerError, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouterWith(t, func(cfg *config.Config) {
				cfg.Generate = *stabilityServer(t, tt.status, []byte("nope"))
			})
			w := doJSON(t, r, http.MethodPost, "/api/v1/generate", model.GenerateRequest{Prompt: "doge"})
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	t.Run("not configured", func(t *testing.T) {
		r, _ := newTestRouter(t)
		w := doJSON(t, r, http.MethodPost, "/api/v1/generate", model.GenerateRequest{Prompt: "doge"})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
