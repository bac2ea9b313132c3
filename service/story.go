package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/model"
	"github.com/diyapandey-1623/meme-ip-vault/utils"
	"go.uber.org/zap"
)

// Aeneid 测试网合约地址
const (
	RoyaltyPolicyLAP = "0xBe54FB168b3c982b7AaE60dB6CF75Bd8447b390E"
	MERC20Token      = "0xF2104833d386a2734a4eB3B8ad6FC6812F29E38E"
	zeroAddress      = "0x0000000000000000000000000000000000000000"
)

// PILTerms 链上授权条款
type PILTerms struct {
	Transferable              bool   `json:"transferable"`
	RoyaltyPolicy             string `json:"royaltyPolicy"`
	DefaultMintingFee         int64  `json:"defaultMintingFee"`
	Expiration                int64  `json:"expiration"`
	CommercialUse             bool   `json:"commercialUse"`
	CommercialAttribution     bool   `json:"commercialAttribution"`
	CommercializerChecker     string `json:"commercializerChecker"`
	CommercializerCheckerData string `json:"commercializerCheckerData"`
	CommercialRevShare        int64  `json:"commercialRevShare"`
	CommercialRevCeiling      int64  `json:"commercialRevCeiling"`
	DerivativesAllowed        bool   `json:"derivativesAllowed"`
	DerivativesAttribution    bool   `json:"derivativesAttribution"`
	DerivativesApproval       bool   `json:"derivativesApproval"`
	DerivativesReciprocal     bool   `json:"derivativesReciprocal"`
	DerivativeRevCeiling      int64  `json:"derivativeRevCeiling"`
	Currency                  string `json:"currency"`
	URI                       string `json:"uri"`
}

// PILTermsForLicense 授权类型到链上条款的映射，未知类型按 Credit Required 处理
func PILTermsForLicense(license model.License) PILTerms {
	terms := PILTerms{
		Transferable:              true,
		RoyaltyPolicy:             RoyaltyPolicyLAP,
		Currency:                  MERC20Token,
		CommercialAttribution:     true,
		CommercializerChecker:     zeroAddress,
		CommercializerCheckerData: "0x",
		DerivativesAllowed:        true,
		DerivativesAttribution:    true,
		DerivativesReciprocal:     true,
	}

	switch license {
	case model.LicenseFree:
		terms.CommercialUse = true
		terms.DerivativesReciprocal = false
	case model.LicenseNoCommercial:
		terms.DerivativesApproval = true
	}
	return terms
}

// Attribute IP 元数据属性
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RegistrationRequest 发给注册中继的请求
type RegistrationRequest struct {
	Hash           string      `json:"hash"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	License        string      `json:"license"`
	ImageURL       string      `json:"imageUrl"`
	PILTerms       PILTerms    `json:"pilTerms"`
	IPMetadataURI  string      `json:"ipMetadataURI"`
	IPMetadataHash string      `json:"ipMetadataHash"`
	NFTMetadataURI string      `json:"nftMetadataURI"`
	Attributes     []Attribute `json:"attributes"`
}

// Registration 注册成功后的链上标识
type Registration struct {
	IPID           string `json:"ipId"`
	TxHash         string `json:"txHash"`
	LicenseTermsID string `json:"licenseTermsId"`
}

// Registrar 把表情包注册为链上 IP 资产
type Registrar interface {
	Enabled() bool
	Register(ctx context.Context, req RegistrationRequest) (*Registration, error)
}

// DisabledRegistrar 未配置中继时使用
type DisabledRegistrar struct{}

func (DisabledRegistrar) Enabled() bool { return false }

func (DisabledRegistrar) Register(context.Context, RegistrationRequest) (*Registration, error) {
	return nil, newError(KindNetwork, "register", fmt.Errorf("story protocol registration is not configured"))
}

// StoryRelay 调用持有钱包私钥的注册中继服务
type StoryRelay struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewRegistrar relay_url 为空时返回 DisabledRegistrar
func NewRegistrar(cfg *config.StoryConfig) Registrar {
	if cfg.RelayURL == "" {
		return DisabledRegistrar{}
	}
	return &StoryRelay{
		url:        strings.TrimRight(cfg.RelayURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (r *StoryRelay) Enabled() bool { return true }

func (r *StoryRelay) Register(ctx context.Context, req RegistrationRequest) (*Registration, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, newError(KindNetwork, "register", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+"/register", bytes.NewReader(payload))
	if err != nil {
		return nil, newError(KindNetwork, "register", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, newError(KindNetwork, "register", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, newError(KindNetwork, "register", fmt.Errorf("relay status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var reg Registration
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return nil, newError(KindNetwork, "register", fmt.Errorf("decode relay response: %w", err))
	}
	if reg.IPID == "" || reg.TxHash == "" {
		return nil, newError(KindNetwork, "register", fmt.Errorf("relay returned no ip id or transaction hash"))
	}

	utils.Logger.Info("ip asset registered",
		zap.String("ip_id", reg.IPID),
		zap.String("tx_hash", reg.TxHash),
		zap.String("license_terms_id", reg.LicenseTermsID))
	return &reg, nil
}

// NewRegistrationRequest 组装 IP 与 NFT 元数据（data URI）
func NewRegistrationRequest(meme *model.Meme, imageURL string) (RegistrationRequest, error) {
	attrs := []Attribute{
		{Key: "Content Type", Value: "Meme"},
		{Key: "License Type", Value: string(meme.License)},
		{Key: "Content Hash", Value: meme.Hash},
	}
	ipMeta := map[string]any{
		"title":       meme.Title,
		"description": meme.Description,
		"attributes":  attrs,
	}
	ipURI, err := dataURI(ipMeta)
	if err != nil {
		return RegistrationRequest{}, err
	}
	nftURI, err := dataURI(NFTMetadata(meme, imageURL))
	if err != nil {
		return RegistrationRequest{}, err
	}

	return RegistrationRequest{
		Hash:           meme.Hash,
		Title:          meme.Title,
		Description:    meme.Description,
		License:        string(meme.License),
		ImageURL:       imageURL,
		PILTerms:       PILTermsForLicense(meme.License),
		IPMetadataURI:  ipURI,
		IPMetadataHash: metadataHash(meme.Hash),
		NFTMetadataURI: nftURI,
		Attributes:     attrs,
	}, nil
}

// NFTMetadata 注册时铸造的 NFT 元数据
func NFTMetadata(meme *model.Meme, imageURL string) map[string]any {
	return map[string]any{
		"name":        meme.Title,
		"description": meme.Description,
		"image":       imageURL,
	}
}

func dataURI(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(raw), nil
}

// metadataHash 指纹右补零到 32 字节
func metadataHash(hash string) string {
	if len(hash) > 64 {
		hash = hash[:64]
	}
	return "0x" + hash + strings.Repeat("0", 64-len(hash))
}
