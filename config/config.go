package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Image    ImageConfig    `mapstructure:"image"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	IPFS     IPFSConfig     `mapstructure:"ipfs"`
	Story    StoryConfig    `mapstructure:"story"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Generate GenerateConfig `mapstructure:"generate"`
	Log      LogConfig      `mapstructure:"log"`

	// Source 实际读取的配置文件，为空表示只用了默认值与环境变量
	Source string `mapstructure:"-"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize       int64    `mapstructure:"max_size"`
	UploadDir     string   `mapstructure:"upload_dir"`
	AllowedTypes  []string `mapstructure:"allowed_types"`
	PublicBaseURL string   `mapstructure:"public_base_url"`
}

// ImageConfig 哈希、水印与查重参数
type ImageConfig struct {
	WatermarkText      string  `mapstructure:"watermark_text"`
	DuplicateThreshold float64 `mapstructure:"duplicate_threshold"`
	MaxConcurrent      int     `mapstructure:"max_concurrent"`
	QueueTimeout       int     `mapstructure:"queue_timeout"`
	MaxPixels          int64   `mapstructure:"max_pixels"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig 选择原图与水印图的存放位置: local 或 ipfs
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

type IPFSConfig struct {
	APIURL     string        `mapstructure:"api_url"`
	GatewayURL string        `mapstructure:"gateway_url"`
	JWT        string        `mapstructure:"jwt"`
	APIKey     string        `mapstructure:"api_key"`
	SecretKey  string        `mapstructure:"secret_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// StoryConfig 链上注册中继配置，RelayURL 为空时不注册
type StoryConfig struct {
	RelayURL    string        `mapstructure:"relay_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ExplorerURL string        `mapstructure:"explorer_url"`
}

type AdminConfig struct {
	Addresses []string `mapstructure:"addresses"`
}

// GenerateConfig 文生图接口，APIKey 为空时 /generate 不可用
type GenerateConfig struct {
	APIURL  string        `mapstructure:"api_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig Level 为空时按 server.mode 取 debug 或 info
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

const (
	StorageLocal = "local"
	StorageIPFS  = "ipfs"
)

// DefaultMaxPixels 单张图片解码后允许的最大像素数 (16383 x 16383)
const DefaultMaxPixels = 0x3FFF * 0x3FFF

// Load 从 YAML 文件加载配置，环境变量 MEMEVAULT_* 覆盖文件中的值，文件必须存在
func Load(configPath string) (*Config, error) {
	return load(configPath, false)
}

// New 与 Load 相同，但文件不存在时只使用默认值与环境变量
func New(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}
	return load(configPath, true)
}

func load(configPath string, optional bool) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("memevault")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	source := configPath
	if err := v.ReadInConfig(); err != nil {
		if !optional || !isNotFound(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		source = ""
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Source = source
	return &cfg, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if c.Image.DuplicateThreshold < 0 || c.Image.DuplicateThreshold > 100 {
		return fmt.Errorf("image.duplicate_threshold must be within [0, 100], got %v", c.Image.DuplicateThreshold)
	}
	if c.Image.MaxConcurrent < 1 {
		return fmt.Errorf("image.max_concurrent must be positive, got %d", c.Image.MaxConcurrent)
	}
	if c.Image.MaxPixels <= 0 {
		return fmt.Errorf("image.max_pixels must be positive, got %d", c.Image.MaxPixels)
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive, got %d", c.Upload.MaxSize)
	}
	switch c.Storage.Backend {
	case StorageLocal, StorageIPFS:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	return nil
}

// IsAdmin 判断钱包地址是否在管理员列表中（忽略大小写）
func (c *Config) IsAdmin(address string) bool {
	if address == "" {
		return false
	}
	for _, a := range c.Admin.Addresses {
		if strings.EqualFold(a, address) {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("upload.max_size", d.Upload.MaxSize)
	v.SetDefault("upload.upload_dir", d.Upload.UploadDir)
	v.SetDefault("upload.allowed_types", d.Upload.AllowedTypes)
	v.SetDefault("upload.public_base_url", d.Upload.PublicBaseURL)

	v.SetDefault("image.watermark_text", d.Image.WatermarkText)
	v.SetDefault("image.duplicate_threshold", d.Image.DuplicateThreshold)
	v.SetDefault("image.max_concurrent", d.Image.MaxConcurrent)
	v.SetDefault("image.queue_timeout", d.Image.QueueTimeout)
	v.SetDefault("image.max_pixels", d.Image.MaxPixels)

	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("storage.backend", d.Storage.Backend)

	v.SetDefault("ipfs.api_url", d.IPFS.APIURL)
	v.SetDefault("ipfs.gateway_url", d.IPFS.GatewayURL)
	v.SetDefault("ipfs.jwt", "")
	v.SetDefault("ipfs.api_key", "")
	v.SetDefault("ipfs.secret_key", "")
	v.SetDefault("ipfs.timeout", d.IPFS.Timeout)

	v.SetDefault("story.relay_url", "")
	v.SetDefault("story.api_key", "")
	v.SetDefault("story.timeout", d.Story.Timeout)
	v.SetDefault("story.explorer_url", d.Story.ExplorerURL)

	v.SetDefault("admin.addresses", []string{})

	v.SetDefault("generate.api_url", d.Generate.APIURL)
	v.SetDefault("generate.api_key", "")
	v.SetDefault("generate.timeout", d.Generate.Timeout)

	v.SetDefault("log.level", "")
	v.SetDefault("log.encoding", "")
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			UploadDir:    "./uploads",
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg", "image/gif", "image/webp", "image/bmp", "image/tiff"},
		},
		Image: ImageConfig{
			WatermarkText:      "MEME IP VAULT",
			DuplicateThreshold: 90,
			MaxConcurrent:      4,
			QueueTimeout:       30,
			MaxPixels:          DefaultMaxPixels,
		},
		Database: DatabaseConfig{
			Path: "./memevault.db",
		},
		Storage: StorageConfig{
			Backend: StorageLocal,
		},
		IPFS: IPFSConfig{
			APIURL:     "https://api.pinata.cloud",
			GatewayURL: "https://gateway.pinata.cloud/ipfs/",
			Timeout:    60 * time.Second,
		},
		Story: StoryConfig{
			Timeout:     90 * time.Second,
			ExplorerURL: "https://aeneid.explorer.story.foundation/ipa/",
		},
		Generate: GenerateConfig{
			APIURL:  "https://api.stability.ai/v2beta/stable-image/generate/sd3",
			Timeout: 120 * time.Second,
		},
	}
}
