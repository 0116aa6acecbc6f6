package configuration

import (
	"fmt"
	"os"
	"strconv"

	"crosspost/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	Database    Database    `json:"database"`
	RedisClient RedisClient `json:"redisClient"`
	OAuth       OAuth       `json:"oauth"`
	Upload      Upload      `json:"upload"`
	Frontend    Frontend    `json:"frontend"`
}

type App struct {
	Port      int    `json:"port"`
	SecretKey string `json:"secretKey"`
}

type Database struct {
	Psql Db `json:"psql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	Database int    `json:"database"`
}

// OAuth holds third-party platform OAuth client credentials
type OAuth struct {
	X         XOAuth      `json:"x"`
	TikTok    OAuthClient `json:"tiktok"`
	Instagram OAuthClient `json:"instagram"`
}

// XOAuth carries both credential sets required by X: the OAuth 2.0 client pair
// for API calls and the OAuth 1.0a consumer pair for the legacy media surface.
type XOAuth struct {
	ClientID          string   `json:"clientId"`
	ClientSecret      string   `json:"clientSecret"`
	RedirectURI       string   `json:"redirectURI"`
	Scopes            []string `json:"scopes"`
	APIKey            string   `json:"apiKey"`
	APISecret         string   `json:"apiSecret"`
	MediaCallbackURI  string   `json:"mediaCallbackURI"`
}

type OAuthClient struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
}

type Upload struct {
	ProcessingTimeoutSecs int `json:"processingTimeoutSecs"`
	HTTPTimeoutSecs       int `json:"httpTimeoutSecs"`
}

type Frontend struct {
	URL string `json:"url"`
}

var C Config

func init() {
	LoadConfig()
	initApp(&C)
	initDatabase(&C)
	initOAuth(&C)
	initUpload(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initApp(C *Config) {
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 8888
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 8888
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; session tokens cannot be issued. Provide SECRET_KEY via environment.")
	}
}

func initDatabase(C *Config) {
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}

	if C.RedisClient.Host == "" {
		C.RedisClient.Host = os.Getenv("REDIS_HOST")
	}
	if C.RedisClient.Port == "" {
		C.RedisClient.Port = os.Getenv("REDIS_PORT")
	}
	if C.RedisClient.Password == "" {
		C.RedisClient.Password = os.Getenv("REDIS_PASSWORD")
	}
}

func initOAuth(C *Config) {
	x := &C.OAuth.X
	if x.ClientID == "" {
		x.ClientID = os.Getenv("X_CLIENT_ID")
	}
	if x.ClientSecret == "" {
		x.ClientSecret = os.Getenv("X_CLIENT_SECRET")
	}
	if x.RedirectURI == "" {
		x.RedirectURI = os.Getenv("X_REDIRECT_URI")
	}
	if x.APIKey == "" {
		x.APIKey = os.Getenv("X_API_KEY")
	}
	if x.APISecret == "" {
		x.APISecret = os.Getenv("X_API_SECRET")
	}
	if x.MediaCallbackURI == "" {
		x.MediaCallbackURI = os.Getenv("X_MEDIA_CALLBACK_URI")
	}
	if len(x.Scopes) == 0 {
		x.Scopes = []string{"tweet.read", "tweet.write", "users.read", "offline.access", "media.write"}
	}

	if C.OAuth.TikTok.ClientID == "" {
		C.OAuth.TikTok.ClientID = os.Getenv("TIKTOK_CLIENT_KEY")
	}
	if C.OAuth.TikTok.ClientSecret == "" {
		C.OAuth.TikTok.ClientSecret = os.Getenv("TIKTOK_CLIENT_SECRET")
	}
	if C.OAuth.TikTok.RedirectURI == "" {
		C.OAuth.TikTok.RedirectURI = os.Getenv("TIKTOK_REDIRECT_URI")
	}
	if C.OAuth.Instagram.ClientID == "" {
		C.OAuth.Instagram.ClientID = os.Getenv("INSTAGRAM_CLIENT_ID")
	}
	if C.OAuth.Instagram.ClientSecret == "" {
		C.OAuth.Instagram.ClientSecret = os.Getenv("INSTAGRAM_CLIENT_SECRET")
	}
	if C.OAuth.Instagram.RedirectURI == "" {
		C.OAuth.Instagram.RedirectURI = os.Getenv("INSTAGRAM_REDIRECT_URI")
	}

	if C.Frontend.URL == "" {
		C.Frontend.URL = os.Getenv("FRONTEND_URL")
	}
	if C.Frontend.URL == "" {
		C.Frontend.URL = "http://localhost:3000"
	}
}

func initUpload(C *Config) {
	if C.Upload.ProcessingTimeoutSecs == 0 {
		C.Upload.ProcessingTimeoutSecs = 300
	}
	if C.Upload.HTTPTimeoutSecs == 0 {
		C.Upload.HTTPTimeoutSecs = 60
	}
}
