package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Clerk    ClerkConfig
		Stripe   StripeConfig
		Storage  StorageConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		AllowedOrigins  []string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	ClerkConfig struct {
		SecretKey         string
		JWTKey            string // PEM encoded public key used to verify session tokens
		AuthorizedParties []string
	}

	StripeConfig struct {
		SecretKey     string
		WebhookSecret string
		Currency      string
		MinAmount     int64 // in cents
	}

	StorageConfig struct {
		Region           string
		AccessKeyID      string
		SecretAccessKey  string
		Bucket           string
		Endpoint         string
		UsePathStyle     bool
		CloudfrontDomain string
		UploadExpiration time.Duration
	}
)

// Address returns the database "host:port".
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig loads the configuration from the environment (and config/.env.<env> if present).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Soma")
	v.SetDefault("build", "develop")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_address", ":8001")
	v.SetDefault("server_debugHost", ":4000")
	v.SetDefault("server_readTimeout", 5*time.Second)
	v.SetDefault("server_writeTimeout", 5*time.Second)
	v.SetDefault("server_shutdownTimeout", 5*time.Second)
	v.SetDefault("server_allowedOrigins", []string{"http://localhost:3000"})

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "soma")
	v.SetDefault("database_user", "soma")
	v.SetDefault("database_password", "soma")
	v.SetDefault("database_adminUser", "postgres")
	v.SetDefault("database_adminPassword", "postgres")
	v.SetDefault("database_disableTLS", true)

	v.SetDefault("clerk_secretKey", "")
	v.SetDefault("clerk_jwtKey", "")
	v.SetDefault("clerk_authorizedParties", []string{})

	v.SetDefault("stripe_secretKey", "")
	v.SetDefault("stripe_webhookSecret", "")
	v.SetDefault("stripe_currency", "usd")
	v.SetDefault("stripe_minAmount", int64(50)) // Stripe's minimum charge is 50 cents

	v.SetDefault("storage_region", "us-east-1")
	v.SetDefault("storage_accessKeyID", "")
	v.SetDefault("storage_secretAccessKey", "")
	v.SetDefault("storage_bucket", "")
	v.SetDefault("storage_endpoint", "")
	v.SetDefault("storage_usePathStyle", false)
	v.SetDefault("storage_cloudfrontDomain", "")
	v.SetDefault("storage_uploadExpiration", 60*time.Second)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fromEmail, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		fromEmail = &mail.Address{Address: v.GetString("defaultFromEmail")}
	}
	if fromEmail.Name == "" {
		fromEmail.Name = v.GetString("appName")
	}

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: *fromEmail,
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server_host"),
			Address:         v.GetString("server_address"),
			DebugHost:       v.GetString("server_debugHost"),
			ReadTimeout:     v.GetDuration("server_readTimeout"),
			WriteTimeout:    v.GetDuration("server_writeTimeout"),
			ShutdownTimeout: v.GetDuration("server_shutdownTimeout"),
			AllowedOrigins:  v.GetStringSlice("server_allowedOrigins"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetString("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_adminUser"),
			AdminPassword: v.GetString("database_adminPassword"),
			DisableTLS:    v.GetBool("database_disableTLS"),
		},
		Clerk: ClerkConfig{
			SecretKey:         v.GetString("clerk_secretKey"),
			JWTKey:            v.GetString("clerk_jwtKey"),
			AuthorizedParties: v.GetStringSlice("clerk_authorizedParties"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("stripe_secretKey"),
			WebhookSecret: v.GetString("stripe_webhookSecret"),
			Currency:      v.GetString("stripe_currency"),
			MinAmount:     v.GetInt64("stripe_minAmount"),
		},
		Storage: StorageConfig{
			Region:           v.GetString("storage_region"),
			AccessKeyID:      v.GetString("storage_accessKeyID"),
			SecretAccessKey:  v.GetString("storage_secretAccessKey"),
			Bucket:           v.GetString("storage_bucket"),
			Endpoint:         v.GetString("storage_endpoint"),
			UsePathStyle:     v.GetBool("storage_usePathStyle"),
			CloudfrontDomain: strings.TrimRight(v.GetString("storage_cloudfrontDomain"), "/"),
			UploadExpiration: v.GetDuration("storage_uploadExpiration"),
		},
	}
}
