package config

import (
	"github.com/spf13/viper"
)

// The service runs in EKS with DB and queue coordinates injected as
// environment variables per pod; the defaults below match the LocalStack
// compose setup for local development.

type Config struct {
	DBHost           string `mapstructure:"DB_HOST"`
	DBPort           string `mapstructure:"DB_PORT"`
	DBUser           string `mapstructure:"DB_USER"`
	DBPassword       string `mapstructure:"DB_PASSWORD"`
	DBName           string `mapstructure:"DB_NAME"`
	ServerPort       string `mapstructure:"SERVER_PORT"`
	AWSRegion        string `mapstructure:"AWS_REGION"`
	HRSQSQueueURL    string `mapstructure:"HR_SQS_QUEUE_URL"`
	EmailSQSQueueURL string `mapstructure:"EMAIL_SQS_QUEUE_URL"`
	AWSEndpoint      string `mapstructure:"AWS_ENDPOINT"`
	HRExportAPIURL   string `mapstructure:"HR_EXPORT_API_URL"`
	EmailSender      string `mapstructure:"EMAIL_SENDER"`
	EmailDomain      string `mapstructure:"EMAIL_DOMAIN"`
	OrgTimezone      string `mapstructure:"ORG_TIMEZONE"`
	SweepSecret      string `mapstructure:"SWEEP_SECRET"`
	IsLocalDev       bool   `mapstructure:"IS_LOCAL_DEV"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("DB_HOST", "db")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "attendance_db")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AWS_REGION", "us-east-1") // Default region for AWS services
	viper.SetDefault("HR_SQS_QUEUE_URL", "http://localstack:4566/000000000000/hr-export-queue")
	viper.SetDefault("EMAIL_SQS_QUEUE_URL", "http://localstack:4566/000000000000/email-queue")
	viper.SetDefault("AWS_ENDPOINT", "http://localstack:4566")
	viper.SetDefault("HR_EXPORT_API_URL", "http://localhost:8081/")
	viper.SetDefault("EMAIL_SENDER", "attendance@attendance-service.com")
	viper.SetDefault("EMAIL_DOMAIN", "attendance-service.com")
	viper.SetDefault("ORG_TIMEZONE", "Asia/Bangkok")
	viper.SetDefault("SWEEP_SECRET", "")
	viper.SetDefault("IS_LOCAL_DEV", false)

	// Read in environment variables that match the keys.
	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	return
}
