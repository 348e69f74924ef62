// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package config

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rapidaai/voice/pkg/configs"
	"github.com/spf13/viper"
)

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`

	// public base url used for twilio stream and status callbacks
	ServerBaseUrl string `mapstructure:"server_base_url"`

	DatabaseDriver string                 `mapstructure:"database_driver" validate:"required,oneof=postgres sqlite"`
	SqlitePath     string                 `mapstructure:"sqlite_path"`
	PostgresConfig configs.PostgresConfig `mapstructure:"postgres"`
	RedisConfig    configs.RedisConfig    `mapstructure:"redis"`

	VectorStoreConfig configs.VectorStoreConfig `mapstructure:"vector_store" validate:"required"`
	TwilioConfig      configs.TwilioConfig      `mapstructure:"twilio"`
	SpeechConfig      configs.SpeechConfig      `mapstructure:"speech" validate:"required"`
	KnowledgeConfig   configs.KnowledgeConfig   `mapstructure:"knowledge" validate:"required"`
	RecordingConfig   configs.RecordingConfig   `mapstructure:"recording"`

	// provider credentials
	DeepgramApiKey        string `mapstructure:"deepgram_api_key"`
	ElevenLabsApiKey      string `mapstructure:"elevenlabs_api_key"`
	OpenaiApiKey          string `mapstructure:"openai_api_key"`
	AnthropicApiKey       string `mapstructure:"anthropic_api_key"`
	GoogleApiKey          string `mapstructure:"google_api_key"`
	GoogleProjectId       string `mapstructure:"google_project_id"`
	GoogleCredentialsJson string `mapstructure:"google_credentials_json"`
	GroqApiKey            string `mapstructure:"groq_api_key"`
	DeepseekApiKey        string `mapstructure:"deepseek_api_key"`
	CohereApiKey          string `mapstructure:"cohere_api_key"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env variables.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "assistant-api")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("SERVER_BASE_URL", "http://localhost:8080")

	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("SQLITE_PATH", "voice.db")

	v.SetDefault("POSTGRES__HOST", "localhost")
	v.SetDefault("POSTGRES__PORT", 5432)
	v.SetDefault("POSTGRES__DB_NAME", "<>")
	v.SetDefault("POSTGRES__AUTH__USER", "<>")
	v.SetDefault("POSTGRES__AUTH__PASSWORD", "<>")
	v.SetDefault("POSTGRES__MAX_OPEN_CONNECTION", 10)
	v.SetDefault("POSTGRES__MAX_IDEAL_CONNECTION", 10)
	v.SetDefault("POSTGRES__SSL_MODE", "disable")

	v.SetDefault("REDIS__HOST", "localhost")
	v.SetDefault("REDIS__PORT", 6379)
	v.SetDefault("REDIS__PASSWORD", "")
	v.SetDefault("REDIS__DB", 0)

	v.SetDefault("VECTOR_STORE__PROVIDER", "pinecone")
	v.SetDefault("VECTOR_STORE__OPENSEARCH__INDEX", "voice-knowledge")

	v.SetDefault("SPEECH__RECOGNIZER_PROVIDER", "deepgram")
	v.SetDefault("SPEECH__SYNTHESIZER_PROVIDER", "elevenlabs")
	v.SetDefault("SPEECH__DEFAULT_VOICE", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("SPEECH__DEFAULT_LANGUAGE", "en-US")

	v.SetDefault("KNOWLEDGE__EMBEDDING_PROVIDER", "openai")
	v.SetDefault("KNOWLEDGE__EMBEDDING_MODEL", "text-embedding-3-small")
	v.SetDefault("KNOWLEDGE__CHUNK_SIZE", 500)
	v.SetDefault("KNOWLEDGE__CHUNK_OVERLAP", 50)
	v.SetDefault("KNOWLEDGE__RETRIEVAL_TOP_K", 5)

	v.SetDefault("RECORDING__ENABLED", false)
	v.SetDefault("RECORDING__DIRECTORY", "recordings")
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
