package config

import (
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config representa a estrutura completa do config.yaml
type Config struct {
	App struct {
		Env string `yaml:"env"`
	} `yaml:"app"`

	// Parâmetros padrão do harvest (podem ser sobrescritos por flags)
	Scraper struct {
		Query     string `yaml:"query"`
		TimeRange string `yaml:"time_range"` // ano ROC, ex: "113"
		PageSize  int    `yaml:"page_size"`
		Headless  bool   `yaml:"headless"`
	} `yaml:"scraper"`

	// Motor de captcha
	Captcha struct {
		MaxAttempts int    `yaml:"max_attempts"`
		ModelPath   string `yaml:"model_path"`  // modelo ONNX do classificador de cartas
		LabelsPath  string `yaml:"labels_path"` // um label por linha, na ordem das classes
		RuntimeLib  string `yaml:"runtime_lib"` // libonnxruntime.so
		KeepDebug   bool   `yaml:"keep_debug"`  // mantém imagens de debug após resolver
		DebugDir    string `yaml:"debug_dir"`   // diretório das imagens intermediárias
		ErrorLog    string `yaml:"error_log"`   // log durável de falhas de tentativa
	} `yaml:"captcha"`

	// Infraestrutura Compartilhada
	Nats struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	Meilisearch struct {
		Host  string `yaml:"host"`
		Key   string `yaml:"key"`
		Index string `yaml:"index"`
	} `yaml:"meilisearch"`

	Metrics struct {
		Port string `yaml:"port"`
	} `yaml:"metrics"`
}

// LoadConfig carrega o config.yaml e aplica defaults para campos ausentes.
func LoadConfig() *Config {
	// 1. Tenta pegar via Variável de Ambiente (Docker/Prod)
	configPath := os.Getenv("CONFIG_PATH")

	// 2. Se não tiver, tenta achar "subindo" pastas (Local Dev)
	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		} else if _, err := os.Stat("config/config.yaml"); err == nil {
			configPath = "config/config.yaml"
		} else if _, err := os.Stat("../../config/config.yaml"); err == nil {
			// Útil quando rodamos 'go run' de dentro de cmd/
			configPath = "../../config/config.yaml"
		}
	}

	cfg := defaults()

	if configPath == "" {
		log.Println("Nenhum config.yaml encontrado — usando defaults (override via flags)")
		return cfg
	}

	absPath, _ := filepath.Abs(configPath)
	log.Printf("Carregando config de: %s", absPath)

	f, err := os.Open(configPath)
	if err != nil {
		log.Fatalf("Erro fatal lendo config: %v", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		log.Fatalf("Erro ao decodificar YAML: %v", err)
	}

	return cfg
}

func defaults() *Config {
	cfg := &Config{}
	cfg.App.Env = "dev"
	cfg.Scraper.Query = "案"
	cfg.Scraper.TimeRange = "113"
	cfg.Scraper.PageSize = 100
	cfg.Captcha.MaxAttempts = 10
	cfg.Captcha.DebugDir = "debug_images"
	cfg.Captcha.ErrorLog = "debug_captcha_errors.log"
	cfg.Metrics.Port = ":2112"
	return cfg
}
