package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DBconfig хранит конфигурацию для БД
type DBconfig struct {
	URL      string
	MaxConns int
}

// RabbitMQConfig хранит конфигурацию для RabbitMQ.
// Публикация отчетов выключаема: без брокера сервис остается полностью рабочим.
type RabbitMQConfig struct {
	URL     string
	Enabled bool
}

type StdoutLogConfig struct {
	Level string // По умолчанию DEBUG
}

type FluentBitConfig struct {
	Host    string
	Port    int
	Enabled bool
	Level   string // По умолчанию INFO
}

type HTTPConfig struct {
	Port       string
	AdminToken string
}

// SyncConfig - настройки пайплайна синхронизации. Пороговые значения и
// эвристические параметры вынесены сюда, а не зашиты в код: точные значения
// джиттера и широтных полос риска затопления требуют подтверждения
// доменного эксперта.
type SyncConfig struct {
	// MinPropertyRecords - минимальное количество записей юрисдикции,
	// ниже которого она считается устаревшей и пересинхронизируется.
	MinPropertyRecords int

	// MinCivicRecords - тот же порог для муниципальных источников.
	MinCivicRecords int

	// WindowMonths - глубина окна выборки из внешних источников.
	WindowMonths int

	// RecordCap - максимум записей на один источник за прогон.
	RecordCap int

	// RunOnStart - запускать ли прогон при старте процесса.
	RunOnStart bool

	// JitterDegrees - максимальная дельта джиттера центроидных координат.
	JitterDegrees float64

	// RecentComplaintMonths - насколько свежей должна быть жалоба,
	// чтобы учитываться в buildingHealthScore.
	RecentComplaintMonths int

	// Широтные полосы эвристики риска затопления: ниже High - "high",
	// ниже Moderate - "moderate", иначе "low".
	FloodHighLatBelow     float64
	FloodModerateLatBelow float64
}

// SourcesConfig - адреса внешних порталов открытых данных. Переопределяются
// в тестах и staging-окружениях.
type SourcesConfig struct {
	NYCPermitsURL    string
	NYCViolationsURL string
	NYC311URL        string
	NYCTransitURL    string
	NJAssessorURL    string
	CTAssessorURL    string
}

// AppConfig хранит всю конфигурацию приложения
type AppConfig struct {
	AppName      string
	Database     DBconfig
	RabbitMQ     RabbitMQConfig
	FluentBit    FluentBitConfig
	StdoutLogger StdoutLogConfig
	HTTP         HTTPConfig
	Sync         SyncConfig
	Sources      SourcesConfig
}

// LoadConfig загружает конфигурацию из переменных окружения.
func LoadConfig(envPath ...string) (*AppConfig, error) {

	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		// .env опционален: в контейнере переменные приходят из окружения
		log.Printf("Info: Could not load .env file (path: %v): %v.\n", envPath, err)
	}

	cfg := &AppConfig{}

	cfg.AppName = getEnvAsString("APP_NAME", "market-sync-service")

	// Читаем DATABASE URL
	cfg.Database.URL = os.Getenv("DATABASE_URL")
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.Database.MaxConns = getEnvAsInt("DATABASE_MAX_CONNS", 0)

	// Читаем конфигурацию для RabbitMQ
	cfg.RabbitMQ.Enabled = getEnvAsBool("RABBITMQ_ENABLED", false)
	if cfg.RabbitMQ.Enabled {
		cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
		if cfg.RabbitMQ.URL == "" {
			log.Println("WARNING: RABBITMQ_ENABLED is true, but RABBITMQ_URL is not set. Disabling report publishing.")
			cfg.RabbitMQ.Enabled = false
		}
	}

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}

		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "debug")

	cfg.HTTP.Port = getEnvAsString("HTTP_PORT", "8080")
	cfg.HTTP.AdminToken = os.Getenv("ADMIN_API_TOKEN")
	if cfg.HTTP.AdminToken == "" {
		return nil, fmt.Errorf("ADMIN_API_TOKEN environment variable is required")
	}

	cfg.Sync.MinPropertyRecords = getEnvAsInt("SYNC_MIN_PROPERTY_RECORDS", 100)
	cfg.Sync.MinCivicRecords = getEnvAsInt("SYNC_MIN_CIVIC_RECORDS", 500)
	cfg.Sync.WindowMonths = getEnvAsInt("SYNC_WINDOW_MONTHS", 12)
	cfg.Sync.RecordCap = getEnvAsInt("SYNC_RECORD_CAP", 5000)
	cfg.Sync.RunOnStart = getEnvAsBool("SYNC_RUN_ON_START", false)
	cfg.Sync.JitterDegrees = getEnvAsFloat("SYNC_GEO_JITTER_DEGREES", 0.004)
	cfg.Sync.RecentComplaintMonths = getEnvAsInt("SYNC_RECENT_COMPLAINT_MONTHS", 6)
	cfg.Sync.FloodHighLatBelow = getEnvAsFloat("SYNC_FLOOD_HIGH_LAT_BELOW", 40.65)
	cfg.Sync.FloodModerateLatBelow = getEnvAsFloat("SYNC_FLOOD_MODERATE_LAT_BELOW", 41.0)

	cfg.Sources.NYCPermitsURL = getEnvAsString("SOURCE_NYC_PERMITS_URL", "https://data.cityofnewyork.us/resource/rbx6-tga4.json")
	cfg.Sources.NYCViolationsURL = getEnvAsString("SOURCE_NYC_VIOLATIONS_URL", "https://data.cityofnewyork.us/resource/3h2n-5cm9.json")
	cfg.Sources.NYC311URL = getEnvAsString("SOURCE_NYC_311_URL", "https://data.cityofnewyork.us/resource/erm2-nwe9.json")
	cfg.Sources.NYCTransitURL = getEnvAsString("SOURCE_NYC_TRANSIT_URL", "https://data.ny.gov/resource/39hk-dx4f.json")
	cfg.Sources.NJAssessorURL = getEnvAsString("SOURCE_NJ_ASSESSOR_URL", "https://data.nj.gov/resource/mod4-parcels.json")
	cfg.Sources.CTAssessorURL = getEnvAsString("SOURCE_CT_ASSESSOR_URL", "https://data.ct.gov/resource/2e5r-assm.json")

	return cfg, nil
}

// getEnvAsString читает переменную окружения как строку или возвращает значение по умолчанию
func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt читает переменную окружения как int или возвращает значение по умолчанию
// Логирует ошибку, если переменная есть, но не может быть преобразована в int
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

// getEnvAsBool читает переменную окружения как bool или возвращает значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

// getEnvAsFloat читает переменную окружения как float64 или возвращает значение по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valFloat, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as float: %v. Using default value: %f\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valFloat
}
