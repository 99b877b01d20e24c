package ttms

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"kyri56xcaesar/ttms-proj/internal/logging"
)

type Config struct {
	ConfigPath string
	Profile    string
	Verbose    bool
	ApiGinMode string

	Ip   string
	Port string

	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string

	// auth middleware (off by default, the back office runs behind the proxy)
	AuthEnabled bool
	JwksURL     string
	Issuer      string
	Audience    string
	ClientID    string
	AdminRoles  []string

	// database
	DBDriver    string // postgres | memory
	DBAddress   string
	DBUser      string
	DBPassword  string
	DBName      string
	InitSQLPath string

	LogPath string
}

func loadConfig(path string) Config {
	if err := godotenv.Load(path); err != nil {
		logging.Logger.Warnf("Failed to load the config file at %s, using default ones...", path)
	}

	s := strings.Split(path, "/")
	config := Config{
		ConfigPath: s[len(s)-1],
		Profile:    getEnv("PROFILE", "baremetal"),
		Verbose:    getBoolEnv("VERBOSE", "true"),
		ApiGinMode: getEnv("GIN_MODE", "debug"),

		Ip:   getEnv("IP", "localhost"),
		Port: getEnv("PORT", "5060"),

		AllowedOrigins: getEnvFields("ALLOW_ORIGINS", []string{"*"}),
		AllowedMethods: getEnvFields("ALLOW_METHODS", []string{"*"}),
		AllowedHeaders: getEnvFields("ALLOW_HEADERS", []string{"*"}),

		AuthEnabled: getBoolEnv("AUTH_ENABLED", "false"),
		JwksURL:     getEnv("AUTH_JWKS_URL", "http://localhost:5555/realms/ttms/protocol/openid-connect/certs"),
		Issuer:      getEnv("AUTH_ISSUER", "http://localhost:5555/realms/ttms"),
		Audience:    getEnv("AUTH_AUDIENCE", "ttms-back"),
		ClientID:    getEnv("AUTH_CLIENT", "ttms-back"),
		AdminRoles:  getEnvFields("AUTH_ADMIN_ROLES", []string{"admin", "staff"}),

		DBDriver:    getEnv("DB_DRIVER", "postgres"),
		DBAddress:   getEnv("DB_ADDRESS", "ttms-db:5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "ttms"),
		InitSQLPath: getEnv("INIT_SQL_PATH", "./internal/ttms/db/init.sql"),

		LogPath: getEnv("LOG_PATH", "logs/ttms.log"),
	}

	if config.Verbose {
		logging.Logger.Info(config.toString())
	}

	return config
}

func getEnv(env, fallback string) string {
	if value, exists := os.LookupEnv(env); exists {
		return value
	}

	return fallback
}

func getEnvFields(env string, fallback []string) []string {
	if value, exists := os.LookupEnv(env); exists {
		fields := strings.Split(strings.TrimSpace(value), ",")

		return fields
	}

	return fallback
}

func getBoolEnv(env, fallback string) bool {
	if value, exists := os.LookupEnv(env); exists {
		return strings.ToLower(value) == "true"
	}

	return strings.ToLower(fallback) == "true"
}

func getIntEnv(env string, fallback int) int {
	if value, exists := os.LookupEnv(env); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}

	return fallback
}

func (cfg *Config) toString() string {
	var strBuilder strings.Builder

	reflectedValues := reflect.ValueOf(cfg).Elem()
	reflectedTypes := reflect.TypeOf(cfg).Elem()

	strBuilder.WriteString(fmt.Sprintf("[CFG]CONFIGURATION: %s\n", cfg.ConfigPath))

	for i := 0; i < reflectedValues.NumField(); i++ {
		fieldName := reflectedTypes.Field(i).Name
		fieldValue := reflectedValues.Field(i).Interface()

		strBuilder.WriteString("[CFG]")
		if i < 9 {
			strBuilder.WriteString(fmt.Sprintf("%d.  ", i+1))
		} else {
			strBuilder.WriteString(fmt.Sprintf("%d. ", i+1))
		}
		if len(fieldName) <= 6 {
			strBuilder.WriteString(fmt.Sprintf("%v\t\t\t\t\t-> %v\n", fieldName, fieldValue))
		} else if len(fieldName) <= 14 {
			strBuilder.WriteString(fmt.Sprintf("%v\t\t\t\t-> %v\n", fieldName, fieldValue))
		} else {
			strBuilder.WriteString(fmt.Sprintf("%v\t\t\t-> %v\n", fieldName, fieldValue))
		}
	}

	return strBuilder.String()
}
