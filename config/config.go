package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load initializes the configuration with viper
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it. Using default values and environment variables.")
	}

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.root_url", "http://localhost:8080")
	viper.SetDefault("callback.github", "http://localhost:8080/callback/github")
	viper.SetDefault("github.scopes", "read:user")
	viper.SetDefault("github.api_url", "https://api.github.com")
	viper.SetDefault("github.graphql_url", "https://api.github.com/graphql")
	viper.SetDefault("streak.api_url", "https://api.franznkemaka.com/github-streak")
	viper.SetDefault("tracker.interval", 120)
	viper.SetDefault("points.per_commit", 25)
	viper.SetDefault("db.path", "./data/commitly.db")

	// session storage for the device-side auth snapshot
	viper.SetDefault("session.storage_path", "./data/session.json")

	// change feed transport; empty addr falls back to the in-process bus
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// notification delivery
	viper.SetDefault("push.api_url", "https://exp.host/--/api/v2/push/send")
	viper.SetDefault("reminder.hour", 20)
	viper.SetDefault("reminder.minute", 0)
	viper.SetDefault("welcome.function_url", "")
	viper.SetDefault("welcome.project_id", "com.commitly.app")
	viper.SetDefault("welcome.signing_key", "")
	viper.SetDefault("welcome.signing_key_id", "")

	viper.AutomaticEnv()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Error reading config file: %v", err)
		}
		log.Println("Config file not found, using default values and environment variables")
	} else {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}

	// check for required settings
	requiredVars := []string{"github.client_id", "github.client_secret"}
	missingVars := []string{}

	for _, v := range requiredVars {
		if !viper.IsSet(v) {
			missingVars = append(missingVars, v)
		}
	}

	if len(missingVars) > 0 {
		log.Fatalf("Required configuration variables not set: %s", strings.Join(missingVars, ", "))
	}
}
