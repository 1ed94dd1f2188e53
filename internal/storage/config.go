package storage

import "os"

// Mode selects the persistence backend
type Mode string

const (
	ModeNone   Mode = "none"
	ModeSQLite Mode = "sqlite"
	ModeLocal  Mode = "local" // DynamoDB Local
	ModeAWS    Mode = "aws"
)

// Config holds storage configuration
type Config struct {
	Mode             Mode
	SQLitePath       string // for sqlite mode
	Endpoint         string // for local mode
	Region           string
	CallRecordsTable string
	AgentDailyTable  string
}

// LoadConfig loads storage config from environment
func LoadConfig() Config {
	mode := Mode(getEnv("STORE_MODE", "none"))
	switch mode {
	case ModeSQLite, ModeLocal, ModeAWS:
	default:
		mode = ModeNone
	}

	return Config{
		Mode:             mode,
		SQLitePath:       getEnv("SQLITE_PATH", "data/softphone.db"),
		Endpoint:         getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
		Region:           getEnv("DYNAMO_REGION", "eu-central-1"),
		CallRecordsTable: getEnv("DYNAMO_CALL_RECORDS_TABLE", "softphone-call-records"),
		AgentDailyTable:  getEnv("DYNAMO_AGENT_DAILY_TABLE", "softphone-agent-daily-stats"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
