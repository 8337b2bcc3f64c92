package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Microsoft Graph (source of record). Token acquisition happens
	// outside this process; we get a ready bearer token.
	GraphBaseURL     string
	GraphBearerToken string

	// Slack SCIM (target)
	SlackBaseURL string
	SlackAuthURL string

	// Secrets bundle (slack client id/secret + rotating refresh token)
	SecretsPath string
	SecretsKey  string // age private key, AGE-SECRET-KEY-1...

	// HTTP server
	ListenAddr  string
	JWTIssuer   string
	JWTAudience string
	JWTSecret   string

	// SFTP drop for HR CSV snapshots
	SFTPHost      string
	SFTPPort      int
	SFTPUser      string
	SFTPPass      string
	SFTPRemoteDir string
	SFTPInsecure  bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present; real environment wins.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		GraphBaseURL:     getenv("GRAPH_BASE_URL", "https://graph.microsoft.com"),
		GraphBearerToken: os.Getenv("GRAPH_BEARER_TOKEN"),

		SlackBaseURL: getenv("SLACK_BASE_URL", "https://api.slack.com"),
		SlackAuthURL: getenv("SLACK_AUTH_URL", "https://slack.com/api/oauth.v2.access"),

		SecretsPath: getenv("SECRETS_PATH", "secrets.age"),
		SecretsKey:  os.Getenv("SECRETS_KEY"),

		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),
		JWTIssuer:   os.Getenv("JWT_ISSUER"),
		JWTAudience: os.Getenv("JWT_AUDIENCE"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		SFTPHost:      os.Getenv("SFTP_HOST"),
		SFTPPort:      getenvInt("SFTP_PORT", 22),
		SFTPUser:      os.Getenv("SFTP_USER"),
		SFTPPass:      os.Getenv("SFTP_PASS"),
		SFTPRemoteDir: getenv("SFTP_REMOTE_DIR", "/"),
		SFTPInsecure:  getenvBool("SFTP_INSECURE_IGNORE_HOST_KEY", false),
	}
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
