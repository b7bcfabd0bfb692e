package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host string `env:"HOST"`
	Port int    `env:"PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	DispatchBufferSize    int           `env:"DISPATCH_BUFFER_SIZE,required=true"`
	ConnectionBufferSize  int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	DeliveryTimeout       time.Duration `env:"DELIVERY_TIMEOUT,required=true"`
	MaxConnectionsPerUser int           `env:"MAX_CONNECTIONS_PER_USER"`

	HistoryPageSize   int           `env:"HISTORY_PAGE_SIZE,required=true"`
	SequenceBandwidth uint64        `env:"SEQUENCE_BANDWIDTH"`
	MetricInterval    time.Duration `env:"METRIC_INTERVAL,required=true"`

	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
}

func (c Config) CensoredWordList() []string {
	if strings.TrimSpace(c.CensoredWords) == "" {
		return nil
	}
	var words []string
	for _, word := range strings.Split(c.CensoredWords, ",") {
		if trimmed := strings.TrimSpace(word); trimmed != "" {
			words = append(words, trimmed)
		}
	}
	return words
}

func (c Config) CharacterRune() (rune, error) {
	if c.CharReplacement == "" {
		return '*', nil
	}
	r := []rune(c.CharReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			c.CharReplacement,
		)
	}
	return r[0], nil
}

func (c Config) Origins() []string {
	if strings.TrimSpace(c.AllowedOrigins) == "" {
		return []string{"*"}
	}
	return strings.Split(c.AllowedOrigins, ",")
}
