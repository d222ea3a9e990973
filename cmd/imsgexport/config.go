package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envContact = "CONTACT_PHONE_NUMBER"
	envDBPath  = "MESSAGES_DB_PATH"

	dateLayout = "2006-01-02"
)

type config struct {
	DBPath  string
	Contact string
}

// loadConfig reads envFile into the process environment (existing variables
// win) and returns the settings flags can fall back to. A missing envFile is
// not an error.
func loadConfig(envFile string) (config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	return config{
		DBPath:  strings.TrimSpace(os.Getenv(envDBPath)),
		Contact: strings.TrimSpace(os.Getenv(envContact)),
	}, nil
}

// parseDay parses a YYYY-MM-DD flag in the local time zone. When endOfDay is
// set the result is the last instant of that day, so --until is inclusive.
func parseDay(flag, value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(dateLayout, value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date %q, use YYYY-MM-DD: %w", flag, value, err)
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day, nil
}
