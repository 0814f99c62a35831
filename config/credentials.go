package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const baseCredPath = "echofeed/creds.toml"

// Credentials holds all application credentials
type Credentials struct {
	Telegram TelegramCredentials `toml:"telegram"`
	Gemini   GeminiCredentials   `toml:"gemini"`
}

// TelegramCredentials holds Telegram API credentials
type TelegramCredentials struct {
	AppID       int    `toml:"api_id"`
	AppHash     string `toml:"api_hash"`
	PhoneNumber string `toml:"phone"`
}

// IsValid checks if telegram credentials are fully populated
func (tc TelegramCredentials) IsValid() bool {
	return tc.AppID != 0 && tc.AppHash != "" && tc.PhoneNumber != ""
}

// GeminiCredentials holds Google Gemini API credentials
type GeminiCredentials struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"` // e.g., "gemini-2.0-flash-exp"
}

// IsValid checks if Gemini credentials are fully populated
func (gc GeminiCredentials) IsValid() bool {
	return gc.APIKey != "" && gc.Model != ""
}

func ReadCredentials(path string) (Credentials, error) {
	var creds Credentials

	data, err := os.ReadFile(path)
	if err != nil {
		return creds, err
	}

	if _, err := toml.Decode(string(data), &creds); err != nil {
		return creds, fmt.Errorf("failed to decode credentials at %s: %w", path, err)
	}

	return creds, nil
}

// WriteCredentials stores creds readable by the owner only
func WriteCredentials(path string, creds Credentials) error {
	blob, err := toml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	basePath := filepath.Dir(path)
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return fmt.Errorf("failed to create credentials directory at '%s': %w", basePath, err)
	}

	if err := os.WriteFile(path, blob, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file at '%s': %w", path, err)
	}

	return nil
}

// DefaultCredentialsPath returns the default path for credentials file
func DefaultCredentialsPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return filepath.Join(xdgHome, baseCredPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return filepath.Join(home, ".config", baseCredPath)
	}

	panic("unclear where to keep the credentials file")
}

// PromptTelegramCredentials asks for Telegram credentials on out and reads answers from in
func PromptTelegramCredentials(in io.Reader, out io.Writer) (TelegramCredentials, error) {
	var creds TelegramCredentials

	fmt.Fprint(out, `Telegram credentials not found. Please provide the following information:

To get API_ID and API_HASH:
  1. Go to https://my.telegram.org
  2. Log in with your phone number
  3. Click 'API development tools'
  4. Create a new application

`)

	reader := bufio.NewReader(in)
	ask := func(label string, lastLine bool) (string, error) {
		fmt.Fprintf(out, "Enter %s: ", label)
		answer, err := reader.ReadString('\n')
		if err != nil && !(lastLine && errors.Is(err, io.EOF)) {
			return "", fmt.Errorf("failed to read %s: %w", label, err)
		}
		return strings.TrimSpace(answer), nil
	}

	appID, err := ask("API_ID", false)
	if err != nil {
		return creds, err
	}
	if creds.AppID, err = strconv.Atoi(appID); err != nil {
		return creds, fmt.Errorf("invalid API_ID format: %w", err)
	}
	if creds.AppHash, err = ask("API_HASH", false); err != nil {
		return creds, err
	}
	if creds.PhoneNumber, err = ask("phone number in international format (e.g. +1234567890)", true); err != nil {
		return creds, err
	}

	if !creds.IsValid() {
		return creds, fmt.Errorf("all credential fields are required")
	}

	fmt.Fprint(out, "\nNext, you will need to authenticate with Telegram.\nA verification code will be sent to your phone...\n\n")
	return creds, nil
}

// LoadOrPromptTelegramCredentials loads telegram credentials or prompts for them
func LoadOrPromptTelegramCredentials(credPath string) (TelegramCredentials, error) {
	creds, err := ReadCredentials(credPath)
	if err == nil && creds.Telegram.IsValid() {
		return creds.Telegram, nil
	}

	telegramCreds, err := PromptTelegramCredentials(os.Stdin, os.Stdout)
	if err != nil {
		return TelegramCredentials{}, err
	}

	creds.Telegram = telegramCreds
	if err := WriteCredentials(credPath, creds); err != nil {
		return telegramCreds, fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Printf("Credentials saved to %s\n", credPath)
	fmt.Println()

	return telegramCreds, nil
}

// Environment overrides for the Gemini section of the credentials file
const (
	GeminiAPIKeyEnv = "ECHOFEED_GEMINI_API_KEY"
	GeminiModelEnv  = "ECHOFEED_GEMINI_MODEL"
)

// LoadGeminiCredentials returns the Gemini section of the credentials file
// with environment overrides applied. Incomplete credentials are an error,
// callers then run without summary agents.
func LoadGeminiCredentials(credPath string) (GeminiCredentials, error) {
	creds, err := ReadCredentials(credPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return GeminiCredentials{}, err
	}
	gemini := creds.Gemini
	if v := os.Getenv(GeminiAPIKeyEnv); v != "" {
		gemini.APIKey = v
	}
	if v := os.Getenv(GeminiModelEnv); v != "" {
		gemini.Model = v
	}
	if !gemini.IsValid() {
		return gemini, fmt.Errorf("gemini credentials are incomplete, set them in %s or via %s and %s", credPath, GeminiAPIKeyEnv, GeminiModelEnv)
	}
	return gemini, nil
}
