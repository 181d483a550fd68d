package runconfig

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv wraps os.LookupEnv, optionally loading a .env file first so CLI
// users and test harnesses can park tunables in a file instead of the
// process environment. A missing .env file is not an error; a malformed
// one is.
func LoadEnv(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			if err := godotenv.Load(dotenvPath); err != nil {
				return nil, err
			}
		}
	}
	return Load(os.LookupEnv)
}
