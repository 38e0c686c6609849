package env

import "os"

type Environment string

const (
	Local Environment = "LOCAL"
	Dev   Environment = "DEV"
	Prod  Environment = "PROD"
)

func E() Environment {
	return Environment(os.Getenv("ENV"))
}

// IsDevelopment reports whether the process runs in a local or dev
// environment, where human-readable console logging is preferred.
func IsDevelopment() bool {
	e := E()
	return e == Local || e == Dev
}
