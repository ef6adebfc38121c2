package ground

type Config struct {
	WSAddr  string
	Name    string
	SendBuf int
}

func DefaultConfig() Config {
	return Config{
		WSAddr:  "127.0.0.1:8765",
		Name:    "flightd",
		SendBuf: 64,
	}
}
