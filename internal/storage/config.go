package storage

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	AI struct {
		Provider    string  `yaml:"provider"` // "chat" (OpenAI-compatible) or "ollama"
		Endpoint    string  `yaml:"endpoint"`
		Model       string  `yaml:"model"`
		APIKey      string  `yaml:"api_key"`
		Language    string  `yaml:"language"`
		Temperature float64 `yaml:"temperature"`
		TagCount    int     `yaml:"tag_count"`
		TitleMaxLen int     `yaml:"title_max_len"`
	} `yaml:"ai"`

	Clipboard struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"clipboard"`

	Reminders struct {
		Enabled     bool `yaml:"enabled"`
		IntervalMin int  `yaml:"interval_min"`
		LeadMin     int  `yaml:"lead_min"`
	} `yaml:"reminders"`

	Buffer struct {
		Separator     string `yaml:"separator"`
		SummaryLength int    `yaml:"summary_length"`
	} `yaml:"buffer"`

	Categories []string `yaml:"categories"` // user-defined closed set

	Export struct {
		DatePrefix bool `yaml:"date_prefix"`
	} `yaml:"export"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Database.Path = "./souvenir.db"
	cfg.AI.Provider = "chat"
	cfg.AI.Endpoint = "https://api.deepseek.com/v1/chat/completions"
	cfg.AI.Model = "deepseek-chat"
	cfg.AI.Language = "en"
	cfg.AI.Temperature = 0.2
	cfg.AI.TagCount = 5
	cfg.AI.TitleMaxLen = 80
	cfg.Clipboard.IntervalSeconds = 1
	cfg.Reminders.Enabled = true
	cfg.Reminders.IntervalMin = 5
	cfg.Reminders.LeadMin = 30
	cfg.Buffer.Separator = "\n---\n"
	cfg.Buffer.SummaryLength = 150
	return cfg
}
