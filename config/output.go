package config

// OutputConfig lists the files the best schedule is exported to. An empty
// path skips that export.
type OutputConfig struct {
	JSON       string `json:"json"`
	CSV        string `json:"csv"`
	Chart      string `json:"chart"`
	ChartTitle string `json:"chart_title"`
}

func (c *OutputConfig) SetDefaults() {
	if c.ChartTitle == "" {
		c.ChartTitle = "best schedule"
	}
}
