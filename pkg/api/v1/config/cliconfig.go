package config

type CliConfig struct {
	EntsoeToken string
	EntsoeArea  string `default:"10YNL----------L"`

	ForecastLatitude    float64 `default:"52.1"`
	ForecastLongitude   float64 `default:"5.2"`
	ForecastDeclination int     `default:"37"`
	ForecastAzimuth     int     `default:"0"`
	ForecastKWP         float64 `default:"5.6"`

	ControllerType string `default:"kiwatt"`
	BatteryAddress string `default:"192.168.1.20:502"`
	BatterySlaveID int    `default:"1"`

	// SOC band the planner works within.
	MinPercentage int `default:"10"`
	MaxPercentage int `default:"95"`
	// Average SOC drop per hour from household consumption.
	UnloadPerHour int `default:"5"`

	PriceSurcharge float64 `default:"0.14349"`
	PriceVAT       float64 `default:"1.21"`

	TelegramBotID  string
	TelegramChatID string

	MQTTHost      string
	MQTTPort      int    `default:"1883"`
	MQTTUsername  string
	MQTTPassword  string
	MQTTBaseTopic string `default:"kiwatt"`

	MeterDevice string `default:"/dev/ttyAMA0"`
	MeterModel  string
	MeterID     string `default:"1"`

	CacheDir string `default:"/var/lib/kiwattctl"`

	LogLevel string `default:"info"`
}
