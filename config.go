package demobank

type Config struct {
	Listen        string `yaml:"listen"`
	SnowflakeNode int64  `yaml:"snowflake_node"`
	Database      struct {
		ConnectionString string `yaml:"conn_str"`
	} `yaml:"database"`
	Limits struct {
		InFlight int64 `yaml:"in_flight"`
	} `yaml:"limits"`
	Seed struct {
		TestUser     bool `yaml:"test_user"`
		DemoAccounts bool `yaml:"demo_accounts"`
	} `yaml:"seed"`
}
