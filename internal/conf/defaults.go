// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "raceday")
	viper.SetDefault("main.logpath", "logs")

	viper.SetDefault("schedule.baseurl", "https://api.jolpi.ca/ergast/f1")
	viper.SetDefault("schedule.timeout", 30)
	viper.SetDefault("schedule.ratelimit", 500)
	viper.SetDefault("schedule.cachettl", 5)
	viper.SetDefault("schedule.season", "")
	viper.SetDefault("schedule.useragent", "raceday-go")

	viper.SetDefault("store.sqlite.enabled", true)
	viper.SetDefault("store.sqlite.path", "raceday.db")

	viper.SetDefault("realtime.pollinterval", 60)
	viper.SetDefault("realtime.minrefreshinterval", 5)

	viper.SetDefault("timeline.livewindowminutes", 120)
	viper.SetDefault("timeline.perminutewindowdays", 7)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
}
