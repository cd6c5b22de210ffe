// Command migrate applies the embedded session schema migrations.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"bakery/cmd/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", migrate.Up, "migration direction: up or down")
	flag.Parse()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	dsn := strings.TrimSpace(v.GetString("BAKERY_DATABASE_URL"))
	if err := migrate.Run(dsn, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
