package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/doorbell-integration/cmd"
)

func main() {
	app := &cli.App{
		Name:   "doorbell-integration",
		Usage:  "detects doorbells in home assistant and runs the whorang automation",
		Action: cmd.DoorbellCommand,
		Commands: []*cli.Command{
			{
				Name:   "generate-api-key",
				Usage:  "print a new control API key and its API_KEY_HASH",
				Action: cmd.GenerateAPIKeyCommand,
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "ha-host",
				EnvVars: []string{"HA_HOST"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "ha-token",
				EnvVars: []string{"HA_TOKEN", "SUPERVISOR_TOKEN"},
				Value:   "",
			},
			&cli.BoolFlag{
				Name:    "ha-ssl",
				EnvVars: []string{"HA_SSL"},
				Value:   false,
			},
			&cli.StringFlag{
				Name:    "ha-external-url",
				EnvVars: []string{"HA_EXTERNAL_URL"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-host",
				EnvVars: []string{"MQTT_HOST"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-pass",
				EnvVars: []string{"MQTT_PASS"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-user",
				EnvVars: []string{"MQTT_USER"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-client-id",
				EnvVars: []string{"MQTT_CLIENT_ID"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "database-url",
				EnvVars: []string{"DATABASE_URL"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "migrations-folder",
				EnvVars: []string{"MIGRATIONS_FOLDER"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:  "backend-url",
				Usage: "WhoRang backend, WHORANG_BACKEND_URL takes precedence",
				Value: "",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "INFO",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
