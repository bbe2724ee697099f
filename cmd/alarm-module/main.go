// Command alarm-module runs the alarm module daemon: debounced channel and
// power inputs, the arm/disarm/alarm state machine, the daisy-chain tamper
// heartbeat, and its MQTT, HTTP, Modbus and serial surfaces.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/alarm-module/internal/config"
	"github.com/sweeney/alarm-module/internal/console"
	"github.com/sweeney/alarm-module/internal/gpio"
	"github.com/sweeney/alarm-module/internal/modbus"
	"github.com/sweeney/alarm-module/internal/mqtt"
	"github.com/sweeney/alarm-module/internal/status"
	"github.com/sweeney/alarm-module/internal/store"
	"github.com/sweeney/alarm-module/internal/timer"
	"github.com/sweeney/alarm-module/internal/web"
)

// version is reported by GV and --version. Overridden at link time.
var version = "2.3.0"

var (
	configPath string
	brokerFlag string
	httpFlag   string
	serialFlag string
)

var rootCmd = &cobra.Command{
	Use:   "alarm-module",
	Short: "Alarm module daemon",
	Long: `alarm-module watches twelve switch channels, arms and disarms them, and
raises alarms on opened switches, power tamper and a lost daisy-chain heartbeat.

Without a subcommand it runs the daemon.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runDaemon,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon (default)",
	RunE:  runDaemon,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults if empty)")
	rootCmd.PersistentFlags().StringVar(&brokerFlag, "broker", "", `MQTT broker address ("off" disables)`)
	rootCmd.PersistentFlags().StringVar(&httpFlag, "http", "", `HTTP status address ("off" disables)`)
	rootCmd.PersistentFlags().StringVar(&serialFlag, "serial", "", "Debug console serial port")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("broker") {
		cfg.MQTT.Broker = offToEmpty(brokerFlag)
	}
	if flags.Changed("http") {
		cfg.HTTP.Addr = offToEmpty(httpFlag)
	}
	if flags.Changed("serial") {
		cfg.Serial.Port = offToEmpty(serialFlag)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return cfg, nil
}

func offToEmpty(s string) string {
	if s == "off" {
		return ""
	}
	return s
}

func openStore(path string) store.Store {
	if path == "" {
		log.Printf("store: no path configured, settings kept in memory")
		return store.NewMemoryStore(store.Default())
	}
	return store.NewFileStore(path)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	lines, err := gpio.NewRealLines(cfg.GPIO.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer lines.Close()

	d, err := newDaemon(cfg, lines, timer.SystemClock{}, openStore(cfg.Store.Path))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MQTT.Broker != "" {
		pub := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topics:   mqtt.NewTopics(cfg.MQTT.Topic),
		})
		defer pub.Close()
		d.publisher = pub
		d.mqttStatus = pub
		if err := pub.SubscribeCommands(d.onCommand); err != nil {
			log.Printf("mqtt: subscribe commands: %v", err)
		}
	}

	if net := readNetworkInfo(); net != nil {
		d.tracker.SetNetwork(net)
	}
	d.startup()

	if cfg.Modbus.Endpoint != "" {
		cli, err := modbus.Dial(cfg.Modbus.Endpoint, config.Ms(cfg.Modbus.TimeoutMs))
		if err != nil {
			log.Printf("modbus: dial %s: %v (status registers disabled)", cfg.Modbus.Endpoint, err)
		} else {
			defer cli.Close()
			d.registers = modbus.NewMirror(modbus.NewStatusWriter(cli, cfg.Modbus.UnitID, cfg.Modbus.Address), config.Ms(cfg.Modbus.RetryMs))
			go d.registers.Run(ctx)
			log.Printf("modbus: mirroring status to %s unit %d at %d", cfg.Modbus.Endpoint, cfg.Modbus.UnitID, cfg.Modbus.Address)
		}
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, d.tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	if cfg.Serial.Port != "" {
		port, err := console.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			log.Printf("console: %v", err)
		} else {
			defer port.Close()
			go func() {
				exec := func(line string) string { return d.execute(ctx, line) }
				if err := console.Serve(ctx, port, exec); err != nil && ctx.Err() == nil {
					log.Printf("console: %v", err)
				}
			}()
			log.Printf("console: listening on %s at %d baud", cfg.Serial.Port, cfg.Serial.Baud)
		}
	}

	log.Printf("started: tick=%dms debounce=%dms broker=%s heartbeat=%dms",
		cfg.Timing.TickMs, cfg.Timing.DebounceMs, cfg.MQTT.Broker, cfg.Timing.HeartbeatMs)

	ticker := time.NewTicker(config.Ms(cfg.Timing.TickMs))
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = d.runLoop(ticker.C, sigCh)
	cancel()
	return err
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
