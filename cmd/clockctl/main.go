// Command clockctl publishes a display command to the segclock MQTT root.
//
//	clockctl show 123456
//	echo 42 | clockctl set
//	clockctl --list
//
// Broker settings come from the same config file and environment variables
// as segclock; flags override them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"segclock/commands"
	"segclock/config"
	"segclock/display"
	"segclock/mqttbus"

	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const maxStdinPayload = 4 << 10

var errUnknownCommand = errors.New("unknown command")

func main() {
	configPath := pflag.StringP("config", "c", "", "path to segclock YAML config")
	host := pflag.String("host", "", "MQTT broker host (default from config)")
	port := pflag.Int("port", 0, "MQTT broker port (default from config)")
	topic := pflag.StringP("topic", "t", "", "MQTT root topic (default from config)")
	username := pflag.StringP("username", "u", "", "MQTT username")
	password := pflag.StringP("password", "p", "", "MQTT password")
	force := pflag.Bool("force", false, "publish even if the command is not a known alias")
	list := pflag.Bool("list", false, "list known commands and exit")
	timeout := pflag.Duration("timeout", 5*time.Second, "publish timeout")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: clockctl [flags] <command> [payload]\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *list {
		printAliases(os.Stdout)
		return
	}
	if pflag.NArg() < 1 {
		pflag.Usage()
		os.Exit(2)
	}

	name, err := resolveCommand(pflag.Arg(0), *force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clockctl: %v\n", err)
		os.Exit(2)
	}
	stdinIsTTY := term.IsTerminal(int(os.Stdin.Fd()))
	payload, err := readPayload(pflag.Args()[1:], os.Stdin, stdinIsTTY)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clockctl: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clockctl: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv(os.LookupEnv)
	if *host != "" {
		cfg.MQTT.Host = *host
	}
	if *port != 0 {
		cfg.MQTT.Port = *port
	}
	if *topic != "" {
		cfg.MQTT.Topic = *topic
	}
	if *username != "" {
		cfg.MQTT.Username = *username
	}
	if *password != "" {
		cfg.MQTT.Password = *password
	}

	bus := mqttbus.NewClient(mqttbus.Options{
		Host:           cfg.MQTT.Host,
		Port:           cfg.MQTT.Port,
		Root:           cfg.MQTT.Topic,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ClientID:       fmt.Sprintf("clockctl-%d", os.Getpid()),
		PublishTimeout: *timeout,
		PublishOnly:    true,
	})
	if err := bus.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "clockctl: %v\n", err)
		os.Exit(1)
	}
	defer bus.Stop()

	target := display.Topic(bus.Root(), name)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := bus.Publish(ctx, target, payload); err != nil {
		fmt.Fprintf(os.Stderr, "clockctl: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("published %s (%d bytes)\n", target, len(payload))
}

// resolveCommand validates name against the alias table.
func resolveCommand(name string, force bool) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", errUnknownCommand)
	}
	if _, ok := commands.Lookup(name); ok || force {
		return name, nil
	}
	if suggestion, ok := commands.Suggest(name); ok {
		return "", fmt.Errorf("%w %q (did you mean %q?)", errUnknownCommand, name, suggestion)
	}
	return "", fmt.Errorf("%w %q (see --list)", errUnknownCommand, name)
}

// readPayload joins args, or reads piped stdin when no args are given.
func readPayload(args []string, stdin io.Reader, stdinIsTTY bool) ([]byte, error) {
	if len(args) > 0 {
		return []byte(strings.Join(args, " ")), nil
	}
	if stdinIsTTY || stdin == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(stdin, maxStdinPayload))
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return []byte(strings.TrimSpace(string(data))), nil
}

func printAliases(w io.Writer) {
	for _, group := range []commands.Group{
		commands.GroupZero, commands.GroupClear, commands.GroupIncrement,
		commands.GroupTime, commands.GroupDate, commands.GroupInfo, commands.GroupShow,
	} {
		fmt.Fprintf(w, "%-10s %s\n", group, strings.Join(commands.AliasesFor(group), ", "))
	}
}
